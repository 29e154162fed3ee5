package llm

import (
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// ProviderStats 提供商调用统计
type ProviderStats struct {
	Key          string `json:"key"`
	SuccessCount int    `json:"success_count"`
	TotalCount   int    `json:"total_count"`
	Default      bool   `json:"default"`
}

// Registry 提供商注册表，启动时构建，之后只读
type Registry struct {
	providers  map[string]Provider
	defaultKey string

	mu    sync.Mutex
	stats map[string]*ProviderStats
}

// NewRegistry 根据提供商列表创建注册表，defaultKey 为空时使用 GEMINI
func NewRegistry(defaultKey string, providers ...Provider) *Registry {
	r := &Registry{
		providers:  make(map[string]Provider, len(providers)),
		defaultKey: strings.ToUpper(strings.TrimSpace(defaultKey)),
		stats:      make(map[string]*ProviderStats, len(providers)),
	}
	if r.defaultKey == "" {
		r.defaultKey = ProviderGemini
	}

	for _, p := range providers {
		key := strings.ToUpper(p.ProviderKey())
		r.providers[key] = p
		r.stats[key] = &ProviderStats{Key: key}
		utils.Log.Infof("注册LLM提供商: %s", key)
	}

	if _, ok := r.providers[r.defaultKey]; !ok {
		utils.Log.Warnf("默认LLM提供商 %s 未注册", r.defaultKey)
	}
	return r
}

// DefaultKey 默认提供商标识
func (r *Registry) DefaultKey() string {
	return r.defaultKey
}

// Resolve 根据标识查找提供商，空白标识返回默认提供商
func (r *Registry) Resolve(key string) (Provider, error) {
	k := strings.ToUpper(strings.TrimSpace(key))
	if k == "" {
		k = r.defaultKey
	}
	p, ok := r.providers[k]
	if !ok {
		return nil, &models.UnsupportedProviderError{Key: key}
	}
	return p, nil
}

// Keys 已注册的提供商标识，按字母排序
func (r *Registry) Keys() []string {
	keys := lo.Keys(r.providers)
	sort.Strings(keys)
	return keys
}

// ReportResult 记录一次调用结果
func (r *Registry) ReportResult(key string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stat, ok := r.stats[strings.ToUpper(key)]
	if !ok {
		return
	}
	if success {
		stat.SuccessCount++
	}
	stat.TotalCount++
}

// Stats 返回所有提供商的统计信息
func (r *Registry) Stats() []ProviderStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := lo.Map(r.Keys(), func(k string, _ int) ProviderStats {
		s := *r.stats[k]
		s.Default = k == r.defaultKey
		return s
	})
	return out
}
