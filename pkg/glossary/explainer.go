package glossary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/ccp-p/ai-video-notes/pkg/llm"
	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/prompt"
	"github.com/ccp-p/ai-video-notes/pkg/store"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// Resolver 根据标识查找提供商
type Resolver interface {
	Resolve(key string) (llm.Provider, error)
}

// Recorder 记录缓存命中与提供商调用，可以为空
type Recorder interface {
	GlossaryLookup(result string)
	ProviderCall(provider, operation string, success bool)
}

// Explainer 术语深度解释，优先读取缓存
type Explainer struct {
	store    store.GlossaryStore
	resolver Resolver
	recorder Recorder
	group    singleflight.Group
	log      *logrus.Entry
}

// NewExplainer 创建术语解释器
func NewExplainer(s store.GlossaryStore, resolver Resolver, recorder Recorder) *Explainer {
	return &Explainer{
		store:    s,
		resolver: resolver,
		recorder: recorder,
		log:      utils.WithField("component", "glossary"),
	}
}

// Explain 返回术语的长解释，term 按原样区分大小写和空白作为缓存键
// 已缓存非空长解释时直接返回，否则调用提供商生成并写回缓存
// 同一进程内同一术语和提供商的并发请求只触发一次生成，
// 生成不受单个调用方取消的影响，调用方取消时只有它自己提前返回
func (e *Explainer) Explain(ctx context.Context, term, shortExplanation, noteContext, providerKey string) (string, error) {
	if strings.TrimSpace(term) == "" {
		return "", fmt.Errorf("术语不能为空")
	}

	key := term + "\x00" + strings.ToUpper(strings.TrimSpace(providerKey))
	shared := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (interface{}, error) {
		return e.explain(shared, term, shortExplanation, noteContext, providerKey)
	})

	select {
	case <-ctx.Done():
		e.log.WithField("term", term).Warnf("调用方已取消，后台生成继续: %v", ctx.Err())
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			e.log.WithField("term", term).Debug("复用同一术语的并发请求结果")
		}
		return res.Val.(string), nil
	}
}

func (e *Explainer) explain(ctx context.Context, term, shortExplanation, noteContext, providerKey string) (string, error) {
	log := e.log.WithField("term", term)

	entry, err := e.store.FindByTerm(ctx, term)
	switch {
	case err == nil:
		if entry.HasLongExplanation() {
			log.Info("术语解释命中缓存")
			e.lookup("hit")
			return *entry.LongExplanation, nil
		}
	case errors.Is(err, store.ErrNotFound):
		entry = &models.GlossaryTerm{Term: term, ShortExplanation: shortExplanation}
	default:
		return "", fmt.Errorf("查询术语缓存失败: %w", err)
	}
	e.lookup("miss")

	provider, err := e.resolver.Resolve(providerKey)
	if err != nil {
		return "", err
	}

	log.WithField("provider", provider.ProviderKey()).Info("缓存未命中，调用AI生成术语解释")
	long, err := provider.GenerateTextResponse(ctx, prompt.BuildExplanationPrompt(term, noteContext))
	e.providerCall(provider.ProviderKey(), err == nil)
	if err != nil {
		return "", err
	}

	entry.LongExplanation = &long
	if err := e.store.SaveTerm(ctx, entry); err != nil {
		return "", fmt.Errorf("保存术语解释失败: %w", err)
	}
	log.Info("术语解释已保存")
	return long, nil
}

func (e *Explainer) lookup(result string) {
	if e.recorder != nil {
		e.recorder.GlossaryLookup(result)
	}
}

func (e *Explainer) providerCall(provider string, success bool) {
	if e.recorder != nil {
		e.recorder.ProviderCall(provider, llm.OpGenerateText, success)
	}
}
