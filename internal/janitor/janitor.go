package janitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// Janitor 定期清理进程异常退出后残留的工作目录
type Janitor struct {
	root   string
	prefix string
	maxAge time.Duration

	cron *cron.Cron
	now  func() time.Time
	log  *logrus.Entry

	mu    sync.Mutex
	swept int
}

// New 创建清理器，schedule 为 cron 表达式，例如 "@every 30m"
func New(root, prefix, schedule string, maxAge time.Duration) (*Janitor, error) {
	j := &Janitor{
		root:   root,
		prefix: prefix,
		maxAge: maxAge,
		cron:   cron.New(),
		now:    time.Now,
		log:    utils.WithField("component", "janitor"),
	}
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("无效的清理计划 %q: %w", schedule, err)
	}
	return j, nil
}

// Start 启动定时清理
func (j *Janitor) Start() {
	j.log.Infof("工作目录清理已启动: %s，保留 %s", j.root, j.maxAge)
	j.cron.Start()
}

// Stop 停止定时清理并等待正在执行的清理结束
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Swept 累计清理的目录数
func (j *Janitor) Swept() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.swept
}

func (j *Janitor) run() {
	if _, err := j.Sweep(); err != nil {
		j.log.Warnf("清理工作目录失败: %v", err)
	}
}

// Sweep 删除修改时间早于 maxAge 的工作目录，返回删除数量
func (j *Janitor) Sweep() (int, error) {
	stale, err := utils.ListStaleDirs(j.root, j.prefix, j.now().Add(-j.maxAge))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, dir := range stale {
		if _, err := utils.RemoveAllIfExists(dir); err != nil {
			j.log.WithField("dir", dir).Warnf("删除残留目录失败: %v", err)
			continue
		}
		removed++
		j.log.WithField("dir", dir).Info("已删除残留工作目录")
	}

	j.mu.Lock()
	j.swept += removed
	j.mu.Unlock()
	return removed, nil
}
