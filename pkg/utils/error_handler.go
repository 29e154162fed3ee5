package utils

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy 重试策略，纯数据
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	// Retryable 判断错误是否可以重试，为空时所有错误都重试
	Retryable func(error) bool
}

// DefaultRetryPolicy 默认策略: 3次尝试，2秒起步，每次翻倍
func DefaultRetryPolicy(retryable func(error) bool) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
		Retryable:   retryable,
	}
}

// BackoffDelay 第 n 次重试前的等待时间，n 从0开始，不加抖动
func (p RetryPolicy) BackoffDelay(n uint) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(n)))
}

// Retrier 按策略执行函数并在失败时重试，同时记录错误统计
type Retrier struct {
	Policy RetryPolicy

	mu         sync.Mutex
	errorStats map[string]map[string]int // 操作 -> 错误信息 -> 计数
}

// NewRetrier 创建新的重试器
func NewRetrier(policy RetryPolicy) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrier{
		Policy:     policy,
		errorStats: make(map[string]map[string]int),
	}
}

// Do 执行函数，可重试的错误按指数退避重试，返回最后一次的错误
func (r *Retrier) Do(ctx context.Context, operation string, fn func() error) error {
	attempts := r.Policy.MaxAttempts
	return retry.Do(
		func() error {
			err := fn()
			if err != nil {
				r.updateErrorStats(operation, err.Error())
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.LastErrorOnly(true),
		retry.RetryIf(r.retryable),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return r.Policy.BackoffDelay(n)
		}),
		retry.OnRetry(func(n uint, err error) {
			if int(n)+1 < attempts {
				Warn("操作 %s 失败 (尝试 %d/%d): %s，等待 %s 后重试", operation, n+1, attempts, err, r.Policy.BackoffDelay(n))
			}
		}),
	)
}

func (r *Retrier) retryable(err error) bool {
	if r.Policy.Retryable == nil {
		return true
	}
	return r.Policy.Retryable(err)
}

// 更新错误统计
func (r *Retrier) updateErrorStats(operation string, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errorStats[operation] == nil {
		r.errorStats[operation] = make(map[string]int)
	}
	r.errorStats[operation][errMsg]++
}

// GetErrorStats 获取错误统计信息的副本
func (r *Retrier) GetErrorStats() map[string]map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]map[string]int, len(r.errorStats))
	for op, errs := range r.errorStats {
		inner := make(map[string]int, len(errs))
		for msg, n := range errs {
			inner[msg] = n
		}
		out[op] = inner
	}
	return out
}

// PrintErrorStats 打印错误统计信息
func (r *Retrier) PrintErrorStats() {
	stats := r.GetErrorStats()
	if len(stats) == 0 {
		Info("没有错误记录")
		return
	}

	Info("错误统计:")
	for operation, errors := range stats {
		Info("操作: %s", operation)
		for errMsg, count := range errors {
			Info("  - %s: %d次", errMsg, count)
		}
	}
}
