package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("临时错误")

func fastPolicy(retryable func(error) bool) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
		Retryable:   retryable,
	}
}

func TestBackoffDelay(t *testing.T) {
	p := DefaultRetryPolicy(nil)
	assert.Equal(t, 2*time.Second, p.BackoffDelay(0))
	assert.Equal(t, 4*time.Second, p.BackoffDelay(1))
	assert.Equal(t, 8*time.Second, p.BackoffDelay(2))

	// 倍数小于1按1处理
	p.Multiplier = 0
	assert.Equal(t, 2*time.Second, p.BackoffDelay(3))
}

func TestRetrierDo(t *testing.T) {
	r := NewRetrier(fastPolicy(nil))

	// 测试成功的情况
	callCount := 0
	err := r.Do(context.Background(), "test_success", func() error {
		callCount++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)

	// 测试失败后重试直到成功的情况
	callCount = 0
	err = r.Do(context.Background(), "test_retry_success", func() error {
		callCount++
		if callCount < 3 {
			return errTransient
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)

	// 测试总是失败的情况
	callCount = 0
	testErr := errors.New("总是失败")
	err = r.Do(context.Background(), "test_always_fail", func() error {
		callCount++
		return testErr
	})
	assert.ErrorIs(t, err, testErr)
	assert.Equal(t, 3, callCount)

	stats := r.GetErrorStats()
	assert.Equal(t, 2, len(stats))
	assert.Equal(t, 2, stats["test_retry_success"][errTransient.Error()])
	assert.Equal(t, 3, stats["test_always_fail"]["总是失败"])
}

func TestRetrierNonRetryable(t *testing.T) {
	r := NewRetrier(fastPolicy(func(err error) bool {
		return errors.Is(err, errTransient)
	}))

	permanent := errors.New("永久错误")
	callCount := 0
	err := r.Do(context.Background(), "test_permanent", func() error {
		callCount++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, callCount) // 不可重试的错误只调用一次
}

func TestRetrierContextCanceled(t *testing.T) {
	r := NewRetrier(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour, Multiplier: 1})

	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, "test_cancel", func() error {
			callCount++
			return errTransient
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
		assert.Equal(t, 1, callCount)
	case <-time.After(2 * time.Second):
		t.Fatal("取消上下文后重试没有结束")
	}
}

func TestPrintErrorStats(t *testing.T) {
	r := NewRetrier(fastPolicy(nil))
	r.PrintErrorStats()

	r.updateErrorStats("op1", "err1")
	r.updateErrorStats("op1", "err1")
	r.updateErrorStats("op2", "err2")

	stats := r.GetErrorStats()
	assert.Equal(t, 2, stats["op1"]["err1"])
	assert.Equal(t, 1, stats["op2"]["err2"])

	// 返回的是副本
	stats["op1"]["err1"] = 100
	assert.Equal(t, 2, r.GetErrorStats()["op1"]["err1"])

	r.PrintErrorStats()
}
