package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// maxErrorBody 错误信息中保留的响应体长度
const maxErrorBody = 512

// HTTPStatusError 后端返回了非2xx状态码
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP请求失败: %s 返回状态码 %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("HTTP请求失败: %s 返回状态码 %d: %s", e.URL, e.StatusCode, e.Body)
}

// IsServerError 判断错误是否为可重试的服务端错误 (5xx)
func IsServerError(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500
	}
	return false
}

// DefaultRetryPolicy 3次尝试，2秒起步指数退避，仅重试5xx
func DefaultRetryPolicy() utils.RetryPolicy {
	return utils.DefaultRetryPolicy(IsServerError)
}

// RetryingCaller 对大模型后端的出站调用加上有限次数的指数退避重试
type RetryingCaller struct {
	client  *http.Client
	retrier *utils.Retrier
}

// NewRetryingCaller 创建重试调用器，policy.Retryable 为空时使用 IsServerError
func NewRetryingCaller(client *http.Client, policy utils.RetryPolicy) *RetryingCaller {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if policy.Retryable == nil {
		policy.Retryable = IsServerError
	}
	return &RetryingCaller{
		client:  client,
		retrier: utils.NewRetrier(policy),
	}
}

// HTTPClient 底层 HTTP 客户端
func (c *RetryingCaller) HTTPClient() *http.Client {
	return c.client
}

// Retrier 重试器，可读取错误统计
func (c *RetryingCaller) Retrier() *utils.Retrier {
	return c.retrier
}

// Call 在重试策略下执行任意调用
func (c *RetryingCaller) Call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return c.retrier.Do(ctx, operation, func() error {
		return fn(ctx)
	})
}

// PostJSON 发送 JSON 请求并返回响应体，每次尝试都重新构造请求
func (c *RetryingCaller) PostJSON(ctx context.Context, operation, url string, headers map[string]string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	var respBody []byte
	err = c.retrier.Do(ctx, operation, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("创建请求失败: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("发送请求失败: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("读取响应失败: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &HTTPStatusError{URL: url, StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
		}

		respBody = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
