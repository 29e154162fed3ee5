package models

import (
	"fmt"
	"strings"
)

// ExternalToolError 外部命令以非零退出码结束
type ExternalToolError struct {
	Command  string
	ExitCode int
	Output   string // 合并后的输出尾部
	Err      error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("外部命令执行失败: %s (退出码 %d)", e.Command, e.ExitCode)
	if e.Err != nil && e.ExitCode < 0 {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 支持error chain
func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// DownloadError 视频下载失败
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("视频下载失败 (%s): %s", e.URL, e.Err.Error())
	}
	return fmt.Sprintf("视频下载失败 (%s)", e.URL)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// AudioExtractionError 音频提取失败
type AudioExtractionError struct {
	VideoPath string
	Err       error
}

func (e *AudioExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("音频提取失败 (%s): %s", e.VideoPath, e.Err.Error())
	}
	return fmt.Sprintf("音频提取失败 (%s)", e.VideoPath)
}

func (e *AudioExtractionError) Unwrap() error {
	return e.Err
}

// UnsupportedProviderError 未知的提供商，或提供商不支持该操作
type UnsupportedProviderError struct {
	Key       string
	Operation string // 为空表示提供商本身不存在
	Reason    string
}

func (e *UnsupportedProviderError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("不支持的LLM提供商: %s", e.Key)
	}
	msg := fmt.Sprintf("LLM提供商 %s 不支持操作 %s", e.Key, e.Operation)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// InvalidGenerationOutputError 提供商返回的内容无法解析或结构不符合要求
type InvalidGenerationOutputError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *InvalidGenerationOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("AI返回内容无效: %s: %s", e.Reason, e.Err.Error())
	}
	return "AI返回内容无效: " + e.Reason
}

func (e *InvalidGenerationOutputError) Unwrap() error {
	return e.Err
}

// ProviderFailureKind 提供商自身报告的失败类型
type ProviderFailureKind string

const (
	ProviderFailureError   ProviderFailureKind = "error"   // 响应中带有 error 字段
	ProviderFailureBlocked ProviderFailureKind = "blocked" // 没有 candidates，生成被拦截
)

// ProviderReportedError LLM后端明确返回了错误或拦截了生成
type ProviderReportedError struct {
	Provider string
	Kind     ProviderFailureKind
	Message  string
}

func (e *ProviderReportedError) Error() string {
	switch e.Kind {
	case ProviderFailureBlocked:
		return fmt.Sprintf("%s 响应缺少 candidates，生成可能被拦截，原因: %s", e.Provider, e.Message)
	default:
		return fmt.Sprintf("%s API 返回错误: %s", e.Provider, e.Message)
	}
}

// ConfigValidationError 表示配置验证错误
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("配置验证错误: %s - %s", e.Field, e.Message)
}

// FailureMessage 返回写入任务状态的错误信息，保证非空
func FailureMessage(err error) string {
	if err == nil {
		return "未知错误"
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return fmt.Sprintf("未知错误 (%T)", err)
	}
	return msg
}
