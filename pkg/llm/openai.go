package llm

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// 术语解释等纯文本生成使用的系统提示词
const textSystemPrompt = "你是一个专业的技术讲解助手，回答要结构清晰、重点突出。"

// OpenAIProvider OpenAI 兼容的聊天补全接口 (OPENAI、火山方舟 VOLCES)
// 未配置 API Key 时作为占位提供商，所有操作都返回 UnsupportedProviderError
type OpenAIProvider struct {
	key    string
	cfg    models.OpenAIConfig
	client *openai.Client
	caller *RetryingCaller
	log    *logrus.Entry
}

// NewOpenAIProvider 创建 OpenAI 兼容提供商，key 为注册表中的标识
func NewOpenAIProvider(key string, cfg models.OpenAIConfig, caller *RetryingCaller) *OpenAIProvider {
	p := &OpenAIProvider{
		key:    strings.ToUpper(key),
		cfg:    cfg,
		caller: caller,
		log:    utils.WithField("provider", strings.ToUpper(key)),
	}
	if cfg.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		if caller != nil {
			clientCfg.HTTPClient = caller.HTTPClient()
		}
		p.client = openai.NewClientWithConfig(clientCfg)
	}
	return p
}

// ProviderKey 返回注册标识
func (p *OpenAIProvider) ProviderKey() string {
	return p.key
}

// Configured 是否配置了 API Key
func (p *OpenAIProvider) Configured() bool {
	return p.client != nil
}

// GenerateNotesFromAudio 聊天补全接口不接受音频输入
func (p *OpenAIProvider) GenerateNotesFromAudio(ctx context.Context, audioPath string, mode models.GenerationMode) (string, error) {
	return "", &models.UnsupportedProviderError{
		Key:       p.key,
		Operation: OpGenerateNotes,
		Reason:    "聊天补全接口不支持直接输入音频，请先进行语音识别",
	}
}

// GenerateTextResponse 调用聊天补全接口生成文本
func (p *OpenAIProvider) GenerateTextResponse(ctx context.Context, prompt string) (string, error) {
	if p.client == nil {
		return "", &models.UnsupportedProviderError{
			Key:       p.key,
			Operation: OpGenerateText,
			Reason:    "未配置 API Key",
		}
	}

	req := openai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: textSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	p.log.WithField("model", p.cfg.Model).Debug("调用聊天补全接口")

	var resp openai.ChatCompletionResponse
	err := p.caller.Call(ctx, p.key+"."+OpGenerateText, func(ctx context.Context) error {
		var err error
		resp, err = p.client.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", &models.InvalidGenerationOutputError{Reason: p.key + " 响应中没有 choices"}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &models.InvalidGenerationOutputError{Reason: p.key + " 返回内容为空"}
	}

	p.log.WithField("total_tokens", resp.Usage.TotalTokens).Debug("聊天补全完成")
	return content, nil
}
