package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// GeminiProvider 通过 generateContent REST 接口调用 Gemini，默认提供商
type GeminiProvider struct {
	cfg     models.GeminiConfig
	caller  *RetryingCaller
	prompts PromptSource
	log     *logrus.Entry
}

// NewGeminiProvider 创建 Gemini 提供商
func NewGeminiProvider(cfg models.GeminiConfig, caller *RetryingCaller, prompts PromptSource) *GeminiProvider {
	return &GeminiProvider{
		cfg:     cfg,
		caller:  caller,
		prompts: prompts,
		log:     utils.WithField("provider", ProviderGemini),
	}
}

// ProviderKey 返回 GEMINI
func (g *GeminiProvider) ProviderKey() string {
	return ProviderGemini
}

func (g *GeminiProvider) modelURL(mode models.GenerationMode) string {
	if mode == models.GenerationModePro {
		return g.cfg.ProURL
	}
	return g.cfg.FlashURL
}

func (g *GeminiProvider) headers() map[string]string {
	return map[string]string{"X-goog-api-key": g.cfg.APIKey}
}

// GenerateNotesFromAudio 将音频以 base64 内联发送，返回模型生成的原始文本
func (g *GeminiProvider) GenerateNotesFromAudio(ctx context.Context, audioPath string, mode models.GenerationMode) (string, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("读取音频文件失败: %w", err)
	}

	url := g.modelURL(mode)
	g.log.WithFields(logrus.Fields{
		"mode":       mode,
		"audio_size": utils.FormatFileSize(int64(len(data))),
	}).Info("调用 Gemini 多模态接口生成笔记")

	body := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: g.prompts.NotePrompt()},
				{InlineData: &geminiInlineData{
					MimeType: "audio/mpeg",
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
			},
		}},
	}

	resp, err := g.caller.PostJSON(ctx, ProviderGemini+"."+OpGenerateNotes, url, g.headers(), body)
	if err != nil {
		return "", err
	}
	return ParseGeminiText(resp)
}

// GenerateTextResponse 使用 FLASH 模型生成纯文本
func (g *GeminiProvider) GenerateTextResponse(ctx context.Context, prompt string) (string, error) {
	g.log.Debug("调用 Gemini 生成文本")
	body := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: prompt}},
		}},
	}

	resp, err := g.caller.PostJSON(ctx, ProviderGemini+"."+OpGenerateText, g.cfg.FlashURL, g.headers(), body)
	if err != nil {
		return "", err
	}
	return ParseGeminiText(resp)
}
