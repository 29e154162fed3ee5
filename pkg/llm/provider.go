package llm

import (
	"context"

	"github.com/ccp-p/ai-video-notes/pkg/models"
)

// 提供商标识
const (
	ProviderGemini = "GEMINI"
	ProviderOpenAI = "OPENAI"
	ProviderVolces = "VOLCES"
)

// 操作名称，用于错误信息与重试统计
const (
	OpGenerateNotes = "generateNotesFromAudio"
	OpGenerateText  = "generateTextResponse"
)

// Provider 可互换的大模型后端
type Provider interface {
	// ProviderKey 返回大写的唯一标识
	ProviderKey() string
	// GenerateNotesFromAudio 根据音频生成笔记，返回提供商的原始文本
	GenerateNotesFromAudio(ctx context.Context, audioPath string, mode models.GenerationMode) (string, error)
	// GenerateTextResponse 根据提示词生成纯文本回答
	GenerateTextResponse(ctx context.Context, prompt string) (string, error)
}

// PromptSource 笔记生成提示词来源
type PromptSource interface {
	NotePrompt() string
}

// StaticPrompt 固定的提示词
type StaticPrompt string

// NotePrompt 返回提示词文本
func (p StaticPrompt) NotePrompt() string {
	return string(p)
}
