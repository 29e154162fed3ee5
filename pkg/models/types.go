package models

import (
	"strings"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// IsTerminal 判断是否为终止状态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task 表示一次笔记生成请求对应的异步任务
type Task struct {
	ID            string     `json:"id" db:"id"`
	Status        TaskStatus `json:"status" db:"status"`
	StatusMessage string     `json:"status_message" db:"status_message"` // 进度或错误详情
	ResultNoteID  *int64     `json:"result_note_id,omitempty" db:"result_note_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Note 生成的结构化笔记
type Note struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	VideoURL  string    `json:"video_url" db:"video_url"`
	Content   string    `json:"content" db:"content"` // {"notes": [block, ...]}
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// 笔记块类型
const (
	BlockHeading        = "heading"
	BlockParagraph      = "paragraph"
	BlockListItem       = "list_item"
	BlockKnowledgePoint = "knowledge_point"
)

// GlossaryTerm 术语解释缓存
type GlossaryTerm struct {
	ID               int64   `json:"id" db:"id"`
	Term             string  `json:"term" db:"term"`
	ShortExplanation string  `json:"short_explanation" db:"short_explanation"`
	LongExplanation  *string `json:"long_explanation,omitempty" db:"long_explanation"`
}

// HasLongExplanation 是否已有可直接使用的长解释
func (g *GlossaryTerm) HasLongExplanation() bool {
	return g != nil && g.LongExplanation != nil && strings.TrimSpace(*g.LongExplanation) != ""
}

// GenerationMode 生成模式
type GenerationMode string

const (
	GenerationModeFlash GenerationMode = "FLASH" // 快速模式
	GenerationModePro   GenerationMode = "PRO"   // 高质量模式
)

// ParseGenerationMode 解析生成模式，空值默认为 FLASH
func ParseGenerationMode(s string) (GenerationMode, bool) {
	switch GenerationMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", GenerationModeFlash:
		return GenerationModeFlash, true
	case GenerationModePro:
		return GenerationModePro, true
	default:
		return "", false
	}
}

// GenerationRequest 笔记生成请求
type GenerationRequest struct {
	TaskID   string         `json:"task_id,omitempty"`
	URL      string         `json:"url"`
	UserID   int64          `json:"user_id"`
	Mode     GenerationMode `json:"mode"`
	Provider string         `json:"provider,omitempty"`
}
