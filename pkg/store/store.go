package store

import (
	"context"
	"errors"

	"github.com/ccp-p/ai-video-notes/pkg/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// TaskStore 任务状态存储
type TaskStore interface {
	// SaveTask 按 ID 插入或覆盖任务
	SaveTask(ctx context.Context, task *models.Task) error
	// GetTask 任务不存在时返回 ErrNotFound
	GetTask(ctx context.Context, id string) (*models.Task, error)
}

// NoteStore 笔记存储，笔记创建后不再修改
type NoteStore interface {
	// SaveNote 保存笔记并回填 ID 与创建时间
	SaveNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id int64) (*models.Note, error)
}

// GlossaryStore 术语解释缓存
type GlossaryStore interface {
	// FindByTerm 术语不存在时返回 ErrNotFound
	FindByTerm(ctx context.Context, term string) (*models.GlossaryTerm, error)
	// SaveTerm 按术语插入或更新，并回填 ID
	SaveTerm(ctx context.Context, term *models.GlossaryTerm) error
}

// Stores 应用使用的全部存储
type Stores struct {
	Tasks    TaskStore
	Notes    NoteStore
	Glossary GlossaryStore
	// Close 释放底层连接，可以为空
	Close func() error
}
