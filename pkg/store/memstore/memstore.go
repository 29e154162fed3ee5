package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/store"
)

// Store 进程内存储，实现任务、笔记与术语三种存储接口
// 读写都复制数据，调用方持有的指针与存储内部互不影响
type Store struct {
	mu      sync.RWMutex
	tasks   map[string]models.Task
	notes   map[int64]models.Note
	terms   map[string]models.GlossaryTerm
	noteSeq int64
	termSeq int64
	nowFunc func() time.Time
}

// New 创建内存存储
func New() *Store {
	return &Store{
		tasks:   make(map[string]models.Task),
		notes:   make(map[int64]models.Note),
		terms:   make(map[string]models.GlossaryTerm),
		nowFunc: time.Now,
	}
}

// SaveTask 保存任务
func (s *Store) SaveTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *task
	if t.ResultNoteID != nil {
		id := *t.ResultNoteID
		t.ResultNoteID = &id
	}
	s.tasks[t.ID] = t
	return nil
}

// GetTask 获取任务
func (s *Store) GetTask(_ context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if t.ResultNoteID != nil {
		nid := *t.ResultNoteID
		t.ResultNoteID = &nid
	}
	return &t, nil
}

// SaveNote 保存笔记
func (s *Store) SaveNote(_ context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if note.ID == 0 {
		s.noteSeq++
		note.ID = s.noteSeq
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = s.nowFunc()
	}
	s.notes[note.ID] = *note
	return nil
}

// GetNote 获取笔记
func (s *Store) GetNote(_ context.Context, id int64) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &n, nil
}

// FindByTerm 按术语查找
func (s *Store) FindByTerm(_ context.Context, term string) (*models.GlossaryTerm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.terms[term]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyTerm(g), nil
}

// SaveTerm 按术语插入或更新
func (s *Store) SaveTerm(_ context.Context, term *models.GlossaryTerm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.terms[term.Term]; ok {
		term.ID = existing.ID
	} else if term.ID == 0 {
		s.termSeq++
		term.ID = s.termSeq
	}
	s.terms[term.Term] = *copyTerm(*term)
	return nil
}

func copyTerm(g models.GlossaryTerm) *models.GlossaryTerm {
	if g.LongExplanation != nil {
		long := *g.LongExplanation
		g.LongExplanation = &long
	}
	return &g
}

// Stores 以同一个内存存储提供全部接口
func (s *Store) Stores() *store.Stores {
	return &store.Stores{Tasks: s, Notes: s, Glossary: s}
}
