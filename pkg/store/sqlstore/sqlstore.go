package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/store"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// 表名
const (
	TableTasks    = "nv_tasks"
	TableNotes    = "nv_notes"
	TableGlossary = "nv_glossary_terms"
)

// Schema 建表语句
const Schema = `
CREATE TABLE IF NOT EXISTS ` + TableTasks + ` (
	id             VARCHAR(64) PRIMARY KEY,
	status         VARCHAR(16) NOT NULL,
	status_message TEXT NOT NULL DEFAULT '',
	result_note_id BIGINT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ` + TableNotes + ` (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT NOT NULL,
	video_url  TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ` + TableGlossary + ` (
	id                BIGSERIAL PRIMARY KEY,
	term              VARCHAR(255) NOT NULL UNIQUE,
	short_explanation TEXT NOT NULL DEFAULT '',
	long_explanation  TEXT NULL
);
`

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	taskColumns     = []string{"id", "status", "status_message", "result_note_id", "created_at", "updated_at"}
	noteColumns     = []string{"id", "user_id", "video_url", "content", "created_at"}
	glossaryColumns = []string{"id", "term", "short_explanation", "long_explanation"}
)

// ErrorSqlBuild 构造SQL失败
func ErrorSqlBuild(err error) error {
	return fmt.Errorf("构造SQL失败: %w", err)
}

// Store PostgreSQL 存储，实现任务、笔记与术语三种存储接口
type Store struct {
	db *sqlx.DB
}

// Open 连接数据库
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return New(db), nil
}

// New 使用已有连接创建存储
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Install 创建数据表
func (s *Store) Install(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("初始化数据表失败: %w", err)
	}
	utils.Info("数据表初始化完成")
	return nil
}

// Close 关闭连接
func (s *Store) Close() error {
	return s.db.Close()
}

// Stores 以同一个连接提供全部接口
func (s *Store) Stores() *store.Stores {
	return &store.Stores{Tasks: s, Notes: s, Glossary: s, Close: s.Close}
}

func buildSaveTask(task *models.Task) (string, []interface{}, error) {
	return psql.Insert(TableTasks).
		Columns(taskColumns...).
		Values(task.ID, task.Status, task.StatusMessage, task.ResultNoteID, task.CreatedAt, task.UpdatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, status_message = EXCLUDED.status_message, " +
			"result_note_id = EXCLUDED.result_note_id, updated_at = EXCLUDED.updated_at").
		ToSql()
}

// SaveTask 插入或更新任务
func (s *Store) SaveTask(ctx context.Context, task *models.Task) error {
	query, args, err := buildSaveTask(task)
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func buildGetTask(id string) (string, []interface{}, error) {
	return psql.Select(taskColumns...).From(TableTasks).Where(sq.Eq{"id": id}).ToSql()
}

// GetTask 获取任务
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query, args, err := buildGetTask(id)
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var task models.Task
	if err := s.db.GetContext(ctx, &task, query, args...); err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

func buildSaveNote(note *models.Note) (string, []interface{}, error) {
	return psql.Insert(TableNotes).
		Columns("user_id", "video_url", "content", "created_at").
		Values(note.UserID, note.VideoURL, note.Content, note.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
}

// SaveNote 保存笔记并回填 ID
func (s *Store) SaveNote(ctx context.Context, note *models.Note) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	query, args, err := buildSaveNote(note)
	if err != nil {
		return ErrorSqlBuild(err)
	}
	return s.db.QueryRowxContext(ctx, query, args...).Scan(&note.ID)
}

func buildGetNote(id int64) (string, []interface{}, error) {
	return psql.Select(noteColumns...).From(TableNotes).Where(sq.Eq{"id": id}).ToSql()
}

// GetNote 获取笔记
func (s *Store) GetNote(ctx context.Context, id int64) (*models.Note, error) {
	query, args, err := buildGetNote(id)
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var note models.Note
	if err := s.db.GetContext(ctx, &note, query, args...); err != nil {
		return nil, notFound(err)
	}
	return &note, nil
}

func buildFindByTerm(term string) (string, []interface{}, error) {
	return psql.Select(glossaryColumns...).From(TableGlossary).Where(sq.Eq{"term": term}).ToSql()
}

// FindByTerm 按术语查找
func (s *Store) FindByTerm(ctx context.Context, term string) (*models.GlossaryTerm, error) {
	query, args, err := buildFindByTerm(term)
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var g models.GlossaryTerm
	if err := s.db.GetContext(ctx, &g, query, args...); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func buildSaveTerm(term *models.GlossaryTerm) (string, []interface{}, error) {
	return psql.Insert(TableGlossary).
		Columns("term", "short_explanation", "long_explanation").
		Values(term.Term, term.ShortExplanation, term.LongExplanation).
		Suffix("ON CONFLICT (term) DO UPDATE SET short_explanation = EXCLUDED.short_explanation, " +
			"long_explanation = EXCLUDED.long_explanation RETURNING id").
		ToSql()
}

// SaveTerm 按术语插入或更新
func (s *Store) SaveTerm(ctx context.Context, term *models.GlossaryTerm) error {
	query, args, err := buildSaveTerm(term)
	if err != nil {
		return ErrorSqlBuild(err)
	}
	return s.db.QueryRowxContext(ctx, query, args...).Scan(&term.ID)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
