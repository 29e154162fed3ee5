package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/store"
)

// DefaultTTL 任务状态保留时间
const DefaultTTL = 7 * 24 * time.Hour

// TaskStore 使用 Redis 保存任务状态，多个实例可共享轮询结果
type TaskStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New 创建 Redis 任务存储
func New(client *redis.Client, prefix string, ttl time.Duration) *TaskStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TaskStore{client: client, prefix: prefix, ttl: ttl}
}

// Dial 根据配置连接 Redis
func Dial(ctx context.Context, cfg models.RedisConfig) (*TaskStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}
	return New(client, cfg.KeyPrefix, DefaultTTL), nil
}

func (s *TaskStore) key(id string) string {
	if s.prefix == "" {
		return "task:" + id
	}
	return s.prefix + ":task:" + id
}

// SaveTask 保存任务
func (s *TaskStore) SaveTask(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}
	return s.client.Set(ctx, s.key(task.ID), data, s.ttl).Err()
}

// GetTask 获取任务
func (s *TaskStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var task models.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("解析任务失败: %w", err)
	}
	return &task, nil
}

// Close 关闭连接
func (s *TaskStore) Close() error {
	return s.client.Close()
}
