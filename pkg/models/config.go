package models

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config 表示应用程序的配置
type Config struct {
	Addr   string       `toml:"addr"` // HTTP 监听地址
	Log    LogConfig    `toml:"log"`
	Worker WorkerConfig `toml:"worker"`
	Media  MediaConfig  `toml:"media"`
	LLM    LLMConfig    `toml:"llm"`
	Prompt PromptConfig `toml:"prompt"`
	Store  StoreConfig  `toml:"store"`
	Server ServerConfig `toml:"server"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `toml:"level"`        // VERBOSE/INFO/WARN
	File       string `toml:"file"`         // 为空则仅输出到控制台
	MaxSizeMB  int    `toml:"max_size_mb"`  // 单个日志文件大小上限
	MaxBackups int    `toml:"max_backups"`  // 保留的旧日志数量
	MaxAgeDays int    `toml:"max_age_days"` // 旧日志保留天数
}

// WorkerConfig 任务线程池配置
type WorkerConfig struct {
	CoreSize         int `toml:"core_size"`
	MaxSize          int `toml:"max_size"`
	QueueCapacity    int `toml:"queue_capacity"`
	KeepAliveSeconds int `toml:"keep_alive_seconds"` // 额外工作协程的空闲存活时间
}

// MediaConfig 下载与转码配置
type MediaConfig struct {
	Downloader      string `toml:"downloader"`       // yt-dlp 可执行文件
	FFmpeg          string `toml:"ffmpeg"`           // ffmpeg 可执行文件
	WorkspaceRoot   string `toml:"workspace_root"`   // 临时工作目录的父目录，为空使用系统临时目录
	MaxFileSize     string `toml:"max_file_size"`    // 下载文件大小上限
	Format          string `toml:"format"`           // yt-dlp 格式选择
	AudioCodec      string `toml:"audio_codec"`      // 音频编码器
	AudioQuality    string `toml:"audio_quality"`    // -q:a 参数
	JanitorSchedule string `toml:"janitor_schedule"` // 清理残留工作目录的 cron 表达式，为空不启用
	WorkspaceMaxAge int    `toml:"workspace_max_age_minutes"`
}

// LLMConfig 大模型提供商配置
type LLMConfig struct {
	DefaultProvider string       `toml:"default_provider"`
	TimeoutSeconds  int          `toml:"timeout_seconds"`
	Retry           RetryConfig  `toml:"retry"`
	Gemini          GeminiConfig `toml:"gemini"`
	OpenAI          OpenAIConfig `toml:"openai"`
	Volces          OpenAIConfig `toml:"volces"`
}

// RetryConfig 重试退避配置
type RetryConfig struct {
	MaxAttempts int     `toml:"max_attempts"`
	BaseDelayMs int     `toml:"base_delay_ms"`
	Multiplier  float64 `toml:"multiplier"`
}

// GeminiConfig Gemini 接口配置
type GeminiConfig struct {
	APIKey   string `toml:"api_key"`
	FlashURL string `toml:"flash_url"`
	ProURL   string `toml:"pro_url"`
}

// OpenAIConfig OpenAI 兼容接口配置
type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// PromptConfig 提示词模板配置
type PromptConfig struct {
	NoteTemplatePath string `toml:"note_template_path"` // 为空使用内置模板
	Watch            bool   `toml:"watch"`              // 模板文件变化时自动重载
}

// StoreConfig 存储配置
type StoreConfig struct {
	Driver      string      `toml:"driver"`       // memory / postgres
	PostgresDSN string      `toml:"postgres_dsn"` // driver=postgres 时必填
	TaskDriver  string      `toml:"task_driver"`  // 为空跟随 driver，可选 redis
	Redis       RedisConfig `toml:"redis"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	RateLimitPerSecond float64 `toml:"rate_limit_per_second"` // 生成类接口限流，0 表示不限
	RateLimitBurst     int     `toml:"rate_limit_burst"`
}

// NewDefaultConfig 创建默认配置
func NewDefaultConfig() *Config {
	return &Config{
		Addr: ":8080",
		Log: LogConfig{
			Level:      "INFO",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Worker: WorkerConfig{
			CoreSize:         5,
			MaxSize:          10,
			QueueCapacity:    25,
			KeepAliveSeconds: 60,
		},
		Media: MediaConfig{
			Downloader:      "yt-dlp",
			FFmpeg:          "ffmpeg",
			MaxFileSize:     "500m",
			Format:          "best[ext=mp4]/best",
			AudioCodec:      "libmp3lame",
			AudioQuality:    "2",
			JanitorSchedule: "@every 30m",
			WorkspaceMaxAge: 180,
		},
		LLM: LLMConfig{
			DefaultProvider: "GEMINI",
			TimeoutSeconds:  300,
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelayMs: 2000,
				Multiplier:  2,
			},
			Gemini: GeminiConfig{
				FlashURL: "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent",
				ProURL:   "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-pro:generateContent",
			},
			OpenAI: OpenAIConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
			Volces: OpenAIConfig{
				BaseURL: "https://ark.cn-beijing.volces.com/api/v3",
				Model:   "doubao-1-5-pro-256k-250115",
			},
		},
		Store: StoreConfig{
			Driver: "memory",
			Redis: RedisConfig{
				Addr:      "127.0.0.1:6379",
				KeyPrefix: "ai-video-notes",
			},
		},
		Server: ServerConfig{
			RateLimitPerSecond: 2,
			RateLimitBurst:     5,
		},
	}
}

// Validate 验证配置是否有效
func (c *Config) Validate() error {
	if c.Worker.CoreSize < 1 {
		return &ConfigValidationError{"Worker.CoreSize", "必须大于0"}
	}
	if c.Worker.MaxSize < c.Worker.CoreSize {
		return &ConfigValidationError{"Worker.MaxSize", "不能小于 core_size"}
	}
	if c.Worker.QueueCapacity < 1 {
		return &ConfigValidationError{"Worker.QueueCapacity", "必须大于0"}
	}

	if c.Media.Downloader == "" {
		return &ConfigValidationError{"Media.Downloader", "不能为空"}
	}
	if c.Media.FFmpeg == "" {
		return &ConfigValidationError{"Media.FFmpeg", "不能为空"}
	}

	if c.LLM.Retry.MaxAttempts < 1 || c.LLM.Retry.MaxAttempts > 10 {
		return &ConfigValidationError{"LLM.Retry.MaxAttempts", "必须在1-10之间"}
	}
	if c.LLM.Retry.BaseDelayMs < 0 {
		return &ConfigValidationError{"LLM.Retry.BaseDelayMs", "不能为负数"}
	}
	if c.LLM.Retry.Multiplier < 1 {
		return &ConfigValidationError{"LLM.Retry.Multiplier", "不能小于1"}
	}
	if strings.TrimSpace(c.LLM.DefaultProvider) == "" {
		return &ConfigValidationError{"LLM.DefaultProvider", "不能为空"}
	}

	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return &ConfigValidationError{"Store.PostgresDSN", "driver=postgres 时必须配置"}
		}
	default:
		return &ConfigValidationError{"Store.Driver", "仅支持 memory 或 postgres"}
	}
	switch c.Store.TaskDriver {
	case "", "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return &ConfigValidationError{"Store.PostgresDSN", "task_driver=postgres 时必须配置"}
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return &ConfigValidationError{"Store.Redis.Addr", "task_driver=redis 时必须配置"}
		}
	default:
		return &ConfigValidationError{"Store.TaskDriver", "仅支持 memory、postgres、redis 或留空"}
	}

	return nil
}

// RetryBaseDelay 重试初始延迟
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.LLM.Retry.BaseDelayMs) * time.Millisecond
}

// LoadFromFile 从TOML文件加载配置
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("读取配置文件失败: %v", err)
		return err
	}

	if err := toml.Unmarshal(data, c); err != nil {
		logrus.Errorf("解析配置文件失败: %v", err)
		return err
	}

	if err := c.Validate(); err != nil {
		logrus.Errorf("配置验证失败: %v", err)
		return err
	}

	return nil
}

// ApplyEnv 加载 .env 文件并用环境变量覆盖密钥等敏感配置
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return err
			}
		}
	}

	overrideString(&c.Addr, "NOTES_ADDR")
	overrideString(&c.Log.Level, "NOTES_LOG_LEVEL")
	overrideString(&c.LLM.DefaultProvider, "NOTES_DEFAULT_PROVIDER")
	overrideString(&c.LLM.Gemini.APIKey, "NOTES_GEMINI_API_KEY")
	overrideString(&c.LLM.OpenAI.APIKey, "NOTES_OPENAI_API_KEY")
	overrideString(&c.LLM.OpenAI.BaseURL, "NOTES_OPENAI_BASE_URL")
	overrideString(&c.LLM.Volces.APIKey, "NOTES_VOLCES_API_KEY")
	overrideString(&c.Store.Driver, "NOTES_STORE_DRIVER")
	overrideString(&c.Store.PostgresDSN, "NOTES_POSTGRES_DSN")
	overrideString(&c.Store.TaskDriver, "NOTES_TASK_DRIVER")
	overrideString(&c.Store.Redis.Addr, "NOTES_REDIS_ADDR")
	overrideString(&c.Store.Redis.Password, "NOTES_REDIS_PASSWORD")
	overrideString(&c.Media.WorkspaceRoot, "NOTES_WORKSPACE_ROOT")

	if v := os.Getenv("NOTES_WORKER_CORE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Worker.CoreSize = n
		}
	}
	if v := os.Getenv("NOTES_WORKER_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Worker.MaxSize = n
		}
	}

	return c.Validate()
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// SaveToFile 保存配置到TOML文件
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logrus.Errorf("创建目录失败: %v", err)
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		logrus.Errorf("写入配置文件失败: %v", err)
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}
