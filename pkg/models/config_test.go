package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	// 验证默认值是否正确设置
	assert.Equal(t, 5, config.Worker.CoreSize)
	assert.Equal(t, 10, config.Worker.MaxSize)
	assert.Equal(t, 25, config.Worker.QueueCapacity)
	assert.Equal(t, "500m", config.Media.MaxFileSize)
	assert.Equal(t, "GEMINI", config.LLM.DefaultProvider)
	assert.Equal(t, 3, config.LLM.Retry.MaxAttempts)
	assert.Equal(t, 2000, config.LLM.Retry.BaseDelayMs)
	assert.Equal(t, 2.0, config.LLM.Retry.Multiplier)
	assert.Equal(t, "memory", config.Store.Driver)
	assert.NoError(t, config.Validate())
}

func TestConfigValidate(t *testing.T) {
	config := NewDefaultConfig()
	config.Worker.MaxSize = 2 // 小于 core_size

	err := config.Validate()
	require.Error(t, err)
	var configErr *ConfigValidationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "Worker.MaxSize", configErr.Field)

	// 恢复有效值并测试另一个字段
	config.Worker.MaxSize = 10
	config.Store.Driver = "postgres"
	err = config.Validate()
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "Store.PostgresDSN", configErr.Field)

	config.Store.PostgresDSN = "postgres://localhost/notes"
	assert.NoError(t, config.Validate())

	config.Store.TaskDriver = "etcd"
	err = config.Validate()
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "Store.TaskDriver", configErr.Field)
}

func TestConfigSaveAndLoad(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "config.toml")

	originalConfig := NewDefaultConfig()
	originalConfig.Addr = ":9090"
	originalConfig.Worker.CoreSize = 2
	originalConfig.LLM.Gemini.APIKey = "key-1"

	require.NoError(t, originalConfig.SaveToFile(tempFile))

	loadedConfig := NewDefaultConfig()
	require.NoError(t, loadedConfig.LoadFromFile(tempFile))

	assert.Equal(t, ":9090", loadedConfig.Addr)
	assert.Equal(t, 2, loadedConfig.Worker.CoreSize)
	assert.Equal(t, "key-1", loadedConfig.LLM.Gemini.APIKey)
}

func TestConfigLoadPartialFile(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "partial.toml")
	content := `
addr = ":7070"

[llm.retry]
max_attempts = 5
`
	require.NoError(t, os.WriteFile(tempFile, []byte(content), 0644))

	config := NewDefaultConfig()
	require.NoError(t, config.LoadFromFile(tempFile))

	// 未出现在文件中的字段保留默认值
	assert.Equal(t, ":7070", config.Addr)
	assert.Equal(t, 5, config.LLM.Retry.MaxAttempts)
	assert.Equal(t, 2000, config.LLM.Retry.BaseDelayMs)
	assert.Equal(t, "yt-dlp", config.Media.Downloader)
}

func TestConfigApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("NOTES_GEMINI_API_KEY=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("NOTES_GEMINI_API_KEY") })
	t.Setenv("NOTES_WORKER_CORE_SIZE", "3")

	config := NewDefaultConfig()
	require.NoError(t, config.ApplyEnv(envFile))

	assert.Equal(t, "from-dotenv", config.LLM.Gemini.APIKey)
	assert.Equal(t, 3, config.Worker.CoreSize)
}
