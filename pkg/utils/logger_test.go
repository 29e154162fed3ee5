package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	// 测试控制台日志
	err := InitLogger(LogLevelNormal, "")
	assert.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())

	// 测试文件日志
	tempLogFile := filepath.Join(t.TempDir(), "logs", "test.log")
	t.Cleanup(func() { CloseLogger() })

	err = InitLogger(LogLevelVerbose, tempLogFile)
	assert.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())

	Info("写入一条日志")

	// 验证日志文件是否创建
	data, err := os.ReadFile(tempLogFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "写入一条日志"))
}

func TestLogLevels(t *testing.T) {
	tempLogFile := filepath.Join(t.TempDir(), "level_test.log")
	t.Cleanup(func() { CloseLogger() })

	err := InitLogger(LogLevelQuiet, tempLogFile)
	require.NoError(t, err)

	Debug("Debug message")
	Info("Info message")
	Warn("Warning message")
	Error("Error message")

	data, err := os.ReadFile(tempLogFile)
	require.NoError(t, err)
	content := string(data)
	assert.NotContains(t, content, "Debug message")
	assert.NotContains(t, content, "Info message")
	assert.Contains(t, content, "Warning message")
	assert.Contains(t, content, "Error message")
}

func TestCloseLogger(t *testing.T) {
	tempLogFile := filepath.Join(t.TempDir(), "close_test.log")
	require.NoError(t, InitLogger(LogLevelNormal, tempLogFile))
	assert.Equal(t, tempLogFile, LogFile())

	assert.NoError(t, CloseLogger())
	assert.Empty(t, LogFile())
	// 重复关闭不报错
	assert.NoError(t, CloseLogger())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLevel("verbose"))
	assert.Equal(t, logrus.WarnLevel, parseLevel(LogLevelQuiet))
	assert.Equal(t, logrus.ErrorLevel, parseLevel("ERROR"))
	assert.Equal(t, logrus.InfoLevel, parseLevel("unknown"))
}

func TestWithFieldLogging(t *testing.T) {
	err := InitLogger(LogLevelNormal, "")
	assert.NoError(t, err)

	// 只测试是否能正常执行，不验证输出内容
	WithField("key", "value").Info("Test with field")
	WithFields(logrus.Fields{
		"key1": "value1",
		"key2": "value2",
	}).Info("Test with fields")
}
