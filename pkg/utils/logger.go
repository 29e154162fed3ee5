package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 日志级别常量
const (
	LogLevelVerbose = "VERBOSE"
	LogLevelNormal  = "INFO"
	LogLevelQuiet   = "WARN"
)

// LogOptions 日志文件滚动参数
type LogOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	// Log 全局日志实例，未初始化时也可直接使用
	Log = logrus.New()
	// 终端进度条模式下日志只写入文件
	terminalProgressEnabled bool
	rotator                 *lumberjack.Logger
)

// InitLogger 初始化日志系统
// level: 日志级别 (VERBOSE/INFO/WARN/ERROR)
// logFile: 日志文件路径，空字符串表示仅输出到控制台
func InitLogger(level string, logFile string) error {
	return InitLoggerWithOptions(level, logFile, LogOptions{MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30})
}

// InitLoggerWithOptions 初始化日志系统，日志文件按大小滚动
func InitLoggerWithOptions(level string, logFile string, opts LogOptions) error {
	logger := logrus.New()

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if terminalProgressEnabled && logFile == "" {
		logFile = filepath.Join(os.TempDir(), "ai-video-notes.log")
	}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return fmt.Errorf("创建日志目录失败: %w", err)
		}
		if rotator != nil {
			rotator.Close()
		}
		rotator = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		if terminalProgressEnabled {
			logger.SetOutput(rotator)
		} else {
			// 同时输出到文件和控制台
			logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
		}
	} else {
		logger.SetOutput(os.Stdout)
	}

	logger.SetLevel(parseLevel(level))
	Log = logger

	return nil
}

func parseLevel(level string) logrus.Level {
	switch strings.ToUpper(level) {
	case LogLevelVerbose, "DEBUG":
		return logrus.DebugLevel
	case LogLevelNormal:
		return logrus.InfoLevel
	case LogLevelQuiet, "WARNING":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// EnableTerminalProgress 启用终端进度条模式，之后日志不再输出到终端
func EnableTerminalProgress() {
	terminalProgressEnabled = true
	logFile := ""
	if rotator != nil {
		logFile = rotator.Filename
	}
	InitLogger(levelName(Log.GetLevel()), logFile)
}

// DisableTerminalProgress 禁用终端进度条模式
func DisableTerminalProgress() {
	terminalProgressEnabled = false
	if rotator != nil {
		Log.SetOutput(io.MultiWriter(os.Stdout, rotator))
		return
	}
	Log.SetOutput(os.Stdout)
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.DebugLevel, logrus.TraceLevel:
		return LogLevelVerbose
	case logrus.WarnLevel:
		return LogLevelQuiet
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return "ERROR"
	default:
		return LogLevelNormal
	}
}

// LogFile 当前日志文件路径，未写入文件时为空
func LogFile() string {
	if rotator == nil {
		return ""
	}
	return rotator.Filename
}

// CloseLogger 关闭日志文件
func CloseLogger() error {
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

// Debug 输出调试日志
func Debug(format string, args ...interface{}) {
	if len(args) > 0 {
		Log.Debugf(format, args...)
	} else {
		Log.Debug(format)
	}
}

// Info 输出信息日志
func Info(format string, args ...interface{}) {
	if len(args) > 0 {
		Log.Infof(format, args...)
	} else {
		Log.Info(format)
	}
}

// Warn 输出警告日志
func Warn(format string, args ...interface{}) {
	if len(args) > 0 {
		Log.Warnf(format, args...)
	} else {
		Log.Warn(format)
	}
}

// Error 输出错误日志
func Error(format string, args ...interface{}) {
	if len(args) > 0 {
		Log.Errorf(format, args...)
	} else {
		Log.Error(format)
	}
}

// WithField 创建带字段的日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

// WithFields 创建带多个字段的日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
