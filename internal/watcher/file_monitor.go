package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// ChangeHandler 文件内容变化后的回调
type ChangeHandler func(filePath string)

// FileMonitor 监控单个文件的变化
// 监控的是所在目录，编辑器以重命名方式保存文件时同样能收到事件
type FileMonitor struct {
	watcher      *fsnotify.Watcher
	filePath     string
	handler      ChangeHandler
	debounceTime time.Duration
	timer        *time.Timer
	mutex        sync.Mutex
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewFileMonitor 创建新的文件监控器
func NewFileMonitor(filePath string, handler ChangeHandler, debounceTime time.Duration) (*FileMonitor, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("解析文件路径失败: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	return &FileMonitor{
		watcher:      w,
		filePath:     abs,
		handler:      handler,
		debounceTime: debounceTime,
		stopChan:     make(chan struct{}),
	}, nil
}

// Start 开始监控
func (m *FileMonitor) Start() error {
	dir := filepath.Dir(m.filePath)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("监控目录不存在: %w", err)
	}

	if err := m.watcher.Add(dir); err != nil {
		return fmt.Errorf("添加监控目录失败: %w", err)
	}

	go m.watchLoop()

	utils.Info("开始监控文件: %s", m.filePath)
	return nil
}

// Stop 停止监控，可重复调用
func (m *FileMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.watcher.Close()

		m.mutex.Lock()
		if m.timer != nil {
			m.timer.Stop()
		}
		m.mutex.Unlock()

		utils.Info("停止监控文件: %s", m.filePath)
	})
}

// watchLoop 监控循环
func (m *FileMonitor) watchLoop() {
	for {
		select {
		case <-m.stopChan:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleEvent(event)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			utils.Error("监控文件时出错: %v", err)
		}
	}
}

// 处理文件事件，同一文件的连续写入合并为一次回调
func (m *FileMonitor) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	if filepath.Clean(event.Name) != m.filePath {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounceTime, m.fire)

	utils.Debug("检测到文件变化: %s", event.Name)
}

func (m *FileMonitor) fire() {
	select {
	case <-m.stopChan:
		return
	default:
	}

	// 文件被删除或正在替换时跳过
	if !utils.CheckFileExists(m.filePath) {
		return
	}
	if m.handler != nil {
		m.handler(m.filePath)
	}
}
