package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/ccp-p/ai-video-notes/internal/controller"
	"github.com/ccp-p/ai-video-notes/pkg/models"
)

// 各阶段对应的进度步数
var stageSteps = map[string]int{
	controller.MsgQueued:      0,
	controller.MsgDownloading: 1,
	controller.MsgExtracting:  2,
	controller.MsgGenerating:  3,
	controller.MsgSaving:      4,
	controller.MsgCompleted:   5,
}

const totalSteps = 5

// ProgressBar 进度条结构
type ProgressBar struct {
	Total     int       // 总步数
	Current   int       // 当前进度
	Prefix    string    // 前缀
	Suffix    string    // 后缀
	Width     int       // 进度条宽度
	FillChar  string    // 填充字符
	EmptyChar string    // 空白字符
	StartTime time.Time // 开始时间

	out io.Writer
}

// NewProgressBar 创建新的进度条
func NewProgressBar(total int, prefix string, suffix string) *ProgressBar {
	return &ProgressBar{
		Total:     total,
		Prefix:    prefix,
		Suffix:    suffix,
		Width:     30,
		FillChar:  "█",
		EmptyChar: "░",
		StartTime: time.Now(),
		out:       os.Stdout,
	}
}

// Update 更新进度
func (p *ProgressBar) Update(current int, suffix string) {
	if current < 0 {
		return
	}
	if current > p.Total {
		current = p.Total
	}
	p.Current = current
	if suffix != "" {
		p.Suffix = suffix
	}
	fmt.Fprint(p.out, color.CyanString("\r"+p.String()))
}

// String 返回进度条的字符串表示
func (p *ProgressBar) String() string {
	percent := 0.0
	if p.Total > 0 {
		percent = float64(p.Current) / float64(p.Total)
	}
	filled := int(percent * float64(p.Width))
	if filled > p.Width {
		filled = p.Width
	}
	bar := strings.Repeat(p.FillChar, filled) + strings.Repeat(p.EmptyChar, p.Width-filled)

	return fmt.Sprintf("%s [%s] %3.0f%% | %d/%d | %s | %s",
		p.Prefix, bar, percent*100, p.Current, p.Total, formatDuration(time.Since(p.StartTime)), p.Suffix)
}

// 格式化持续时间为 MM:SS 格式
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// TaskProgress 在终端展示单个任务的处理进度
type TaskProgress struct {
	mu   sync.Mutex
	bar  *ProgressBar
	done chan models.Task
	once sync.Once
}

// NewTaskProgress 创建任务进度展示
func NewTaskProgress(out io.Writer) *TaskProgress {
	bar := NewProgressBar(totalSteps, "生成笔记", controller.MsgQueued)
	if out != nil {
		bar.out = out
	}
	return &TaskProgress{bar: bar, done: make(chan models.Task, 1)}
}

// OnStatus 任务状态回调，可直接注册到编排器
func (p *TaskProgress) OnStatus(task models.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch task.Status {
	case models.TaskStatusFailed:
		fmt.Fprintln(p.bar.out)
		fmt.Fprintln(p.bar.out, color.RedString("✗ 任务失败: %s", task.StatusMessage))
	case models.TaskStatusCompleted:
		p.bar.Update(totalSteps, task.StatusMessage)
		fmt.Fprintln(p.bar.out)
		fmt.Fprintln(p.bar.out, color.GreenString("✓ %s", task.StatusMessage))
	default:
		if step, ok := stageSteps[task.StatusMessage]; ok {
			p.bar.Update(step, task.StatusMessage)
		}
		return
	}

	p.once.Do(func() { p.done <- task })
}

// Done 任务进入终止状态时返回最终任务
func (p *TaskProgress) Done() <-chan models.Task {
	return p.done
}
