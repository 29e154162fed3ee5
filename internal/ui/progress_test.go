package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/ai-video-notes/internal/controller"
	"github.com/ccp-p/ai-video-notes/pkg/models"
)

func init() {
	color.NoColor = true
}

func TestNewProgressBar(t *testing.T) {
	bar := NewProgressBar(100, "测试", "初始状态")

	assert.Equal(t, 100, bar.Total)
	assert.Equal(t, 0, bar.Current)
	assert.Equal(t, "测试", bar.Prefix)
	assert.Equal(t, "初始状态", bar.Suffix)
	assert.Equal(t, 30, bar.Width)
}

func TestProgressBarUpdate(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(4, "测试", "")
	bar.out = &buf

	bar.Update(2, "进行中")
	assert.Equal(t, 2, bar.Current)
	assert.Contains(t, buf.String(), " 50% | 2/4")
	assert.Contains(t, buf.String(), "进行中")

	// 超过总数按总数处理，负数忽略
	bar.Update(10, "")
	assert.Equal(t, 4, bar.Current)
	assert.Equal(t, "进行中", bar.Suffix)
	bar.Update(-1, "忽略")
	assert.Equal(t, 4, bar.Current)
}

func TestProgressBarString(t *testing.T) {
	bar := NewProgressBar(10, "测试", "完成")
	bar.Current = 10
	s := bar.String()
	assert.Contains(t, s, strings.Repeat("█", 30))
	assert.Contains(t, s, "100%")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", formatDuration(0))
	assert.Equal(t, "01:05", formatDuration(65*time.Second))
	assert.Equal(t, "61:01", formatDuration(time.Hour+61*time.Second))
}

func TestTaskProgressCompleted(t *testing.T) {
	var buf bytes.Buffer
	p := NewTaskProgress(&buf)

	for _, msg := range []string{controller.MsgDownloading, controller.MsgExtracting, controller.MsgGenerating, controller.MsgSaving} {
		p.OnStatus(models.Task{ID: "t", Status: models.TaskStatusProcessing, StatusMessage: msg})
	}
	assert.Equal(t, 4, p.bar.Current)

	p.OnStatus(models.Task{ID: "t", Status: models.TaskStatusCompleted, StatusMessage: controller.MsgCompleted})

	select {
	case task := <-p.Done():
		assert.Equal(t, models.TaskStatusCompleted, task.Status)
	default:
		t.Fatal("完成后没有通知")
	}
	assert.Contains(t, buf.String(), "✓ "+controller.MsgCompleted)
}

func TestTaskProgressFailed(t *testing.T) {
	var buf bytes.Buffer
	p := NewTaskProgress(&buf)

	p.OnStatus(models.Task{ID: "t", Status: models.TaskStatusFailed, StatusMessage: "下载失败"})
	// 重复的终止状态不会阻塞
	p.OnStatus(models.Task{ID: "t", Status: models.TaskStatusFailed, StatusMessage: "下载失败"})

	task := <-p.Done()
	require.Equal(t, models.TaskStatusFailed, task.Status)
	assert.Contains(t, buf.String(), "✗ 任务失败: 下载失败")
}
