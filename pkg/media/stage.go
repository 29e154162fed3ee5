package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/runner"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

// WorkspacePrefix 任务工作目录名前缀，清理任务按此前缀识别残留目录
const WorkspacePrefix = "video-processing-"

// 下载过程中的未完成文件
var partialSuffixes = []string{".part", ".ytdl"}

// Stage 负责下载视频、提取音频以及清理工作目录
type Stage struct {
	cfg    models.MediaConfig
	runner runner.Runner
	log    *logrus.Entry
}

// NewStage 创建媒体处理阶段
func NewStage(cfg models.MediaConfig, r runner.Runner) *Stage {
	if r == nil {
		r = runner.NewExecRunner()
	}
	return &Stage{
		cfg:    cfg,
		runner: r,
		log:    utils.WithField("component", "media"),
	}
}

// WorkspaceRoot 工作目录的父目录
func (s *Stage) WorkspaceRoot() string {
	if s.cfg.WorkspaceRoot != "" {
		return s.cfg.WorkspaceRoot
	}
	return os.TempDir()
}

// NewWorkspace 为任务创建独立的临时目录
func (s *Stage) NewWorkspace(taskID string) (string, error) {
	root := s.WorkspaceRoot()
	if err := utils.EnsureDirExists(root); err != nil {
		return "", fmt.Errorf("创建工作目录父目录失败: %w", err)
	}
	dir, err := os.MkdirTemp(root, WorkspacePrefix+taskID+"-")
	if err != nil {
		return "", fmt.Errorf("创建工作目录失败: %w", err)
	}
	s.log.WithField("task_id", taskID).Debugf("创建工作目录: %s", dir)
	return dir, nil
}

// DownloadVideo 使用 yt-dlp 下载视频到工作目录，返回下载得到的文件路径
func (s *Stage) DownloadVideo(ctx context.Context, workspace, url string) (string, error) {
	cmd := runner.Command{
		Name: s.cfg.Downloader,
		Args: s.downloadArgs(workspace, url),
	}

	s.log.WithField("url", url).Info("开始下载视频")
	if err := s.runner.Run(ctx, cmd); err != nil {
		return "", &models.DownloadError{URL: url, Err: err}
	}

	videoPath, err := findDownloadedFile(workspace)
	if err != nil {
		return "", &models.DownloadError{URL: url, Err: err}
	}

	if size, err := utils.FileSize(videoPath); err == nil {
		s.log.Infof("视频下载完成: %s (%s)", filepath.Base(videoPath), utils.FormatFileSize(size))
	}
	return videoPath, nil
}

func (s *Stage) downloadArgs(workspace, url string) []string {
	format := s.cfg.Format
	if format == "" {
		format = "best[ext=mp4]/best"
	}
	maxSize := s.cfg.MaxFileSize
	if maxSize == "" {
		maxSize = "500m"
	}
	return []string{
		"--no-playlist",
		"-o", filepath.Join(workspace, "%(title)s.%(ext)s"),
		"-f", format,
		"--max-filesize", maxSize,
		url,
	}
}

// findDownloadedFile 返回工作目录中第一个已完成的普通文件
func findDownloadedFile(workspace string) (string, error) {
	entries, err := os.ReadDir(workspace)
	if err != nil {
		return "", fmt.Errorf("读取工作目录失败: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || isPartial(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return "", fmt.Errorf("下载结束但工作目录中没有视频文件")
	}
	sort.Strings(names)
	return filepath.Join(workspace, names[0]), nil
}

func isPartial(name string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// ExtractAudio 使用 ffmpeg 将视频转为同名 mp3
func (s *Stage) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	audioPath := utils.ReplaceExt(videoPath, ".mp3")
	if audioPath == videoPath {
		audioPath = utils.ReplaceExt(videoPath, ".audio.mp3")
	}

	codec := s.cfg.AudioCodec
	if codec == "" {
		codec = "libmp3lame"
	}
	quality := s.cfg.AudioQuality
	if quality == "" {
		quality = "2"
	}

	cmd := runner.Command{
		Name: s.cfg.FFmpeg,
		Args: []string{
			"-i", videoPath,
			"-vn",
			"-acodec", codec,
			"-q:a", quality,
			"-y", // 覆盖已存在的文件
			audioPath,
		},
	}

	s.log.Infof("正在从视频提取音频: %s", filepath.Base(videoPath))
	if err := s.runner.Run(ctx, cmd); err != nil {
		return "", &models.AudioExtractionError{VideoPath: videoPath, Err: err}
	}

	// 检查文件是否成功生成
	size, err := utils.FileSize(audioPath)
	if err != nil {
		return "", &models.AudioExtractionError{VideoPath: videoPath, Err: fmt.Errorf("提取的音频文件不存在: %s", audioPath)}
	}
	if size == 0 {
		return "", &models.AudioExtractionError{VideoPath: videoPath, Err: fmt.Errorf("提取的音频文件为空: %s", audioPath)}
	}

	s.log.Infof("音频提取成功: %s (%s)", filepath.Base(audioPath), utils.FormatFileSize(size))
	return audioPath, nil
}

// Cleanup 删除工作目录，目录不存在时什么也不做
func (s *Stage) Cleanup(workspace string) error {
	removed, err := utils.RemoveAllIfExists(workspace)
	if err != nil {
		s.log.Warnf("清理工作目录失败 %s: %v", workspace, err)
		return err
	}
	if removed {
		s.log.Debugf("已清理工作目录: %s", workspace)
	}
	return nil
}
