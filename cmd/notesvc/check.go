package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

func newCheckCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "检查配置与外部依赖",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if !checkDependencies(cfg) {
				return fmt.Errorf("缺少必要的依赖项")
			}
			return nil
		},
	}
}

// checkDependencies 检查 yt-dlp 与 ffmpeg 是否可用
func checkDependencies(cfg *models.Config) bool {
	ok := true
	tools := []struct {
		name string
		flag string
	}{
		{cfg.Media.Downloader, "--version"},
		{cfg.Media.FFmpeg, "-version"},
	}
	for _, tool := range tools {
		fmt.Printf("检查 %s... ", tool.name)
		version, found := utils.CheckTool(tool.name, tool.flag)
		if !found {
			color.Red("失败")
			utils.Error("未检测到 %s，请确保已安装并添加到系统路径", tool.name)
			ok = false
			continue
		}
		color.Green("通过 (%s)", version)
	}
	return ok
}
