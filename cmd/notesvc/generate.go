package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ccp-p/ai-video-notes/internal/bootstrap"
	"github.com/ccp-p/ai-video-notes/internal/ui"
	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

type generateOptions struct {
	UserID   int64
	Mode     string
	Provider string
	OutDir   string
}

func newGenerateCommand(opts *Options) *cobra.Command {
	g := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <video-url>",
		Short: "在终端中为一个视频生成笔记",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), cfg, g, args[0])
		},
	}
	cmd.Flags().Int64Var(&g.UserID, "user", 1, "笔记所属用户ID")
	cmd.Flags().StringVar(&g.Mode, "mode", string(models.GenerationModeFlash), "生成模式 FLASH 或 PRO")
	cmd.Flags().StringVar(&g.Provider, "provider", "", "LLM提供商，为空使用默认")
	cmd.Flags().StringVarP(&g.OutDir, "out", "o", "notes", "Markdown 输出目录，为空不导出")
	return cmd
}

func runGenerate(ctx context.Context, cfg *models.Config, g *generateOptions, url string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !checkDependencies(cfg) {
		return fmt.Errorf("缺少必要的依赖项，无法继续")
	}

	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		app.Close(closeCtx)
	}()

	utils.EnableTerminalProgress()
	defer utils.DisableTerminalProgress()
	if logFile := utils.LogFile(); logFile != "" {
		color.Cyan("日志写入: %s", logFile)
	}

	progress := ui.NewTaskProgress(nil)
	app.Orchestrator.AddListener(progress.OnStatus)

	start := time.Now()
	if _, err := app.Orchestrator.Submit(ctx, models.GenerationRequest{
		URL:      url,
		UserID:   g.UserID,
		Mode:     models.GenerationMode(g.Mode),
		Provider: g.Provider,
	}); err != nil {
		return err
	}

	var task models.Task
	select {
	case task = <-progress.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if task.Status != models.TaskStatusCompleted {
		return fmt.Errorf("任务 %s 失败: %s", task.ID, task.StatusMessage)
	}
	color.Green("笔记ID: %d，用时 %s", *task.ResultNoteID, utils.FormatChineseTimeDuration(time.Since(start).Seconds()))

	if g.OutDir == "" {
		return nil
	}
	note, err := app.Orchestrator.Note(ctx, *task.ResultNoteID)
	if err != nil {
		return err
	}
	app.Exporter.OutputFolder = g.OutDir
	path, err := app.Exporter.ExportFile(ctx, note, g.Provider)
	if err != nil {
		return err
	}
	color.Green("已导出: %s", path)
	return nil
}
