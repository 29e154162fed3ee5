package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccp-p/ai-video-notes/internal/bootstrap"
	"github.com/ccp-p/ai-video-notes/internal/server"
	"github.com/ccp-p/ai-video-notes/pkg/models"
	"github.com/ccp-p/ai-video-notes/pkg/utils"
)

func newServeCommand(opts *Options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址，覆盖配置文件")
	return cmd
}

func runServe(cfg *models.Config) error {
	app, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		return err
	}
	if !checkDependencies(cfg) {
		utils.Warn("缺少外部依赖，笔记生成任务将会失败")
	}
	if err := app.Start(); err != nil {
		return err
	}

	srv := server.New(cfg.Addr, app.Router())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-errCh:
	case sig := <-sigs:
		utils.Info("收到信号 %s，开始关闭", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		utils.Warn("关闭HTTP服务失败: %v", shutdownErr)
	}
	if closeErr := app.Close(shutdownCtx); closeErr != nil {
		utils.Warn("释放资源失败: %v", closeErr)
	}
	return err
}
