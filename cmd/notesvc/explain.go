package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccp-p/ai-video-notes/internal/bootstrap"
)

func newExplainCommand(opts *Options) *cobra.Command {
	var short, noteContext, provider string
	cmd := &cobra.Command{
		Use:   "explain <term>",
		Short: "获取术语的详细解释，结果会写入缓存",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cfg.Media.JanitorSchedule = ""

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := bootstrap.New(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				app.Close(closeCtx)
			}()

			answer, err := app.Explainer.Explain(ctx, strings.Join(args, " "), short, noteContext, provider)
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		},
	}
	cmd.Flags().StringVar(&short, "short", "", "已有的简短解释")
	cmd.Flags().StringVar(&noteContext, "context", "", "术语所在的笔记上下文")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM提供商，为空使用默认")
	return cmd
}
