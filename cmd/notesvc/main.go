package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ccp-p/ai-video-notes/internal/bootstrap"
	"github.com/ccp-p/ai-video-notes/pkg/models"
)

// Options 所有子命令共用的参数
type Options struct {
	ConfigPath string
	EnvFile    string
}

// AddFlags 注册通用参数
func (o *Options) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.ConfigPath, "config", "c", os.Getenv("NOTES_CONFIG_FILE"), "TOML配置文件路径")
	flagSet.StringVar(&o.EnvFile, "env-file", ".env", "环境变量文件")
}

func (o *Options) loadConfig() (*models.Config, error) {
	fmt.Print("加载配置... ")
	cfg, err := bootstrap.LoadConfig(o.ConfigPath, o.EnvFile)
	if err != nil {
		color.Red("失败")
		return nil, err
	}
	if o.ConfigPath == "" {
		color.Yellow("未指定配置文件，使用默认配置")
	} else {
		color.Green("成功")
	}
	return cfg, nil
}

func main() {
	opts := &Options{}
	root := &cobra.Command{
		Use:           "notesvc",
		Short:         "AI 视频笔记服务",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			printWelcome()
		},
	}
	opts.AddFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCommand(opts),
		newGenerateCommand(opts),
		newExplainCommand(opts),
		newCheckCommand(opts),
	)

	if err := root.Execute(); err != nil {
		color.Red("错误: %v", err)
		os.Exit(1)
	}
}

func printWelcome() {
	fmt.Println()
	color.Cyan("================================")
	color.Cyan("     AI 视频笔记 - Go 实现版本     ")
	color.Cyan("================================")
	fmt.Println()
}
