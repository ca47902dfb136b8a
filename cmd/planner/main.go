package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"shift-planner/internal/config"
	"shift-planner/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// cli - состояние, общее для подкоманд
type cli struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	var dbPath, storageDir string

	root := &cobra.Command{
		Use:   "planner",
		Short: "排班生成与调整服务",
		Long: `planner 生成并保存团队排班。

serve 启动 HTTP API、Telegram 机器人和每月草稿任务；
generate 和 export 在命令行中直接处理一个团队的排班。

配置来自环境变量（以及当前目录的 .env）。`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DatabaseURL = dbPath
			}
			if storageDir != "" {
				cfg.StorageDir = storageDir
			}
			c.cfg = cfg
			c.logger = logger.Init(cfg)
			c.logger.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite 文件路径（覆盖 DATABASE_URL）")
	root.PersistentFlags().StringVar(&storageDir, "storage", "", "日志与导出目录（覆盖 STORAGE_DIR）")

	root.AddCommand(
		newServeCmd(c),
		newGenerateCmd(c),
		newExportCmd(c),
	)
	return root
}
