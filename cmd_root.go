package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/internal/app"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/config"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

// 构建时通过 ldflags 设置
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// 全局选项和状态
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
	}
)

// rootCmd 没有子命令时运行后台服务
var rootCmd = &cobra.Command{
	Use:   "capsflow",
	Short: "Caps-Lock input source switcher for macOS",
	Long: `capsflow switches keyboard input sources with Caps-Lock.

Caps-Lock toggles between the Latin layout and the primary CJK input source,
Option+Caps-Lock toggles the secondary CJK source, and Shift+Caps-Lock engages
the real Caps-Lock. The "input source changed" popup can optionally be moved
off-screen as soon as it appears.

Running capsflow without a subcommand is the same as "capsflow run".`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		globalOpts.configPath = path

		cfg, err = config.LoadFrom(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return setupLogger(cfg.Logging)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		_ = logger.Sync()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd, args)
	},
}

// Execute 执行根命令，失败时以非零状态退出
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: $XDG_CONFIG_HOME/capsflow/config.yaml)")
}

func resolveConfigPath() (string, error) {
	if globalOpts.configPath != "" {
		return globalOpts.configPath, nil
	}
	return config.DefaultPath()
}

// setupLogger 按配置初始化全局日志，--verbose 优先
func setupLogger(c config.LoggingConfig) error {
	level := c.Level
	if globalOpts.verbose {
		level = "debug"
	}

	return logger.InitLoggerWithOptions(logger.Options{
		Level:      level,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	})
}

// newApp 用当前系统的平台适配器组装应用
func newApp(watchConfig bool) (*app.App, *platform.Platform, error) {
	p := platform.New()

	opts := app.Options{
		Platform: p,
		Config:   cfg,
	}
	if watchConfig {
		opts.ConfigPath = globalOpts.configPath
	}

	a, err := app.New(opts)
	if err != nil {
		logger.Error("初始化失败",
			zap.String("component", "cli"),
			zap.Error(err),
		)
		return nil, nil, err
	}
	return a, p, nil
}
