package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/instance"
	"github.com/chenyang-zz/capsflow/pkg/logger"
)

var runOpts struct {
	noPopup bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Caps-Lock switcher in the foreground",
	Long: `Run the Caps-Lock switcher and, unless disabled, the popup suppression.

Only one instance can run per user; a second launch exits immediately.
Input Monitoring permission is needed for Caps-Lock switching and
Accessibility permission for popup suppression. Missing permissions only
disable the affected feature.

The config file is watched while running: toggling popup.enabled takes
effect immediately.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runOpts.noPopup, "no-popup", false,
		"Disable popup suppression regardless of the config file")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	lock, err := instance.Acquire()
	if errors.Is(err, instance.ErrAlreadyRunning) {
		if path, perr := instance.DefaultPath(); perr == nil {
			if pid, ok := instance.HolderPID(path); ok {
				return fmt.Errorf("capsflow is already running (pid %d)", pid)
			}
		}
		return errors.New("capsflow is already running")
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("释放单实例锁失败",
				zap.String("component", "cli"),
				zap.Error(err),
			)
		}
	}()

	if runOpts.noPopup {
		cfg.Popup.Enabled = false
	}

	a, _, err := newApp(true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("CapsFlow 启动",
		zap.String("component", "cli"),
		zap.String("version", version),
		zap.String("config", globalOpts.configPath),
		zap.String("lock", lock.Path()),
	)

	// 阻塞在主线程上直到收到信号
	return a.Run(ctx)
}
