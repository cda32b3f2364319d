package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
)

var switchCmd = &cobra.Command{
	Use:   "switch <locale>",
	Short: "Switch to a locale once and exit",
	Long: `Switch the current input source to the given locale using the same
protocol as Caps-Lock, then exit once the switch has been verified.

Locales: latin, primary-cjk, secondary-cjk-a, secondary-cjk-b
Aliases: english/en, korean/ko, japanese/ja, chinese/zh

Switching to the current locale does nothing.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"latin", "primary-cjk", "secondary-cjk-a", "secondary-cjk-b"},
	RunE:      runSwitch,
}

var nudgeCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Switch away and back to make the input source popup appear",
	Args:  cobra.NoArgs,
	RunE:  runNudge,
}

func init() {
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(nudgeCmd)
}

func runSwitch(cmd *cobra.Command, args []string) error {
	target, err := models.ParseLocale(args[0])
	if err != nil {
		return err
	}

	a, p, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if err := a.SetLocale(target); err != nil {
		return err
	}

	// 运行主循环直到切换协议（含一次重试）结束
	ctx, cancel := context.WithTimeout(context.Background(), switchWindow())
	defer cancel()
	if err := p.MainLoop.Run(ctx); err != nil {
		return err
	}

	fmt.Println(a.CurrentLocale())
	return nil
}

func runNudge(cmd *cobra.Command, args []string) error {
	a, p, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	a.NudgePopup()

	ctx, cancel := context.WithTimeout(context.Background(), switchWindow())
	defer cancel()
	return p.MainLoop.Run(ctx)
}

// switchWindow 切换协议从发出到最后一次校验所需的时间，留出余量
func switchWindow() time.Duration {
	s := cfg.Switching
	return 2*(s.SettleDelay+s.VerifyDelay) + 200*time.Millisecond
}
