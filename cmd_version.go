package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and platform capabilities",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		caps := platform.DetectCapabilities()

		fmt.Printf("capsflow %s (commit: %s, built: %s)\n", version, commit, buildTime)
		fmt.Printf("go:           %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Printf("os version:   %s\n", caps.OSVersion)
		fmt.Printf("native latch: %t\n", caps.NativeCapsLockLatch)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
