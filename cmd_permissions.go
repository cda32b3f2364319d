package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
	"github.com/chenyang-zz/capsflow/internal/services"
)

var permissionsOpts struct {
	open bool
}

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Show the system permissions capsflow needs",
	Long: `Show whether Input Monitoring (Caps-Lock switching) and Accessibility
(popup suppression) are granted. Nothing is requested.

Use --open to open the System Settings page of every missing permission.`,
	Args: cobra.NoArgs,
	RunE: runPermissions,
}

func init() {
	rootCmd.AddCommand(permissionsCmd)

	permissionsCmd.Flags().BoolVar(&permissionsOpts.open, "open", false,
		"Open System Settings for missing permissions")
}

func runPermissions(cmd *cobra.Command, args []string) error {
	pm := services.NewPermissionManager(platform.NewPermissionChecker(), nil)
	reports := pm.Report()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PERMISSION\tSTATUS")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\n", r.Type, r.Status)
	}
	w.Flush()

	var err error
	for _, r := range reports {
		if r.Status == platform.PermissionStatusGranted {
			continue
		}
		fmt.Println(r.Hint)
		if permissionsOpts.open {
			err = multierr.Append(err, pm.OpenSystemSettings(r.Type))
		}
	}
	return err
}
