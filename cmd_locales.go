package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chenyang-zz/capsflow/internal/domain/models"
	"github.com/chenyang-zz/capsflow/internal/infrastructure/platform"
)

var localesOpts struct {
	all bool
}

var localesCmd = &cobra.Command{
	Use:   "locales",
	Short: "Show configured input sources and whether they are installed",
	Long: `Show the input source configured for each locale, whether it is
installed, and which one is currently selected.

Latin and primary-cjk must be installed for capsflow to start. The first
installed secondary locale is used for Option+Caps-Lock.

Use --all to list every selectable keyboard input source instead.`,
	Args: cobra.NoArgs,
	RunE: runLocales,
}

func init() {
	rootCmd.AddCommand(localesCmd)

	localesCmd.Flags().BoolVar(&localesOpts.all, "all", false,
		"List every selectable keyboard input source")
}

func runLocales(cmd *cobra.Command, args []string) error {
	registry := platform.NewInputSourceRegistry()

	sources, err := registry.Sources()
	if err != nil {
		return fmt.Errorf("failed to list input sources: %w", err)
	}

	installed := make(map[string]platform.InputSource, len(sources))
	for _, src := range sources {
		installed[src.ID()] = src
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	if localesOpts.all {
		fmt.Fprintln(w, "ID\tNAME\tSELECTED")
		for _, src := range sources {
			fmt.Fprintf(w, "%s\t%s\t%s\n", src.ID(), src.Name(), mark(src.IsSelected()))
		}
		return nil
	}

	ids := cfg.Locales.IDs()
	tertiary := ""

	fmt.Fprintln(w, "LOCALE\tID\tINSTALLED\tSELECTED\tROLE")
	for _, l := range models.AllLocales {
		id := ids[l]
		src, ok := installed[id]

		role := ""
		switch {
		case l.Required():
			role = "required"
		case ok && tertiary == "":
			tertiary = id
			role = "option+caps-lock"
		}

		selected := ok && src.IsSelected()
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l, id, mark(ok), mark(selected), role)
	}
	return nil
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
