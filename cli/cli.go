// Package cli is the dev server's command-line front end: a small
// cobra-driven entry point around the devserver package, with subcommands
// instead of a single flag.Parse.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Execute runs the root command, parsing os.Args.
func Execute() {
	root := &cobra.Command{
		Use:   "devserver",
		Short: "A Vite-style dev server with import-analysis HMR",
	}
	root.AddCommand(newServeCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
