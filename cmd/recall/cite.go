package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var citeCmd = &cobra.Command{
	Use:   "cite <id>...",
	Short: "Mark lessons as applied",
	Long: `Increment uses and velocity for each lesson and stamp today as its
last-used date. Unknown IDs are skipped silently.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCite,
}

func init() {
	rootCmd.AddCommand(citeCmd)
}

func runCite(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}

	cited, err := e.lessons.Cite(args...)
	if err != nil {
		return err
	}
	if len(cited) > 0 {
		fmt.Printf("Cited %s\n", strings.Join(cited, ", "))
	}
	return nil
}
