package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/boshu2/recall/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Host session lifecycle entry points",
	Long: `Hook commands read one JSON object from stdin and write at most one to
stdout. They always exit 0; a memory failure must never block the host.`,
}

func init() {
	for _, name := range []string{
		"session-start",
		"prompt-submit",
		"stop",
		"pre-compact",
		"session-end",
	} {
		hookName := name
		hookCmd.AddCommand(&cobra.Command{
			Use:   hookName,
			Short: "Run the " + hookName + " hook",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				os.Exit(hooks.Run(hookName, os.Stdin, os.Stdout))
			},
		})
	}
	rootCmd.AddCommand(hookCmd)
}
