package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var promoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Copy a project lesson into the system tier",
	Long: `Promotion requires the lesson to be promotable and cited at least 50
times. The project copy stays in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runPromote,
}

func init() {
	rootCmd.AddCommand(promoteCmd)
}

func runPromote(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}

	promoted, err := e.lessons.Promote(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Promoted %s -> [%s] %s\n", args[0], promoted.ID, promoted.Title)
	return nil
}
