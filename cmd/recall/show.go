package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one lesson in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}

	l, err := e.lessons.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("[%s] %s %s\n", l.ID, l.Rating(), l.Title)
	fmt.Printf("Category: %s | Level: %s | Source: %s\n", l.Category, l.Level, l.Source)
	fmt.Printf("Uses: %d | Velocity: %.2f | Learned: %s | Last used: %s\n",
		l.Uses, l.Velocity, l.Learned, l.LastUsed)
	if l.Type != "" {
		fmt.Printf("Type: %s\n", l.Type)
	}
	if len(l.Triggers) > 0 {
		fmt.Printf("Triggers: %s\n", strings.Join(l.Triggers, ", "))
	}
	fmt.Printf("Promotable: %v\n\n%s\n", l.Promotable, l.Content)
	return nil
}
