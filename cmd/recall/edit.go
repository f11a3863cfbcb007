package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/recall/internal/lessons"
	"github.com/boshu2/recall/internal/models"
)

var (
	editTitle    string
	editContent  string
	editCategory string
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a lesson's fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editTitle, "title", "", "new title")
	editCmd.Flags().StringVar(&editContent, "content", "", "new content")
	editCmd.Flags().StringVar(&editCategory, "category", "", "new category")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}

	var fields lessons.EditFields
	if cmd.Flags().Changed("title") {
		fields.Title = &editTitle
	}
	if cmd.Flags().Changed("content") {
		fields.Content = &editContent
	}
	if cmd.Flags().Changed("category") {
		category := models.Category(editCategory)
		if !models.ValidCategory(category) {
			return fmt.Errorf("%w: invalid category %q", errUsage, editCategory)
		}
		fields.Category = &category
	}
	if fields == (lessons.EditFields{}) {
		return fmt.Errorf("%w: nothing to edit", errUsage)
	}

	l, err := e.lessons.Edit(args[0], fields)
	if err != nil {
		return err
	}
	fmt.Printf("Updated [%s] %s\n", l.ID, l.Title)
	return nil
}
