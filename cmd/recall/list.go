package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/recall/internal/inject"
	"github.com/boshu2/recall/internal/models"
)

var (
	listStale    bool
	listCategory string
	listSearch   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List lessons from both tiers",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listStale, "stale", false, "only lessons past the stale window")
	listCmd.Flags().StringVar(&listCategory, "category", "", "filter by category")
	listCmd.Flags().StringVar(&listSearch, "search", "", "substring filter on title and content")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}

	category := models.Category(listCategory)
	if listCategory != "" && !models.ValidCategory(category) {
		return fmt.Errorf("%w: invalid category %q", errUsage, listCategory)
	}

	all, err := e.lessons.Search(listSearch, category, listStale)
	if err != nil {
		return err
	}
	inject.SortByScore(all)
	for _, l := range all {
		fmt.Printf("[%s] %s %s (%s, uses %d)\n", l.ID, l.Rating(), l.Title, l.Category, l.Uses)
	}
	return nil
}
