package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/boshu2/recall/internal/handoffs"
	"github.com/boshu2/recall/internal/inject"
)

var injectCmd = &cobra.Command{
	Use:   "inject [n]",
	Short: "Print the top lessons as a context block",
	Long: `Render the top n lessons (default from config) in injection format,
ordered by the composite score of uses and velocity.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInject,
}

func init() {
	rootCmd.AddCommand(injectCmd)
}

func runInject(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}

	topN := e.cfg.Inject.TopN
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: n must be a positive integer", errUsage)
		}
		topN = n
	}

	all, err := e.lessons.List()
	if err != nil {
		return err
	}
	inject.SortByScore(all)

	active, err := e.handoffs.List(handoffs.ListFilter{})
	if err != nil {
		active = nil
	}

	res := inject.Build(all, active, inject.Options{
		TopN:             topN,
		BudgetWarnTokens: e.cfg.Inject.BudgetWarnTokens,
		ThemeBuckets:     e.cfg.Inject.ThemeBuckets,
		IncludeDuties:    true,
		IncludeTodos:     true,
	})
	if res.Warning != "" {
		cmd.PrintErrln("recall: " + res.Warning)
	}
	fmt.Print(res.Text)
	return nil
}
