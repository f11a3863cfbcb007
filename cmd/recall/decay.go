package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var decayForce bool

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run the periodic lesson decay cycle",
	Long: `Halve every lesson's velocity and decrement uses on lessons unused for
30 days. Runs at most once per 7 days unless --force is given; skipped when
no sessions have finished since the last run.`,
	Args: cobra.NoArgs,
	RunE: runDecay,
}

func init() {
	decayCmd.Flags().BoolVar(&decayForce, "force", false, "ignore the interval and activity checks")
	rootCmd.AddCommand(decayCmd)
}

func runDecay(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}

	ran, err := e.decayEngine().Run(decayForce)
	if err != nil {
		return err
	}
	if ran {
		fmt.Println("Decay cycle applied")
	} else {
		fmt.Println("Decay not due; use --force to override")
	}
	return nil
}
