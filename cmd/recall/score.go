package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/recall/internal/relevance"
	"github.com/boshu2/recall/internal/transcript"
)

var (
	scoreTop      int
	scoreMin      int
	scoreTimeout  int
	prescorePath  string
	scoreLocalTop int
)

var scoreRelevanceCmd = &cobra.Command{
	Use:   "score-relevance <query>",
	Short: "Score lessons against a query with the configured ranker",
	Long: `Rank lessons 0-10 for relevance. External rankers are cached and fall
back to local BM25 on timeout or failure.`,
	Args: cobra.ExactArgs(1),
	RunE: runScoreRelevance,
}

var scoreLocalCmd = &cobra.Command{
	Use:   "score-local <query>",
	Short: "Score lessons against a query with local BM25 only",
	Args:  cobra.ExactArgs(1),
	RunE:  runScoreLocal,
}

var prescoreCacheCmd = &cobra.Command{
	Use:   "prescore-cache",
	Short: "Warm the relevance cache from a transcript's recent prompts",
	Args:  cobra.NoArgs,
	RunE:  runPrescoreCache,
}

func init() {
	scoreRelevanceCmd.Flags().IntVar(&scoreTop, "top", 0, "limit to the top N results")
	scoreRelevanceCmd.Flags().IntVar(&scoreMin, "min-score", 0, "drop results below this score")
	scoreRelevanceCmd.Flags().IntVar(&scoreTimeout, "timeout", 0, "external ranker timeout in seconds")
	scoreLocalCmd.Flags().IntVar(&scoreLocalTop, "top", 0, "limit to the top N results")
	prescoreCacheCmd.Flags().StringVar(&prescorePath, "transcript", "", "transcript path (required)")
	rootCmd.AddCommand(scoreRelevanceCmd, scoreLocalCmd, prescoreCacheCmd)
}

func runScoreRelevance(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	all, err := e.lessons.List()
	if err != nil {
		return err
	}
	s := e.scorer(true)
	if scoreTimeout > 0 {
		s.Timeout = time.Duration(scoreTimeout) * time.Second
	}
	scored := s.Score(context.Background(), all, args[0])
	printScored(relevance.TopN(scored, scoreTop, scoreMin))
	return nil
}

func runScoreLocal(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	all, err := e.lessons.List()
	if err != nil {
		return err
	}
	scored := relevance.ScoreBM25(all, args[0])
	printScored(relevance.TopN(scored, scoreLocalTop, 0))
	return nil
}

// runPrescoreCache scores the cache for recent user prompts so the next
// prompt-submit hits warm entries.
func runPrescoreCache(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if prescorePath == "" {
		return fmt.Errorf("%w: --transcript is required", errUsage)
	}
	all, err := e.lessons.List()
	if err != nil {
		return err
	}
	res, err := transcript.Scan(prescorePath, 0)
	if err != nil {
		return err
	}

	s := e.scorer(true)
	warmed := 0
	for _, text := range lastN(res.AssistantTexts, 3) {
		s.Score(context.Background(), all, text)
		warmed++
	}
	fmt.Printf("Warmed %d cache entries\n", warmed)
	return nil
}

func printScored(scored []relevance.ScoredLesson) {
	for _, sl := range scored {
		fmt.Printf("%2d [%s] %s\n", sl.Score, sl.Lesson.ID, sl.Lesson.Title)
	}
}

func lastN(items []string, n int) []string {
	if len(items) > n {
		return items[len(items)-n:]
	}
	return items
}
