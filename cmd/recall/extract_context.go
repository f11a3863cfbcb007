package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/recall/internal/transcript"
)

var (
	extractSession string
	extractGitRef  string
)

// extractTailMessages is how many assistant texts feed the summarizer.
const extractTailMessages = 10

var extractContextCmd = &cobra.Command{
	Use:   "extract-context <transcript-path>",
	Short: "Summarize a transcript tail onto the session's handoff",
	Long: `Run the configured summarizer over the transcript tail and attach the
resulting context record to the handoff linked to the session. Used as the
detached background job fired by session-end.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtractContext,
}

func init() {
	extractContextCmd.Flags().StringVar(&extractSession, "session", "", "session ID (required)")
	extractContextCmd.Flags().StringVar(&extractGitRef, "git-ref", "", "record this git ref instead of HEAD")
	rootCmd.AddCommand(extractContextCmd)
}

func runExtractContext(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}
	if extractSession == "" {
		return fmt.Errorf("%w: --session is required", errUsage)
	}

	handoffID := e.state.GetSessionHandoff(extractSession)
	if handoffID == "" {
		return fmt.Errorf("no handoff linked to session %s", extractSession)
	}
	summarizer := e.summarizer()
	if summarizer == nil {
		return fmt.Errorf("no summarizer configured")
	}

	tail, err := transcript.Tail(args[0], extractTailMessages)
	if err != nil {
		return err
	}
	if len(tail) == 0 {
		return fmt.Errorf("transcript has no assistant messages")
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(e.cfg.Relevance.TimeoutSecs)*time.Second)
	defer cancel()

	rec, err := summarizer.ExtractContext(ctx, tail)
	if err != nil {
		return err
	}
	if extractGitRef != "" {
		rec.GitRef = extractGitRef
	}
	if err := e.handoffs.SetContext(handoffID, *rec); err != nil {
		return err
	}
	fmt.Printf("Context extracted onto %s\n", handoffID)
	return nil
}
