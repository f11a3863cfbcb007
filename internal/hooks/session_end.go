package hooks

import (
	"context"

	"github.com/boshu2/recall/internal/summarize"
)

// cleanStopReasons are the exits after which background context extraction
// is worth running. Error exits do nothing; the session state is suspect.
var cleanStopReasons = map[string]bool{
	"":              true,
	"user":          true,
	"end_turn":      true,
	"max_turns":     true,
	"stop_sequence": true,
}

// SessionEnd fires context extraction as a detached background child on
// clean exits. The hook itself returns immediately; the host is already
// tearing the session down.
func (o *Orchestrator) SessionEnd(ctx context.Context, input *Input) (*Output, error) {
	if !cleanStopReasons[input.StopReason] {
		return nil, nil
	}
	if input.TranscriptPath == "" || o.State.GetSessionHandoff(input.SessionID) == "" {
		return nil, nil
	}
	jobID, err := summarize.Detach(o.Cfg.StateDir,
		"extract-context", input.TranscriptPath, "--session", input.SessionID)
	if err != nil {
		return nil, err
	}
	o.Log.Trace("detached context extraction", map[string]string{
		"job": jobID, "session": input.SessionID,
	})
	return nil, nil
}
