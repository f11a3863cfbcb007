package hooks

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/boshu2/recall/internal/handoffs"
	"github.com/boshu2/recall/internal/models"
	"github.com/boshu2/recall/internal/state"
	"github.com/boshu2/recall/internal/transcript"
)

// snapshotTailMessages is how many assistant texts the fallback snapshot
// keeps.
const snapshotTailMessages = 3

// PreCompact captures session context before the host compacts the
// conversation. It finds or auto-creates the working handoff, asks the
// summarizer for a context record, and falls back to a minimal snapshot
// file when extraction is unavailable.
func (o *Orchestrator) PreCompact(ctx context.Context, input *Input) (*Output, error) {
	res, err := transcript.Scan(input.TranscriptPath, 0)
	if err != nil {
		res = &transcript.Result{}
	}

	handoffID := o.findWorkingHandoff(input, res)
	if handoffID == "" {
		return nil, nil
	}

	if err := o.extractContext(ctx, handoffID, input.TranscriptPath); err != nil {
		o.Log.Trace("context extraction failed", map[string]string{
			"handoff": handoffID, "error": err.Error(),
		})
		return nil, o.writeSnapshot(input, handoffID, res)
	}
	return nil, nil
}

// findWorkingHandoff returns the session's handoff, auto-creating one when
// the transcript shows heavy work without one.
func (o *Orchestrator) findWorkingHandoff(input *Input, res *transcript.Result) string {
	if id := o.State.GetSessionHandoff(input.SessionID); id != "" {
		return id
	}
	if res.EditCount() < HeavyEditThreshold && res.TodoWrites < HeavyTodoThreshold {
		return ""
	}

	title := autoHandoffTitle(res)
	status := models.StatusInProgress
	phase := models.PhaseImplementing
	h, err := o.Handoffs.Add(handoffs.AddOptions{Title: title, Status: status, Phase: phase})
	if err != nil {
		return ""
	}
	_ = o.Handoffs.LinkSession(h.ID, input.SessionID)
	_ = o.State.SetSessionHandoff(input.SessionID, h.ID, input.TranscriptPath)
	return h.ID
}

// autoTitleMaxLength keeps auto-generated titles to one readable line.
const autoTitleMaxLength = 80

// autoHandoffTitle names the auto-captured handoff after what the user asked
// for, falling back to the edit footprint when no prompt text was scanned.
func autoHandoffTitle(res *transcript.Result) string {
	for _, text := range res.UserTexts {
		line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
		if line = strings.TrimSpace(line); line != "" {
			return models.Truncate(line, autoTitleMaxLength)
		}
	}
	if len(res.EditedFiles) > 0 {
		return fmt.Sprintf("Work in progress across %d files", res.EditCount())
	}
	return "Work in progress (auto-captured)"
}

// extractContext runs the summarizer over the transcript tail and stores
// the result on the handoff.
func (o *Orchestrator) extractContext(ctx context.Context, handoffID, transcriptPath string) error {
	if o.Summarizer == nil {
		return fmt.Errorf("no summarizer configured")
	}
	tail, err := transcript.Tail(transcriptPath, snapshotTailMessages)
	if err != nil || len(tail) == 0 {
		return fmt.Errorf("no transcript tail")
	}
	rec, err := o.Summarizer.ExtractContext(ctx, tail)
	if err != nil {
		return err
	}
	rec.GitRef = currentGitRef(o.Cfg.ProjectDir)
	return o.Handoffs.SetContext(handoffID, *rec)
}

// writeSnapshot records the minimal fallback surfaced by a later
// session-start.
func (o *Orchestrator) writeSnapshot(input *Input, handoffID string, res *transcript.Result) error {
	texts := res.AssistantTexts
	if len(texts) > snapshotTailMessages {
		texts = texts[len(texts)-snapshotTailMessages:]
	}
	for i, t := range texts {
		texts[i] = models.Truncate(strings.TrimSpace(t), models.MaxContentLength)
	}
	return state.WriteSnapshot(o.Cfg.RecallDir(), state.Snapshot{
		ID:           handoffID,
		SessionID:    input.SessionID,
		CapturedAt:   o.now().UTC().Format(time.RFC3339),
		HandoffID:    handoffID,
		RecentFiles:  res.EditedFiles,
		LastMessages: texts,
	})
}

// currentGitRef returns HEAD's short hash, or "" outside a repo.
func currentGitRef(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
