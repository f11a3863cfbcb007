package hooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/boshu2/recall/internal/handoffs"
	"github.com/boshu2/recall/internal/models"
	"github.com/boshu2/recall/internal/transcript"
)

// Stop processes the transcript tail after each assistant turn: cite
// applied lessons, record LESSON and HANDOFF commands, sync the todo list
// onto the linked handoff, and advance the checkpoint. Command application
// is idempotent at the record level, so a replay after a lost offset
// converges to the same state.
func (o *Orchestrator) Stop(ctx context.Context, input *Input) (*Output, error) {
	if input.TranscriptPath == "" || input.SessionID == "" {
		return nil, nil
	}

	offset := o.State.GetOffset(input.SessionID)
	res, err := transcript.Scan(input.TranscriptPath, offset)
	if err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	if res.Empty {
		return nil, nil
	}
	o.Log.LogScan(input.SessionID, offset, res.NewOffset,
		len(res.Citations), len(res.LessonCommands)+len(res.HandoffCommands))

	if len(res.Citations) > 0 {
		if cited, err := o.Lessons.Cite(res.Citations...); err == nil {
			o.Log.LogCitations(input.SessionID, cited)
		}
	}
	o.applyLessonCommands(res.LessonCommands)
	o.applyHandoffCommands(res.HandoffCommands, input)

	if id := o.State.GetSessionHandoff(input.SessionID); id != "" {
		_ = o.Handoffs.LinkSession(id, input.SessionID)
		if res.NewTodoWrite && len(res.LatestTodos) > 0 {
			o.SyncTodos(id, res.LatestTodos)
		}
	} else if res.EditCount() >= HeavyEditThreshold || res.TodoWrites >= HeavyTodoThreshold {
		fmt.Fprintf(stderr(),
			"recall: heavy work this session (%d files edited, %d todo updates) with no handoff; consider HANDOFF: <title>\n",
			res.EditCount(), res.TodoWrites)
	}

	if err := o.State.SetOffset(input.SessionID, input.TranscriptPath, res.NewOffset); err != nil {
		return nil, fmt.Errorf("persist offset: %w", err)
	}
	_ = o.State.BumpSessionCount()
	return nil, nil
}

func (o *Orchestrator) applyLessonCommands(cmds []transcript.LessonCommand) {
	for _, cmd := range cmds {
		source := models.SourceHuman
		if cmd.AI {
			source = models.SourceAI
		}
		category := cmd.Category
		if category == "" {
			category = models.CategoryPattern
		}
		_, err := o.Lessons.Add(addLessonOptions(category, cmd, source))
		if err != nil {
			// Duplicates are expected on replay; anything else is logged.
			o.Log.Trace("lesson command skipped", map[string]string{
				"title": cmd.Title, "error": err.Error(),
			})
		}
	}
}

func (o *Orchestrator) applyHandoffCommands(cmds []transcript.HandoffCommand, input *Input) {
	for _, cmd := range cmds {
		var err error
		switch cmd.Kind {
		case transcript.HandoffStart:
			err = o.startHandoff(cmd.Title, input)
		case transcript.HandoffTried:
			_, err = o.Handoffs.AddTriedStep(cmd.ID, cmd.Outcome, cmd.Description)
		case transcript.HandoffFieldUpdate:
			err = o.updateHandoffField(cmd)
		case transcript.HandoffComplete:
			_, err = o.Handoffs.Complete(cmd.ID)
		}
		if err != nil {
			o.Log.Trace("handoff command failed", map[string]string{
				"kind": string(cmd.Kind), "id": cmd.ID, "error": err.Error(),
			})
		}
	}
}

func (o *Orchestrator) startHandoff(title string, input *Input) error {
	h := o.findOpenByTitle(title)
	if h == nil {
		var err error
		h, err = o.Handoffs.Add(handoffAddOptions(title))
		if err != nil {
			return err
		}
	}
	_ = o.Handoffs.LinkSession(h.ID, input.SessionID)
	return o.State.SetSessionHandoff(input.SessionID, h.ID, input.TranscriptPath)
}

// findOpenByTitle returns an open handoff whose title normalizes to the same
// form, so replaying a HANDOFF start after a checkpoint reset reattaches to
// the existing record instead of minting a duplicate.
func (o *Orchestrator) findOpenByTitle(title string) *models.Handoff {
	all, err := o.Handoffs.List(handoffs.ListFilter{})
	if err != nil {
		return nil
	}
	norm := models.NormalizeTitle(title)
	for _, h := range all {
		if models.NormalizeTitle(h.Title) == norm {
			return h
		}
	}
	return nil
}

func (o *Orchestrator) updateHandoffField(cmd transcript.HandoffCommand) error {
	fields, err := handoffFieldUpdate(cmd.Field, cmd.Value)
	if err != nil {
		return err
	}
	_, err = o.Handoffs.Update(cmd.ID, fields)
	return err
}

// SyncTodos maps a TodoWrite list onto a handoff: completed items become
// successful tried-steps (deduplicated against existing ones), pending
// items become the next-steps line, and a fully completed list completes
// the handoff.
func (o *Orchestrator) SyncTodos(handoffID string, todos []transcript.TodoItem) {
	h, err := o.Handoffs.GetByID(handoffID)
	if err != nil {
		return
	}
	existing := map[string]bool{}
	for _, t := range h.Tried {
		existing[t.Description] = true
	}

	var pending []string
	allDone := len(todos) > 0
	for _, todo := range todos {
		switch todo.Status {
		case "completed":
			if !existing[todo.Content] {
				_, _ = o.Handoffs.AddTriedStep(handoffID, models.OutcomeSuccess, todo.Content)
			}
		default:
			allDone = false
			pending = append(pending, todo.Content)
		}
	}

	if allDone {
		_, _ = o.Handoffs.Complete(handoffID)
		return
	}
	if len(pending) > 0 {
		next := strings.Join(pending, "; ")
		_, _ = o.Handoffs.Update(handoffID, nextStepsUpdate(next))
	}
}
