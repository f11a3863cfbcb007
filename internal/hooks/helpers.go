package hooks

import (
	"fmt"
	"strings"

	"github.com/boshu2/recall/internal/handoffs"
	"github.com/boshu2/recall/internal/lessons"
	"github.com/boshu2/recall/internal/models"
	"github.com/boshu2/recall/internal/transcript"
)

func addLessonOptions(category models.Category, cmd transcript.LessonCommand, source models.Source) lessons.AddOptions {
	return lessons.AddOptions{
		Level:      models.LevelProject,
		Category:   category,
		Title:      cmd.Title,
		Content:    cmd.Content,
		Source:     source,
		Promotable: true,
		Type:       cmd.Type,
	}
}

func handoffAddOptions(title string) handoffs.AddOptions {
	return handoffs.AddOptions{
		Title:  title,
		Status: models.StatusInProgress,
		Phase:  models.PhaseResearch,
	}
}

func nextStepsUpdate(next string) handoffs.UpdateFields {
	return handoffs.UpdateFields{NextSteps: &next}
}

// handoffFieldUpdate maps a "HANDOFF UPDATE <id>: field: value" command to
// store update fields.
func handoffFieldUpdate(field, value string) (handoffs.UpdateFields, error) {
	var f handoffs.UpdateFields
	switch field {
	case "status":
		s := models.Status(value)
		if !models.ValidStatus(s) {
			return f, fmt.Errorf("invalid status %q", value)
		}
		f.Status = &s
	case "phase":
		p := models.Phase(value)
		if !models.ValidPhase(p) {
			return f, fmt.Errorf("invalid phase %q", value)
		}
		f.Phase = &p
	case "title":
		f.Title = &value
	case "description", "desc":
		f.Description = &value
	case "next", "next-steps", "next_steps":
		f.NextSteps = &value
	case "checkpoint":
		f.Checkpoint = &value
	case "refs":
		refs := splitCSV(value)
		f.Refs = &refs
	case "blocked-by", "blocked_by":
		ids := splitCSV(value)
		f.BlockedBy = &ids
	default:
		return f, fmt.Errorf("unknown field %q", field)
	}
	return f, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
