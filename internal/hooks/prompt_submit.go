package hooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/boshu2/recall/internal/inject"
	"github.com/boshu2/recall/internal/models"
	"github.com/boshu2/recall/internal/relevance"
)

// promptMinScore filters noise when injecting against a specific prompt.
const promptMinScore = 1

// PromptSubmit injects the lessons most relevant to the user's prompt,
// ranked by the configured scorer and cached for near-duplicate prompts.
func (o *Orchestrator) PromptSubmit(ctx context.Context, input *Input) (*Output, error) {
	query := strings.TrimSpace(input.Prompt)
	if query == "" {
		return nil, nil
	}
	all, err := o.Lessons.List()
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	scored := o.Scorer.Score(ctx, all, query)
	top := relevance.TopN(scored, o.Cfg.Inject.TopN, promptMinScore)
	if len(top) == 0 {
		return nil, nil
	}

	ranked := make([]*models.Lesson, len(top))
	for i, sl := range top {
		ranked[i] = sl.Lesson
	}
	o.logInjected("prompt_submit", ranked, len(ranked))

	return &Output{AdditionalContext: inject.FormatLessons(ranked, len(ranked))}, nil
}
