// Package summarize is the boundary to external language models: context
// extraction from transcript tails and lesson relevance scoring. Two
// providers exist, the claude CLI as a subprocess and the OpenAI API; both
// return plain JSON that parses into store types. Everything here is
// best-effort and deadline-bounded; callers fall back when it fails.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boshu2/recall/internal/models"
)

// maxTailChars caps how much transcript tail one prompt carries.
const maxTailChars = 20000

// Summarizer extracts a resumable context record from the tail of a
// session transcript.
type Summarizer interface {
	ExtractContext(ctx context.Context, transcriptTail []string) (*models.ContextRecord, error)
}

// extractPrompt asks for the exact JSON shape of models.ContextRecord.
const extractPrompt = `Summarize this coding session tail for a later resume.
Respond with only a JSON object, no prose, with these keys:
{"summary": "one paragraph", "critical_files": [], "recent_changes": [], "learnings": [], "blockers": []}

Session tail:
`

// scorePrompt asks for integer relevance scores keyed by lesson ID.
const scorePrompt = `Score each lesson 0-10 for relevance to this query. Respond with only a JSON object mapping lesson ID to integer score.

Query: %s

Lessons:
%s`

// buildExtractInput joins the tail, newest last, capped to maxTailChars.
func buildExtractInput(tail []string) string {
	joined := strings.Join(tail, "\n\n")
	if len(joined) > maxTailChars {
		joined = joined[len(joined)-maxTailChars:]
	}
	return extractPrompt + joined
}

// buildScoreInput renders the scoring prompt for a query and lesson set.
func buildScoreInput(query string, lessons []*models.Lesson) string {
	var b strings.Builder
	for _, l := range lessons {
		fmt.Fprintf(&b, "[%s] %s: %s\n", l.ID, l.Title, l.Content)
	}
	return fmt.Sprintf(scorePrompt, query, b.String())
}

// parseContextJSON decodes a model response into a context record,
// tolerating fenced code blocks around the JSON.
func parseContextJSON(raw string) (*models.ContextRecord, error) {
	var rec models.ContextRecord
	if err := json.Unmarshal([]byte(stripFences(raw)), &rec); err != nil {
		return nil, fmt.Errorf("parse context response: %w", err)
	}
	if rec.Empty() {
		return nil, fmt.Errorf("empty context response")
	}
	return &rec, nil
}

// parseScoresJSON decodes a model response into per-lesson scores.
func parseScoresJSON(raw string) (map[string]int, error) {
	scores := map[string]int{}
	if err := json.Unmarshal([]byte(stripFences(raw)), &scores); err != nil {
		return nil, fmt.Errorf("parse score response: %w", err)
	}
	return scores, nil
}

// stripFences removes a surrounding markdown code fence, if present, and
// otherwise trims to the outermost JSON object.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
