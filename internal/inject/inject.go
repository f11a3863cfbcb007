// Package inject assembles the context block a session receives: top
// lessons, active handoffs rendered compactly, duty reminders, and a todo
// continuation prompt. Output is budgeted in estimated tokens; the
// assembler sheds lessons first and duties second rather than truncating
// mid-record.
package inject

import (
	"fmt"
	"sort"
	"strings"

	"github.com/boshu2/recall/internal/models"
)

// LessonDuty is the standing instruction for recording and citing lessons.
const LessonDuty = `LESSON DUTY: When user corrects you, something fails, or you discover a pattern:
  ASK: "Should I record this as a lesson? [category]: title - content"
  CITE: When applying a lesson, say "Applying [L###]: ..."
  BEFORE git/implementing: Check if high-star lessons apply
  AFTER mistakes: Cite the violated lesson, propose new if novel`

// HandoffDuty is the standing instruction for tracking major work.
const HandoffDuty = `HANDOFF DUTY: For MAJOR work (3+ files, multi-step, integration), you MUST:
  1. Use TodoWrite to track progress - todos auto-sync to handoffs
  2. If working without TodoWrite, output: HANDOFF: title
  MAJOR = new feature, 4+ files, architectural, integration, refactoring
  MINOR = single-file fix, config, docs (no handoff needed)
  COMPLETION: When all todos done in this session:
    - Run /review if code changed, then ASK: "Any lessons from this work?"
    - Or manually: HANDOFF COMPLETE <id>`

// compactTailSteps is how many recent tried-steps render verbatim; earlier
// ones collapse into a theme tally.
const compactTailSteps = 3

// charsPerToken is the token estimate divisor.
const charsPerToken = 4

// DefaultThemeBuckets groups tried-steps when compacting; the last entry is
// the catch-all.
var DefaultThemeBuckets = []string{"guard", "plugin", "ui", "fix", "refactor", "test", "other"}

// Options control assembly.
type Options struct {
	// TopN is the number of lessons to include.
	TopN int

	// BudgetWarnTokens triggers shedding and the over-budget warning.
	BudgetWarnTokens int

	// ThemeBuckets override DefaultThemeBuckets when non-empty.
	ThemeBuckets []string

	// IncludeDuties and IncludeTodos gate sections (c) and (d).
	IncludeDuties bool
	IncludeTodos  bool
}

// Budget is the per-section token estimate of one assembled injection.
type Budget struct {
	Total    int `json:"total"`
	Lessons  int `json:"lessons"`
	Handoffs int `json:"handoffs"`
	Duties   int `json:"duties"`
}

// Result is one assembled injection.
type Result struct {
	// Text is the full concatenated block.
	Text string `json:"text"`

	// Per-section renderings, for hosts that place them separately.
	Lessons  string `json:"lessons"`
	Handoffs string `json:"handoffs"`
	Duties   string `json:"duties"`
	Todos    string `json:"todos"`

	Budget Budget `json:"budget"`

	// Warning is non-empty when the block exceeded the budget even after
	// shedding.
	Warning string `json:"warning,omitempty"`
}

// Build assembles an injection from pre-ranked lessons (best first) and
// active handoffs.
func Build(ranked []*models.Lesson, active []*models.Handoff, opts Options) *Result {
	topN := opts.TopN
	if topN <= 0 {
		topN = 5
	}
	buckets := opts.ThemeBuckets
	if len(buckets) == 0 {
		buckets = DefaultThemeBuckets
	}

	handoffsSection := FormatHandoffs(active, buckets)
	duties := ""
	if opts.IncludeDuties {
		duties = formatDuties(active)
	}
	todos := ""
	if opts.IncludeTodos {
		todos = FormatTodoContinuation(active)
	}

	res := assemble(ranked, topN, handoffsSection, duties, todos)
	if opts.BudgetWarnTokens > 0 && res.Budget.Total > opts.BudgetWarnTokens {
		// Shed lessons first, one at a time, then the duties section.
		for n := topN - 1; n >= 0 && res.Budget.Total > opts.BudgetWarnTokens; n-- {
			res = assemble(ranked, n, handoffsSection, duties, todos)
		}
		if res.Budget.Total > opts.BudgetWarnTokens && duties != "" {
			res = assemble(ranked, 0, handoffsSection, "", todos)
		}
		if res.Budget.Total > opts.BudgetWarnTokens {
			res.Warning = fmt.Sprintf("injection over budget: %d tokens (budget %d)",
				res.Budget.Total, opts.BudgetWarnTokens)
		}
	}
	return res
}

func assemble(ranked []*models.Lesson, topN int, handoffsSection, duties, todos string) *Result {
	lessonsSection := FormatLessons(ranked, topN)

	var parts []string
	for _, p := range []string{lessonsSection, handoffsSection, duties, todos} {
		if p != "" {
			parts = append(parts, strings.TrimRight(p, "\n"))
		}
	}
	text := strings.Join(parts, "\n\n")
	if text != "" {
		text += "\n"
	}

	return &Result{
		Text:     text,
		Lessons:  lessonsSection,
		Handoffs: handoffsSection,
		Duties:   duties,
		Todos:    todos,
		Budget: Budget{
			Total:    EstimateTokens(text),
			Lessons:  EstimateTokens(lessonsSection),
			Handoffs: EstimateTokens(handoffsSection),
			Duties:   EstimateTokens(duties),
		},
	}
}

// EstimateTokens approximates the token count of s.
func EstimateTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// SortByScore orders lessons by the injection score, best first, ties by ID.
func SortByScore(lessons []*models.Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		si, sj := lessons[i].Score(), lessons[j].Score()
		if si != sj {
			return si > sj
		}
		return lessons[i].ID < lessons[j].ID
	})
}

// FormatLessons renders the top n of a pre-ranked lesson list.
func FormatLessons(ranked []*models.Lesson, n int) string {
	if len(ranked) == 0 || n <= 0 {
		return ""
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	var b strings.Builder
	b.WriteString("## Recent Lessons\n\n")
	for _, l := range ranked[:n] {
		fmt.Fprintf(&b, "### [%s] %s %s\n", l.ID, l.Rating(), l.Title)
		fmt.Fprintf(&b, "> %s\n\n", l.Content)
	}
	return b.String()
}

// FormatHandoffs renders active handoffs with long tried-step histories
// compacted.
func FormatHandoffs(active []*models.Handoff, buckets []string) string {
	if len(active) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Active Handoffs\n\n")
	for _, h := range active {
		fmt.Fprintf(&b, "### [%s] %s\n", h.ID, h.Title)
		fmt.Fprintf(&b, "- **Status**: %s | **Phase**: %s\n", h.Status, h.Phase)
		if h.Description != "" {
			fmt.Fprintf(&b, "- **Description**: %s\n", h.Description)
		}
		if h.Checkpoint != "" {
			fmt.Fprintf(&b, "- **Checkpoint**: %s\n", h.Checkpoint)
		}
		if len(h.BlockedBy) > 0 {
			fmt.Fprintf(&b, "- **Blocked-By**: %s\n", strings.Join(h.BlockedBy, ", "))
		}
		if len(h.Tried) > 0 {
			b.WriteString(compactTried(h.Tried, buckets))
		}
		if h.NextSteps != "" {
			fmt.Fprintf(&b, "\n**Next**: %s\n", h.NextSteps)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// compactTried summarizes a step history: count and failure tally, a theme
// tally of older steps, and the last few steps verbatim.
func compactTried(tried []models.TriedStep, buckets []string) string {
	var b strings.Builder
	failures := 0
	for _, t := range tried {
		if t.Outcome != models.OutcomeSuccess {
			failures++
		}
	}
	progress := "all success"
	if failures > 0 {
		progress = fmt.Sprintf("%d failures", failures)
	}
	fmt.Fprintf(&b, "\n**Tried**: %d steps (%s)\n", len(tried), progress)

	tail := tried
	if len(tried) > compactTailSteps {
		head := tried[:len(tried)-compactTailSteps]
		tail = tried[len(tried)-compactTailSteps:]
		if themes := tallyThemes(head, buckets); themes != "" {
			fmt.Fprintf(&b, "Earlier: %s\n", themes)
		}
	}
	base := len(tried) - len(tail)
	for i, t := range tail {
		fmt.Fprintf(&b, "%d. [%s] %s\n", base+i+1, t.Outcome, t.Description)
	}
	return b.String()
}

// tallyThemes buckets steps by keyword. The last bucket catches everything
// unmatched.
func tallyThemes(steps []models.TriedStep, buckets []string) string {
	if len(buckets) == 0 {
		return ""
	}
	counts := make(map[string]int, len(buckets))
	catchAll := buckets[len(buckets)-1]
	for _, s := range steps {
		desc := strings.ToLower(s.Description)
		matched := false
		for _, bucket := range buckets[:len(buckets)-1] {
			if strings.Contains(desc, bucket) {
				counts[bucket]++
				matched = true
				break
			}
		}
		if !matched {
			counts[catchAll]++
		}
	}
	var parts []string
	for _, bucket := range buckets {
		if counts[bucket] > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d", bucket, counts[bucket]))
		}
	}
	return strings.Join(parts, ", ")
}

// formatDuties renders section (c), prepending a review nudge when any
// active handoff is waiting on one.
func formatDuties(active []*models.Handoff) string {
	duties := LessonDuty + "\n\n" + HandoffDuty

	var reviewIDs []string
	for _, h := range active {
		if h.Status == models.StatusReadyForReview {
			reviewIDs = append(reviewIDs, h.ID)
		}
	}
	if len(reviewIDs) > 0 {
		duties = fmt.Sprintf("REVIEW PENDING: [%s] is ready for review. Review before new changes.\n\n%s",
			strings.Join(reviewIDs, ", "), duties)
	}
	return duties
}

// FormatTodoContinuation renders section (d) from the most recently updated
// in-progress handoff, so the session picks up where the last one stopped.
func FormatTodoContinuation(active []*models.Handoff) string {
	var current *models.Handoff
	for _, h := range active {
		if h.Status != models.StatusInProgress {
			continue
		}
		if current == nil || h.Updated > current.Updated {
			current = h
		}
	}
	if current == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Continue Work\n\nResume [%s] %s with TodoWrite:\n", current.ID, current.Title)
	for _, t := range current.Tried {
		if t.Outcome == models.OutcomeSuccess {
			fmt.Fprintf(&b, "- [completed] %s\n", t.Description)
		}
	}
	if current.NextSteps != "" {
		fmt.Fprintf(&b, "- [pending] %s\n", current.NextSteps)
	}
	return b.String()
}
