package inject

import (
	"strings"
	"testing"

	"github.com/boshu2/recall/internal/models"
)

func rankedLessons(n int) []*models.Lesson {
	out := make([]*models.Lesson, n)
	for i := range out {
		out[i] = &models.Lesson{
			ID:      "L00" + string(rune('1'+i)),
			Title:   "lesson title",
			Content: strings.Repeat("content ", 10),
			Uses:    n - i,
		}
	}
	return out
}

func TestFormatLessons(t *testing.T) {
	lessons := []*models.Lesson{
		{ID: "L001", Title: "Buffer sizes matter", Content: "raise the scanner buffer", Uses: 10, Velocity: 0.1},
	}
	got := FormatLessons(lessons, 5)
	if !strings.HasPrefix(got, "## Recent Lessons\n\n") {
		t.Errorf("missing header: %q", got)
	}
	if !strings.Contains(got, "### [L001] [***--|*----] Buffer sizes matter\n") {
		t.Errorf("heading wrong: %q", got)
	}
	if !strings.Contains(got, "> raise the scanner buffer\n") {
		t.Errorf("content quote missing: %q", got)
	}
	if FormatLessons(nil, 5) != "" {
		t.Error("empty list must render nothing")
	}
}

func TestFormatHandoffsCompaction(t *testing.T) {
	h := &models.Handoff{
		ID:     "hf-1a2b3c4",
		Title:  "Long grind",
		Status: models.StatusInProgress,
		Phase:  models.PhaseImplementing,
		Tried: []models.TriedStep{
			{Outcome: models.OutcomeSuccess, Description: "fix the guard clause"},
			{Outcome: models.OutcomeFail, Description: "fix the off-by-one"},
			{Outcome: models.OutcomeSuccess, Description: "test the edge case"},
			{Outcome: models.OutcomeSuccess, Description: "step seven"},
			{Outcome: models.OutcomeSuccess, Description: "step eight"},
			{Outcome: models.OutcomePartial, Description: "step nine"},
		},
		NextSteps: "land it",
	}
	got := FormatHandoffs([]*models.Handoff{h}, DefaultThemeBuckets)

	if !strings.Contains(got, "**Tried**: 6 steps (2 failures)\n") {
		t.Errorf("summary line wrong:\n%s", got)
	}
	// The three oldest steps collapse into a theme tally.
	if !strings.Contains(got, "Earlier: guard x1, fix x1, test x1\n") {
		t.Errorf("theme tally wrong:\n%s", got)
	}
	// The last three render with their original indices.
	for _, want := range []string{"4. [success] step seven", "5. [success] step eight", "6. [partial] step nine"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "guard clause") {
		t.Error("compacted step rendered verbatim")
	}
	if !strings.Contains(got, "**Next**: land it\n") {
		t.Errorf("next steps missing:\n%s", got)
	}
}

func TestFormatHandoffsShortHistoryUncompacted(t *testing.T) {
	h := &models.Handoff{
		ID:     "hf-1a2b3c4",
		Title:  "Short",
		Status: models.StatusInProgress,
		Phase:  models.PhaseResearch,
		Tried: []models.TriedStep{
			{Outcome: models.OutcomeSuccess, Description: "only step"},
		},
	}
	got := FormatHandoffs([]*models.Handoff{h}, DefaultThemeBuckets)
	if !strings.Contains(got, "**Tried**: 1 steps (all success)\n") {
		t.Errorf("summary wrong:\n%s", got)
	}
	if strings.Contains(got, "Earlier:") {
		t.Errorf("tally for short history:\n%s", got)
	}
	if !strings.Contains(got, "1. [success] only step\n") {
		t.Errorf("step missing:\n%s", got)
	}
}

func TestFormatDutiesReviewNudge(t *testing.T) {
	active := []*models.Handoff{
		{ID: "hf-1a2b3c4", Status: models.StatusReadyForReview},
		{ID: "hf-2222222", Status: models.StatusInProgress},
	}
	got := formatDuties(active)
	if !strings.HasPrefix(got, "REVIEW PENDING: [hf-1a2b3c4] is ready for review.") {
		t.Errorf("nudge missing:\n%s", got)
	}
	if !strings.Contains(got, "LESSON DUTY:") || !strings.Contains(got, "HANDOFF DUTY:") {
		t.Error("duty texts missing")
	}

	plain := formatDuties(nil)
	if strings.Contains(plain, "REVIEW PENDING") {
		t.Error("nudge without a ready handoff")
	}
}

func TestFormatTodoContinuation(t *testing.T) {
	active := []*models.Handoff{
		{
			ID: "hf-1111111", Title: "older", Status: models.StatusInProgress, Updated: "2026-08-10",
		},
		{
			ID: "hf-2222222", Title: "newer", Status: models.StatusInProgress, Updated: "2026-08-20",
			Tried: []models.TriedStep{
				{Outcome: models.OutcomeSuccess, Description: "wired the loader"},
				{Outcome: models.OutcomeFail, Description: "broke the tests"},
			},
			NextSteps: "fix the tests",
		},
		{ID: "hf-3333333", Title: "done", Status: models.StatusCompleted, Updated: "2026-08-25"},
	}
	got := FormatTodoContinuation(active)
	if !strings.Contains(got, "Resume [hf-2222222] newer with TodoWrite:") {
		t.Errorf("wrong handoff chosen:\n%s", got)
	}
	if !strings.Contains(got, "- [completed] wired the loader\n") {
		t.Errorf("completed step missing:\n%s", got)
	}
	if strings.Contains(got, "broke the tests") {
		t.Error("failed step listed as completed")
	}
	if !strings.Contains(got, "- [pending] fix the tests\n") {
		t.Errorf("pending step missing:\n%s", got)
	}

	if FormatTodoContinuation(nil) != "" {
		t.Error("continuation without in-progress handoffs")
	}
}

func TestBuildAssemblesSections(t *testing.T) {
	ranked := rankedLessons(2)
	active := []*models.Handoff{
		{ID: "hf-1a2b3c4", Title: "work", Status: models.StatusInProgress, Phase: models.PhaseImplementing, Updated: "2026-08-20"},
	}
	res := Build(ranked, active, Options{TopN: 5, IncludeDuties: true, IncludeTodos: true})
	for _, want := range []string{"## Recent Lessons", "## Active Handoffs", "LESSON DUTY:", "## Continue Work"} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("missing section %q", want)
		}
	}
	if res.Warning != "" {
		t.Errorf("warning without a budget: %q", res.Warning)
	}
	if res.Budget.Total != EstimateTokens(res.Text) {
		t.Errorf("budget total = %d", res.Budget.Total)
	}
}

func TestBuildShedsLessonsFirst(t *testing.T) {
	ranked := rankedLessons(5)
	active := []*models.Handoff{
		{ID: "hf-1a2b3c4", Title: "work", Status: models.StatusInProgress, Phase: models.PhaseImplementing},
	}
	full := Build(ranked, active, Options{TopN: 5, IncludeDuties: true})
	budget := full.Budget.Total - 10

	shed := Build(ranked, active, Options{TopN: 5, BudgetWarnTokens: budget, IncludeDuties: true})
	if shed.Budget.Total > budget {
		t.Errorf("still over budget: %d > %d", shed.Budget.Total, budget)
	}
	// Handoffs and duties survive; only lessons were shed.
	if !strings.Contains(shed.Text, "## Active Handoffs") || !strings.Contains(shed.Text, "LESSON DUTY:") {
		t.Errorf("wrong section shed:\n%s", shed.Text)
	}
	if strings.Count(shed.Text, "### [L") >= strings.Count(full.Text, "### [L") {
		t.Error("no lessons shed")
	}
}

func TestBuildDropsDutiesWhenLessonsAreNotEnough(t *testing.T) {
	active := []*models.Handoff{
		{ID: "hf-1a2b3c4", Title: "work", Status: models.StatusInProgress, Phase: models.PhaseImplementing},
	}
	handoffsOnly := Build(nil, active, Options{TopN: 5})
	budget := handoffsOnly.Budget.Total + 5

	res := Build(nil, active, Options{TopN: 5, BudgetWarnTokens: budget, IncludeDuties: true})
	if strings.Contains(res.Text, "LESSON DUTY:") {
		t.Errorf("duties kept over budget:\n%s", res.Text)
	}
	if res.Budget.Total > budget {
		t.Errorf("still over budget with warning %q", res.Warning)
	}
}

func TestBuildWarnsWhenIrreducible(t *testing.T) {
	active := []*models.Handoff{
		{ID: "hf-1a2b3c4", Title: strings.Repeat("wide ", 50), Status: models.StatusInProgress, Phase: models.PhaseImplementing},
	}
	res := Build(nil, active, Options{TopN: 5, BudgetWarnTokens: 10})
	if res.Warning == "" {
		t.Error("expected over-budget warning")
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.in); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSortByScore(t *testing.T) {
	lessons := []*models.Lesson{
		{ID: "L002", Uses: 1},
		{ID: "L001", Uses: 1},
		{ID: "L003", Uses: 4, Velocity: 1},
	}
	SortByScore(lessons)
	if lessons[0].ID != "L003" || lessons[1].ID != "L001" || lessons[2].ID != "L002" {
		t.Errorf("order = %s, %s, %s", lessons[0].ID, lessons[1].ID, lessons[2].ID)
	}
}
