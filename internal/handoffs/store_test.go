package handoffs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boshu2/recall/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "HANDOFFS.md"), filepath.Join(dir, "HANDOFFS_LOCAL.md"))
}

func mustAdd(t *testing.T, s *Store, opts AddOptions) *models.Handoff {
	t.Helper()
	h, err := s.Add(opts)
	if err != nil {
		t.Fatalf("add %q: %v", opts.Title, err)
	}
	return h
}

func TestAddDefaults(t *testing.T) {
	s := newTestStore(t)
	h := mustAdd(t, s, AddOptions{Title: "investigate flaky test"})
	if !models.HandoffIDPattern.MatchString(h.ID) {
		t.Errorf("id = %q", h.ID)
	}
	if h.Status != models.StatusNotStarted || h.Phase != models.PhaseResearch {
		t.Errorf("defaults = %s/%s", h.Status, h.Phase)
	}
	if h.Created == "" || h.Created != h.Updated {
		t.Errorf("dates = %q/%q", h.Created, h.Updated)
	}
}

func TestAddInFreshProjectDirectory(t *testing.T) {
	// Nothing under .claude-recall/ exists before the first mutation.
	dir := filepath.Join(t.TempDir(), ".claude-recall")
	s := NewStore(filepath.Join(dir, "HANDOFFS.md"), filepath.Join(dir, "HANDOFFS_LOCAL.md"))
	h := mustAdd(t, s, AddOptions{Title: "first ever handoff"})
	got, err := s.GetByID(h.ID)
	if err != nil || got.Title != "first ever handoff" {
		t.Fatalf("read back: %+v, %v", got, err)
	}
}

func TestAddRejectsEmptyTitle(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Add(AddOptions{Title: "\x00\x01"}); err == nil {
		t.Error("control-only title accepted")
	}
}

func TestStealthSeparation(t *testing.T) {
	s := newTestStore(t)
	shared := mustAdd(t, s, AddOptions{Title: "shared work"})
	secret := mustAdd(t, s, AddOptions{Title: "secret work", Stealth: true})

	if _, err := os.Stat(s.stealthPath); err != nil {
		t.Fatalf("stealth file missing: %v", err)
	}
	data, err := os.ReadFile(s.sharedPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), shared.ID) || strings.Contains(string(data), secret.ID) {
		t.Error("stealth handoff leaked into the shared file")
	}

	got, err := s.GetByID(secret.ID)
	if err != nil {
		t.Fatalf("get stealth: %v", err)
	}
	if !got.Stealth {
		t.Error("stealth flag lost on read")
	}
}

func TestUpdateFields(t *testing.T) {
	s := newTestStore(t)
	h := mustAdd(t, s, AddOptions{Title: "old"})

	title := "new title"
	status := models.StatusInProgress
	phase := models.PhaseImplementing
	next := "wire the loader"
	refs := []string{"internal/config/config.go:40"}
	got, err := s.Update(h.ID, UpdateFields{
		Title: &title, Status: &status, Phase: &phase, NextSteps: &next, Refs: &refs,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != title || got.Status != status || got.Phase != phase || got.NextSteps != next {
		t.Errorf("updated = %+v", got)
	}

	var nf *NotFoundError
	if _, err := s.Update("hf-0000000", UpdateFields{Title: &title}); !errors.As(err, &nf) {
		t.Errorf("update missing = %v", err)
	}
}

func TestUpdateNormalizesState(t *testing.T) {
	s := newTestStore(t)
	h := mustAdd(t, s, AddOptions{Title: "w"})
	status := models.StatusReadyForReview
	got, err := s.Update(h.ID, UpdateFields{Status: &status})
	if err != nil {
		t.Fatal(err)
	}
	if got.Phase != models.PhaseReview {
		t.Errorf("phase = %s, want review forced by ready_for_review", got.Phase)
	}
}

func TestTriedStepAutoTransitions(t *testing.T) {
	s := newTestStore(t)
	h := mustAdd(t, s, AddOptions{Title: "w", Status: models.StatusInProgress})

	got, err := s.AddTriedStep(h.ID, models.OutcomePartial, "implement the scanner half-way")
	if err != nil {
		t.Fatal(err)
	}
	if got.Phase != models.PhaseImplementing {
		t.Errorf("phase = %s, want implementing", got.Phase)
	}

	got, err = s.AddTriedStep(h.ID, models.OutcomeSuccess, "Done, all paths covered")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCompleted || got.Phase != models.PhaseReview {
		t.Errorf("terminal success gave %s/%s", got.Status, got.Phase)
	}
	if len(got.Tried) != 2 {
		t.Errorf("tried = %d steps", len(got.Tried))
	}

	if _, err := s.AddTriedStep(h.ID, "shrug", "x"); err == nil {
		t.Error("invalid outcome accepted")
	}
}

func TestCompleteIdempotent(t *testing.T) {
	s := newTestStore(t)
	h := mustAdd(t, s, AddOptions{Title: "w", Status: models.StatusInProgress, Phase: models.PhaseImplementing})
	first, err := s.Complete(h.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Complete(h.ID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if second.Status != models.StatusCompleted || second.Updated != first.Updated {
		t.Errorf("second complete changed the record: %+v", second)
	}
}

func TestSetContextAndLinkSession(t *testing.T) {
	s := newTestStore(t)
	h := mustAdd(t, s, AddOptions{Title: "w"})

	ctx := models.ContextRecord{Summary: "paused mid-refactor", GitRef: "ab12cd3"}
	if err := s.SetContext(h.ID, ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkSession(h.ID, "sess-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkSession(h.ID, "sess-1"); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByID(h.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Context == nil || got.Context.Summary != "paused mid-refactor" {
		t.Errorf("context = %+v", got.Context)
	}
	if len(got.Sessions) != 1 || got.Sessions[0] != "sess-1" {
		t.Errorf("sessions = %v", got.Sessions)
	}
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, AddOptions{Title: "active", Status: models.StatusInProgress})
	done := mustAdd(t, s, AddOptions{Title: "finished", Status: models.StatusInProgress})
	if _, err := s.Complete(done.ID); err != nil {
		t.Fatal(err)
	}

	active, err := s.List(ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Title != "active" {
		t.Errorf("default list = %+v", active)
	}

	all, err := s.List(ListFilter{IncludeCompleted: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("full list = %d entries", len(all))
	}

	completed, err := s.List(ListFilter{Status: models.StatusCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 1 || completed[0].ID != done.ID {
		t.Errorf("status filter = %+v", completed)
	}
}

func TestArchiveRotation(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	date := func(daysAgo int) string {
		return now.AddDate(0, 0, -daysAgo).Format(models.DateFormat)
	}

	// Six completed handoffs of varying age plus one active.
	mustAdd(t, s, AddOptions{Title: "still going", Status: models.StatusInProgress})
	for _, daysAgo := range []int{1, 2, 3, 4, 20, 30} {
		h := mustAdd(t, s, AddOptions{Title: "done " + date(daysAgo)})
		if _, err := s.Complete(h.ID); err != nil {
			t.Fatal(err)
		}
		stamp := date(daysAgo)
		if _, err := s.mutateOne(h.ID, func(m *models.Handoff) error {
			m.Updated = stamp
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	// Within 7 days or among the 3 most recent stays active; the two old
	// stragglers rotate out.
	archived, err := s.Archive()
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived != 2 {
		t.Errorf("archived = %d, want 2", archived)
	}

	remaining, err := s.List(ListFilter{IncludeCompleted: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 5 {
		t.Errorf("remaining = %d, want 5", len(remaining))
	}

	data, err := os.ReadFile(s.archivePath)
	if err != nil {
		t.Fatalf("archive file: %v", err)
	}
	if !strings.Contains(string(data), "done "+date(20)) || !strings.Contains(string(data), "done "+date(30)) {
		t.Error("old handoffs missing from archive")
	}
}

func TestArchiveKeepsRecentCompletions(t *testing.T) {
	s := newTestStore(t)
	h := mustAdd(t, s, AddOptions{Title: "just finished"})
	if _, err := s.Complete(h.ID); err != nil {
		t.Fatal(err)
	}
	archived, err := s.Archive()
	if err != nil {
		t.Fatal(err)
	}
	if archived != 0 {
		t.Errorf("archived = %d, want 0", archived)
	}
}
