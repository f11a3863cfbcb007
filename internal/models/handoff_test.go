package models

import "testing"

func TestNewHandoffID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewHandoffID()
		if !HandoffIDPattern.MatchString(id) {
			t.Fatalf("generated id %q does not match pattern", id)
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Error("expected distinct generated ids")
	}
}

func TestHandoffIDPatternLegacy(t *testing.T) {
	for _, id := range []string{"hf-0a1b2c3", "A001", "A999"} {
		if !HandoffIDPattern.MatchString(id) {
			t.Errorf("expected %q to match", id)
		}
	}
	for _, id := range []string{"hf-0A1B2C3", "hf-0a1b2c", "hf-0a1b2c3d", "B001", "a001"} {
		if HandoffIDPattern.MatchString(id) {
			t.Errorf("expected %q not to match", id)
		}
	}
}

func TestNormalizeState(t *testing.T) {
	cases := []struct {
		name      string
		status    Status
		phase     Phase
		wantPhase Phase
	}{
		{"not_started keeps planning", StatusNotStarted, PhasePlanning, PhasePlanning},
		{"not_started resets implementing", StatusNotStarted, PhaseImplementing, PhaseResearch},
		{"ready_for_review forces review", StatusReadyForReview, PhaseResearch, PhaseReview},
		{"completed forces review", StatusCompleted, PhaseImplementing, PhaseReview},
		{"in_progress untouched", StatusInProgress, PhaseImplementing, PhaseImplementing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &Handoff{ID: "hf-0000000", Status: tc.status, Phase: tc.phase}
			h.NormalizeState()
			if h.Phase != tc.wantPhase {
				t.Errorf("phase = %q, want %q", h.Phase, tc.wantPhase)
			}
		})
	}

	h := &Handoff{Status: "bogus", Phase: "bogus"}
	h.NormalizeState()
	if h.Status != StatusNotStarted || h.Phase != PhaseResearch {
		t.Errorf("invalid enums normalized to %s/%s", h.Status, h.Phase)
	}
}

func TestApplyTriedStepCompletionPrefix(t *testing.T) {
	h := &Handoff{Status: StatusInProgress, Phase: PhaseImplementing}
	h.ApplyTriedStep(TriedStep{Outcome: OutcomeSuccess, Description: "Final commit done"}, "2026-08-25")
	if h.Status != StatusCompleted || h.Phase != PhaseReview {
		t.Errorf("got %s/%s, want completed/review", h.Status, h.Phase)
	}
	if len(h.Tried) != 1 {
		t.Errorf("tried length = %d", len(h.Tried))
	}
}

func TestApplyTriedStepFailedFinalDoesNotComplete(t *testing.T) {
	h := &Handoff{Status: StatusInProgress, Phase: PhaseImplementing}
	h.ApplyTriedStep(TriedStep{Outcome: OutcomeFail, Description: "Final attempt crashed"}, "2026-08-25")
	if h.Status == StatusCompleted {
		t.Error("failed step must not complete the handoff")
	}
}

func TestApplyTriedStepImplementingKeyword(t *testing.T) {
	h := &Handoff{Status: StatusInProgress, Phase: PhaseResearch}
	h.ApplyTriedStep(TriedStep{Outcome: OutcomePartial, Description: "refactor the session loader"}, "2026-08-25")
	if h.Phase != PhaseImplementing {
		t.Errorf("phase = %q, want implementing", h.Phase)
	}
}

func TestApplyTriedStepSuccessPileAdvancesPhase(t *testing.T) {
	h := &Handoff{Status: StatusInProgress, Phase: PhaseResearch}
	for i := 0; i < 10; i++ {
		h.ApplyTriedStep(TriedStep{Outcome: OutcomeSuccess, Description: "tried another angle"}, "2026-08-25")
	}
	if h.Phase != PhaseImplementing {
		t.Errorf("phase = %q, want implementing after 10 successes", h.Phase)
	}
}

func TestCompleteIdempotent(t *testing.T) {
	h := &Handoff{Status: StatusInProgress, Phase: PhaseImplementing}
	h.Complete("2026-08-25")
	h.Updated = "2026-08-20" // would change if Complete mutated again
	h.Complete("2026-08-25")
	if h.Updated != "2026-08-20" {
		t.Error("completing twice must be a no-op")
	}
	if h.Status != StatusCompleted || h.Phase != PhaseReview {
		t.Errorf("got %s/%s", h.Status, h.Phase)
	}
}

func TestLinkSessionDeduplicates(t *testing.T) {
	h := &Handoff{}
	h.LinkSession("s1", "2026-08-25")
	h.LinkSession("s1", "2026-08-26")
	h.LinkSession("s2", "2026-08-26")
	if len(h.Sessions) != 2 {
		t.Errorf("sessions = %v", h.Sessions)
	}
	if h.LastSession != "2026-08-26" {
		t.Errorf("last session = %q", h.LastSession)
	}
}
