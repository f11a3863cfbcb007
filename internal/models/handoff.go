package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Status is the lifecycle state of a handoff.
type Status string

const (
	StatusNotStarted     Status = "not_started"
	StatusInProgress     Status = "in_progress"
	StatusBlocked        Status = "blocked"
	StatusReadyForReview Status = "ready_for_review"
	StatusCompleted      Status = "completed"
)

// ValidStatus reports whether s is an allowed handoff status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusBlocked, StatusReadyForReview, StatusCompleted:
		return true
	default:
		return false
	}
}

// Phase is the work phase of a handoff.
type Phase string

const (
	PhaseResearch     Phase = "research"
	PhasePlanning     Phase = "planning"
	PhaseImplementing Phase = "implementing"
	PhaseReview       Phase = "review"
)

// ValidPhase reports whether p is an allowed handoff phase.
func ValidPhase(p Phase) bool {
	switch p {
	case PhaseResearch, PhasePlanning, PhaseImplementing, PhaseReview:
		return true
	default:
		return false
	}
}

// Agent identifies which agent flavor is expected to pick the handoff up.
type Agent string

const (
	AgentExplore        Agent = "explore"
	AgentGeneralPurpose Agent = "general-purpose"
	AgentPlan           Agent = "plan"
	AgentReview         Agent = "review"
	AgentUser           Agent = "user"
)

// Outcome classifies a tried-step result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFail    Outcome = "fail"
	OutcomePartial Outcome = "partial"
)

// ValidOutcome reports whether o is an allowed tried-step outcome.
func ValidOutcome(o Outcome) bool {
	switch o {
	case OutcomeSuccess, OutcomeFail, OutcomePartial:
		return true
	default:
		return false
	}
}

// TriedStep is one attempt made during a handoff.
type TriedStep struct {
	// Outcome is success, fail, or partial.
	Outcome Outcome `json:"outcome"`

	// Description is what was attempted.
	Description string `json:"description"`
}

// ContextRecord is the compact session context attached to a handoff by the
// pre-compact hook.
type ContextRecord struct {
	// Summary is a one-paragraph description of session state.
	Summary string `json:"summary,omitempty"`

	// CriticalFiles are the files most relevant to resuming.
	CriticalFiles []string `json:"critical_files,omitempty"`

	// RecentChanges describe what was just modified.
	RecentChanges []string `json:"recent_changes,omitempty"`

	// Learnings are insights worth carrying forward.
	Learnings []string `json:"learnings,omitempty"`

	// Blockers are unresolved obstacles.
	Blockers []string `json:"blockers,omitempty"`

	// GitRef is the commit the context was captured at.
	GitRef string `json:"git_ref,omitempty"`
}

// Empty reports whether the record carries no information.
func (c *ContextRecord) Empty() bool {
	return c == nil || c.Summary == "" && len(c.CriticalFiles) == 0 &&
		len(c.RecentChanges) == 0 && len(c.Learnings) == 0 &&
		len(c.Blockers) == 0 && c.GitRef == ""
}

// HandoffIDPattern matches hf-XXXXXXX (7 lowercase hex) and legacy A### IDs.
var HandoffIDPattern = regexp.MustCompile(`^(hf-[0-9a-f]{7}|A\d{3})$`)

// Handoff is a durable work item capturing progress across sessions.
type Handoff struct {
	// ID is hf-XXXXXXX (7 lowercase hex chars) or legacy A###.
	ID string `json:"id"`

	// Title summarizes the work item.
	Title string `json:"title"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// Phase is the current work phase.
	Phase Phase `json:"phase"`

	// Agent is the expected executor.
	Agent Agent `json:"agent,omitempty"`

	// Created and Updated are dates in DateFormat.
	Created string `json:"created"`
	Updated string `json:"updated"`

	// Description is free prose about the work.
	Description string `json:"description,omitempty"`

	// NextSteps is prose describing what to do next.
	NextSteps string `json:"next_steps,omitempty"`

	// Refs are path:line[-line] references.
	Refs []string `json:"refs,omitempty"`

	// Tried is the ordered list of attempts.
	Tried []TriedStep `json:"tried,omitempty"`

	// Checkpoint is free-text resume state.
	Checkpoint string `json:"checkpoint,omitempty"`

	// LastSession is the date of the most recent linked session.
	LastSession string `json:"last_session,omitempty"`

	// Context is the pre-compact context record, if captured.
	Context *ContextRecord `json:"context,omitempty"`

	// BlockedBy lists handoff IDs this one waits on. Treated as an edge
	// set; traversal must guard against cycles.
	BlockedBy []string `json:"blocked_by,omitempty"`

	// Sessions lists session IDs that touched this handoff.
	Sessions []string `json:"sessions,omitempty"`

	// Stealth selects the local-only storage file. Not serialized into
	// the record; implied by which file the handoff lives in.
	Stealth bool `json:"-"`

	// Extra preserves unknown metadata keys in encounter order.
	Extra []ExtraField `json:"extra,omitempty"`
}

// NewHandoffID samples 4 bytes of cryptographic randomness and formats a
// 7-hex-char ID. Collisions are not prevented here; stores detect them on
// insert.
func NewHandoffID() string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return "hf-" + hex.EncodeToString(buf[:])[:7]
}

// NormalizeState enforces status/phase compatibility in place rather than
// rejecting: not_started implies a research or planning phase, and
// ready_for_review or completed implies the review phase.
func (h *Handoff) NormalizeState() {
	if !ValidStatus(h.Status) {
		h.Status = StatusNotStarted
	}
	if !ValidPhase(h.Phase) {
		h.Phase = PhaseResearch
	}
	switch h.Status {
	case StatusNotStarted:
		if h.Phase != PhaseResearch && h.Phase != PhasePlanning {
			h.Phase = PhaseResearch
		}
	case StatusReadyForReview, StatusCompleted:
		h.Phase = PhaseReview
	}
}

// completionPrefixes mark a successful tried-step as terminal.
var completionPrefixes = []string{"final", "done", "complete", "finished"}

// implementingKeywords advance a research-phase handoff to implementing.
var implementingKeywords = []string{"implement", "build", "create", "add", "fix", "refactor", "test"}

// successStepsForImplementing is the successful-step count that also forces
// the implementing phase.
const successStepsForImplementing = 10

// ApplyTriedStep appends a tried-step and applies the auto-transitions:
// a terminal success completes the handoff; implementing language (or a
// pile of successes) moves research to implementing.
func (h *Handoff) ApplyTriedStep(step TriedStep, today string) {
	h.Tried = append(h.Tried, step)
	h.Updated = today

	lower := strings.ToLower(step.Description)
	if step.Outcome == OutcomeSuccess {
		for _, p := range completionPrefixes {
			if strings.HasPrefix(lower, p) {
				h.Status = StatusCompleted
				h.Phase = PhaseReview
				return
			}
		}
	}

	if h.Phase != PhaseResearch {
		return
	}
	for _, kw := range implementingKeywords {
		if strings.Contains(lower, kw) {
			h.Phase = PhaseImplementing
			return
		}
	}
	if h.successCount() >= successStepsForImplementing {
		h.Phase = PhaseImplementing
	}
}

func (h *Handoff) successCount() int {
	n := 0
	for _, t := range h.Tried {
		if t.Outcome == OutcomeSuccess {
			n++
		}
	}
	return n
}

// Complete marks the handoff completed. Completing an already-completed
// handoff is a no-op that succeeds.
func (h *Handoff) Complete(today string) {
	if h.Status == StatusCompleted {
		return
	}
	h.Status = StatusCompleted
	h.Phase = PhaseReview
	h.Updated = today
}

// LinkSession records a session ID against the handoff, deduplicating.
func (h *Handoff) LinkSession(sessionID, today string) {
	for _, s := range h.Sessions {
		if s == sessionID {
			h.LastSession = today
			return
		}
	}
	h.Sessions = append(h.Sessions, sessionID)
	h.LastSession = today
}

// Validate reports the first invariant violation, or nil.
func (h *Handoff) Validate() error {
	if !HandoffIDPattern.MatchString(h.ID) {
		return fmt.Errorf("invalid handoff id %q", h.ID)
	}
	if !ValidStatus(h.Status) {
		return fmt.Errorf("invalid status %q", h.Status)
	}
	if !ValidPhase(h.Phase) {
		return fmt.Errorf("invalid phase %q", h.Phase)
	}
	for _, t := range h.Tried {
		if !ValidOutcome(t.Outcome) {
			return fmt.Errorf("invalid tried-step outcome %q", t.Outcome)
		}
	}
	return nil
}
