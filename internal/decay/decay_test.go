package decay

import (
	"testing"
	"time"

	"github.com/boshu2/recall/internal/models"
	"github.com/boshu2/recall/internal/state"
)

var now = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func TestApplyHalvesVelocity(t *testing.T) {
	l := &models.Lesson{Uses: 5, Velocity: 2.0, LastUsed: now.Format(models.DateFormat)}
	Apply(l, now)
	if l.Velocity != 1.0 {
		t.Errorf("velocity = %v, want 1.0", l.Velocity)
	}
	if l.Uses != 5 {
		t.Errorf("uses = %d, fresh lesson must keep uses", l.Uses)
	}
}

func TestApplyFloorsVelocity(t *testing.T) {
	l := &models.Lesson{Velocity: 0.015, LastUsed: now.Format(models.DateFormat)}
	Apply(l, now)
	if l.Velocity != 0 {
		t.Errorf("velocity = %v, want 0 below the floor", l.Velocity)
	}
}

func TestApplyStaleDecrementsUses(t *testing.T) {
	stale := now.AddDate(0, 0, -(StaleUseDays + 5)).Format(models.DateFormat)
	l := &models.Lesson{Uses: 3, Velocity: 1, LastUsed: stale}
	Apply(l, now)
	if l.Uses != 2 {
		t.Errorf("uses = %d, want 2", l.Uses)
	}
}

func TestApplyNeverDropsUsesBelowOne(t *testing.T) {
	stale := now.AddDate(0, 0, -400).Format(models.DateFormat)
	for _, uses := range []int{0, 1} {
		l := &models.Lesson{Uses: uses, LastUsed: stale}
		Apply(l, now)
		if l.Uses != uses {
			t.Errorf("uses %d changed to %d", uses, l.Uses)
		}
	}
}

type fakeLessons struct {
	lessons []*models.Lesson
}

func (f *fakeLessons) MutateAll(fn func(*models.Lesson)) error {
	for _, l := range f.lessons {
		fn(l)
	}
	return nil
}

func newTestEngine(t *testing.T, lessons ...*models.Lesson) (*Engine, *state.Store) {
	t.Helper()
	st := state.NewStore(t.TempDir())
	e := NewEngine(&fakeLessons{lessons: lessons}, st)
	e.now = func() time.Time { return now }
	return e, st
}

func TestDueGating(t *testing.T) {
	e, st := newTestEngine(t)

	// No recorded run: due.
	if !e.Due() {
		t.Error("fresh state should be due")
	}

	// Recent run: not due.
	recent := now.Add(-24 * time.Hour).Format(time.RFC3339)
	if err := st.WriteDecayState(state.DecayState{LastRun: recent, SessionsSinceLast: 5}); err != nil {
		t.Fatal(err)
	}
	if e.Due() {
		t.Error("ran yesterday, must not be due")
	}

	// Old run but zero sessions since: not due.
	old := now.Add(-10 * 24 * time.Hour).Format(time.RFC3339)
	if err := st.WriteDecayState(state.DecayState{LastRun: old}); err != nil {
		t.Fatal(err)
	}
	if e.Due() {
		t.Error("no sessions since last run, must not be due")
	}

	// Old run with activity: due.
	if err := st.WriteDecayState(state.DecayState{LastRun: old, SessionsSinceLast: 2}); err != nil {
		t.Fatal(err)
	}
	if !e.Due() {
		t.Error("old run with sessions since, must be due")
	}

	// Garbage timestamp: due.
	if err := st.WriteDecayState(state.DecayState{LastRun: "not a time"}); err != nil {
		t.Fatal(err)
	}
	if !e.Due() {
		t.Error("unparseable last run must count as due")
	}
}

func TestRunAppliesAndResetsCounter(t *testing.T) {
	l := &models.Lesson{Uses: 4, Velocity: 2, LastUsed: now.Format(models.DateFormat)}
	e, st := newTestEngine(t, l)
	old := now.Add(-10 * 24 * time.Hour).Format(time.RFC3339)
	if err := st.WriteDecayState(state.DecayState{LastRun: old, SessionsSinceLast: 3}); err != nil {
		t.Fatal(err)
	}

	ran, err := e.Run(false)
	if err != nil || !ran {
		t.Fatalf("run = %v, %v", ran, err)
	}
	if l.Velocity != 1 {
		t.Errorf("velocity = %v", l.Velocity)
	}
	ds := st.ReadDecayState()
	if ds.SessionsSinceLast != 0 {
		t.Errorf("counter = %d, want reset", ds.SessionsSinceLast)
	}
	if ds.LastRun != now.UTC().Format(time.RFC3339) {
		t.Errorf("last run = %q", ds.LastRun)
	}
}

func TestRunSkipsWhenNotDue(t *testing.T) {
	l := &models.Lesson{Uses: 4, Velocity: 2}
	e, st := newTestEngine(t, l)
	recent := now.Add(-time.Hour).Format(time.RFC3339)
	if err := st.WriteDecayState(state.DecayState{LastRun: recent, SessionsSinceLast: 1}); err != nil {
		t.Fatal(err)
	}

	ran, err := e.Run(false)
	if err != nil || ran {
		t.Fatalf("run = %v, %v, want skip", ran, err)
	}
	if l.Velocity != 2 {
		t.Errorf("velocity mutated on skip: %v", l.Velocity)
	}

	ran, err = e.Run(true)
	if err != nil || !ran {
		t.Fatalf("forced run = %v, %v", ran, err)
	}
	if l.Velocity != 1 {
		t.Errorf("forced run velocity = %v", l.Velocity)
	}
}
