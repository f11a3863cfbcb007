// Package decay applies the periodic forgetting pass over the lesson corpus:
// velocity halves each cycle and long-unused lessons slowly lose uses, so
// rankings drift toward what is actually being applied.
package decay

import (
	"fmt"
	"time"

	"github.com/boshu2/recall/internal/models"
	"github.com/boshu2/recall/internal/state"
)

// IntervalDays is the minimum gap between decay runs.
const IntervalDays = 7

// StaleUseDays is the last-used age beyond which a lesson loses one use.
const StaleUseDays = 30

// halfLife is the per-cycle velocity multiplier.
const halfLife = 0.5

// LessonMutator is the slice of the lesson store the engine needs.
type LessonMutator interface {
	MutateAll(fn func(*models.Lesson)) error
}

// Engine coordinates decay runs against the lesson store and the decay
// state file.
type Engine struct {
	Lessons LessonMutator
	State   *state.Store

	now func() time.Time
}

// NewEngine returns an engine over the given stores.
func NewEngine(lessons LessonMutator, st *state.Store) *Engine {
	return &Engine{Lessons: lessons, State: st, now: time.Now}
}

// Due reports whether a run should happen: the interval has elapsed and at
// least one session finished since the last run. A missing or unparseable
// last-run timestamp counts as due.
func (e *Engine) Due() bool {
	ds := e.State.ReadDecayState()
	if ds.LastRun != "" {
		if last, err := time.Parse(time.RFC3339, ds.LastRun); err == nil {
			if e.now().Sub(last) < IntervalDays*24*time.Hour {
				return false
			}
			if ds.SessionsSinceLast == 0 {
				return false
			}
		}
	}
	return true
}

// Run applies one decay cycle if due. With force, the interval and activity
// checks are skipped. Returns whether a cycle ran.
func (e *Engine) Run(force bool) (bool, error) {
	if !force && !e.Due() {
		return false, nil
	}
	now := e.now()
	if err := e.Lessons.MutateAll(func(l *models.Lesson) {
		Apply(l, now)
	}); err != nil {
		return false, fmt.Errorf("decay lessons: %w", err)
	}
	err := e.State.WriteDecayState(state.DecayState{
		LastRun: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return true, fmt.Errorf("persist decay state: %w", err)
	}
	return true, nil
}

// Apply performs one decay step on a single lesson: halve velocity (floored
// to zero below the epsilon) and, when the lesson has gone unused past
// StaleUseDays, decrement uses to no lower than 1.
func Apply(l *models.Lesson, now time.Time) {
	l.Velocity *= halfLife
	if l.Velocity < models.VelocityFloor {
		l.Velocity = 0
	}
	if l.Uses > 1 && l.IsStale(now, StaleUseDays) {
		l.Uses--
	}
}
