package hooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/boshu2/recall/internal/debuglog"
	"github.com/boshu2/recall/internal/handoffs"
	"github.com/boshu2/recall/internal/inject"
	"github.com/boshu2/recall/internal/models"
	"github.com/boshu2/recall/internal/state"
	"github.com/boshu2/recall/internal/summarize"
)

// SessionStart assembles the opening injection: top lessons by score,
// active handoffs, duties, and a continuation prompt. Housekeeping
// (decay, checkpoint cleanup, archive rotation) piggybacks here because
// session start is the one hook guaranteed to run.
func (o *Orchestrator) SessionStart(ctx context.Context, input *Input) (*Output, error) {
	all, err := o.Lessons.List()
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	inject.SortByScore(all)

	active, err := o.Handoffs.List(handoffs.ListFilter{})
	if err != nil {
		active = nil
	}

	res := inject.Build(all, active, inject.Options{
		TopN:             o.Cfg.Inject.TopN,
		BudgetWarnTokens: o.Cfg.Inject.BudgetWarnTokens,
		ThemeBuckets:     o.Cfg.Inject.ThemeBuckets,
		IncludeDuties:    true,
		IncludeTodos:     true,
	})
	if res.Warning != "" {
		fmt.Fprintln(stderr(), "recall: "+res.Warning)
	}

	text := res.Text
	if snap := o.surfaceSnapshot(); snap != "" {
		text = snap + "\n\n" + text
	}

	o.logInjected("session_start", all, o.Cfg.Inject.TopN)
	o.housekeep()

	return &Output{AdditionalContext: text}, nil
}

// surfaceSnapshot returns a block describing a snapshot left behind by a
// pre-compact that could not extract context, consuming it.
func (o *Orchestrator) surfaceSnapshot() string {
	snap, err := state.ReadSnapshot(o.Cfg.RecallDir())
	if err != nil || snap == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Interrupted Session\n\nA previous session ended during compaction")
	if snap.HandoffID != "" {
		fmt.Fprintf(&b, " while working on [%s]", snap.HandoffID)
	}
	b.WriteString(".\n")
	if len(snap.RecentFiles) > 0 {
		fmt.Fprintf(&b, "Recent files: %s\n", strings.Join(snap.RecentFiles, ", "))
	}
	for _, m := range snap.LastMessages {
		fmt.Fprintf(&b, "> %s\n", m)
	}
	return b.String()
}

// housekeep runs the opportunistic background chores: a detached decay run
// when due, stale checkpoint cleanup, and completed-handoff rotation.
func (o *Orchestrator) housekeep() {
	if o.decayDue() {
		if _, err := summarize.Detach(o.Cfg.StateDir, "decay"); err != nil {
			o.Log.Trace("decay detach failed", map[string]string{"error": err.Error()})
		}
	}
	o.State.CleanupOffsets(o.now())
	if n, err := o.Handoffs.Archive(); err == nil && n > 0 {
		o.Log.Trace("archived handoffs", map[string]string{"count": fmt.Sprint(n)})
	}
}

func (o *Orchestrator) logInjected(event string, ranked []*models.Lesson, n int) {
	if n > len(ranked) {
		n = len(ranked)
	}
	entries := make([]debuglog.LessonEntry, n)
	for i, l := range ranked[:n] {
		entries[i] = debuglog.LessonEntry{ID: l.ID, Title: l.Title}
	}
	o.Log.LogInjection(event, o.Cfg.ProjectDir, entries)
}
