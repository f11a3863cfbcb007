// Package hooks implements the five host entry points: session-start,
// prompt-submit, stop, pre-compact, and session-end. Every hook reads one
// JSON object from stdin and writes at most one to stdout. The overriding
// rule is do-no-harm: a hook that fails, times out, or finds recall
// disabled exits 0 with no output so the host session is never blocked.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/boshu2/recall/internal/config"
	"github.com/boshu2/recall/internal/debuglog"
	"github.com/boshu2/recall/internal/decay"
	"github.com/boshu2/recall/internal/handoffs"
	"github.com/boshu2/recall/internal/lessons"
	"github.com/boshu2/recall/internal/relevance"
	"github.com/boshu2/recall/internal/state"
	"github.com/boshu2/recall/internal/summarize"
)

// DefaultTimeout is the top-level deadline per hook invocation.
const DefaultTimeout = 20 * time.Second

// Heavy-work thresholds for auto-creating a handoff.
const (
	HeavyEditThreshold = 4
	HeavyTodoThreshold = 3
)

// Input is the host's hook payload. Fields are a superset across the five
// hooks; absent ones stay zero.
type Input struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
	Prompt         string `json:"prompt"`
	StopReason     string `json:"stop_reason"`
	Trigger        string `json:"trigger"`
}

// Output is what a hook hands back to the host.
type Output struct {
	AdditionalContext string `json:"additionalContext,omitempty"`
}

// Orchestrator wires the stores and services one hook invocation needs.
type Orchestrator struct {
	Cfg      *config.Config
	Lessons  lessons.Repository
	Handoffs handoffs.Repository
	State    *state.Store
	Log      *debuglog.Logger
	Scorer   *relevance.Scorer
	Decay    *decay.Engine

	// Summarizer is nil when the provider is "none" or unavailable.
	Summarizer summarize.Summarizer

	now func() time.Time
}

// New builds an orchestrator from resolved configuration.
func New(cfg *config.Config) *Orchestrator {
	lessonStore := lessons.NewStore(cfg.ProjectLessonsPath(), cfg.SystemLessonsPath())
	lessonStore.StaleDays = cfg.Lessons.StaleDays

	o := &Orchestrator{
		Cfg:      cfg,
		Lessons:  lessonStore,
		Handoffs: handoffs.NewStore(cfg.SharedHandoffsPath(), cfg.StealthHandoffsPath()),
		State:    state.NewStore(cfg.StateDir),
		Log:      debuglog.New(cfg.StateDir, cfg.DebugLevel),
		now:      time.Now,
	}
	o.Decay = decay.NewEngine(lessonStore, o.State)

	o.Summarizer = newSummarizer(cfg)
	scorer := &relevance.Scorer{
		Cache:   relevance.NewCache(cfg.StateDir, cfg.Relevance.JaccardThreshold),
		Timeout: time.Duration(cfg.Relevance.TimeoutSecs) * time.Second,
	}
	if ranker, ok := o.Summarizer.(relevance.ExternalRanker); ok && cfg.Relevance.Ranker != "local" {
		scorer.External = ranker
	}
	o.Scorer = scorer
	return o
}

func newSummarizer(cfg *config.Config) summarize.Summarizer {
	switch cfg.Summarize.Provider {
	case "openai":
		s, err := summarize.NewOpenAI(cfg.Summarize.Model)
		if err != nil {
			return nil
		}
		return s
	case "none":
		return nil
	default:
		return &summarize.ClaudeCLI{Command: cfg.Summarize.Command}
	}
}

// Run executes one named hook end to end: decode stdin, dispatch under the
// deadline, encode stdout. The returned code is always 0; hooks never fail
// the host.
func Run(name string, stdin io.Reader, stdout io.Writer) int {
	var input Input
	_ = json.NewDecoder(stdin).Decode(&input)

	cfg, err := config.Load(input.Cwd)
	if err != nil || !cfg.IsEnabled() {
		return 0
	}
	if cfg.SessionID != "" {
		input.SessionID = cfg.SessionID
	}

	o := New(cfg)
	start := o.now()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	type result struct {
		out *Output
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := o.dispatch(ctx, name, &input)
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		o.Log.LogHook(name, input.SessionID, o.now().Sub(start).Milliseconds(), ctx.Err())
		return 0
	case r := <-done:
		o.Log.LogHook(name, input.SessionID, o.now().Sub(start).Milliseconds(), r.err)
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "recall: %s: %v\n", name, r.err)
			return 0
		}
		if r.out != nil && r.out.AdditionalContext != "" {
			_ = json.NewEncoder(stdout).Encode(r.out)
		}
		return 0
	}
}

func stderr() io.Writer {
	return os.Stderr
}

func (o *Orchestrator) decayDue() bool {
	return o.Decay != nil && o.Decay.Due()
}

func (o *Orchestrator) dispatch(ctx context.Context, name string, input *Input) (*Output, error) {
	switch name {
	case "session-start":
		return o.SessionStart(ctx, input)
	case "prompt-submit":
		return o.PromptSubmit(ctx, input)
	case "stop":
		return o.Stop(ctx, input)
	case "pre-compact":
		return o.PreCompact(ctx, input)
	case "session-end":
		return o.SessionEnd(ctx, input)
	default:
		return nil, fmt.Errorf("unknown hook %q", name)
	}
}
