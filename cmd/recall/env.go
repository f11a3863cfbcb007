package main

import (
	"fmt"
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

// env bundles the resolved config and stores for one command invocation.
type env struct {
	cfg      *config.Config
	lessons  *lessons.Store
	handoffs *handoffs.Store
	state    *state.Store
	log      *debuglog.Logger
}

// newEnv resolves configuration and opens the stores.
func newEnv() (*env, error) {
	cwd, _ := os.Getwd()
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	lessonStore := lessons.NewStore(cfg.ProjectLessonsPath(), cfg.SystemLessonsPath())
	lessonStore.StaleDays = cfg.Lessons.StaleDays
	return &env{
		cfg:      cfg,
		lessons:  lessonStore,
		handoffs: handoffs.NewStore(cfg.SharedHandoffsPath(), cfg.StealthHandoffsPath()),
		state:    state.NewStore(cfg.StateDir),
		log:      debuglog.New(cfg.StateDir, cfg.DebugLevel),
	}, nil
}

// enabled reports whether mutating commands may run. Disabled means exit 0
// with no effect.
func (e *env) enabled() bool {
	return e.cfg.IsEnabled()
}

func (e *env) decayEngine() *decay.Engine {
	return decay.NewEngine(e.lessons, e.state)
}

// scorer builds the relevance scorer per config. External rankers go
// through the summarizer providers; anything else is local BM25.
func (e *env) scorer(external bool) *relevance.Scorer {
	s := &relevance.Scorer{
		Cache:   relevance.NewCache(e.cfg.StateDir, e.cfg.Relevance.JaccardThreshold),
		Timeout: time.Duration(e.cfg.Relevance.TimeoutSecs) * time.Second,
	}
	if external && e.cfg.Relevance.Ranker != "local" {
		if ranker, ok := e.summarizer().(relevance.ExternalRanker); ok {
			s.External = ranker
		}
	}
	return s
}

func (e *env) summarizer() summarize.Summarizer {
	switch e.cfg.Summarize.Provider {
	case "openai":
		s, err := summarize.NewOpenAI(e.cfg.Summarize.Model)
		if err != nil {
			return nil
		}
		return s
	case "none":
		return nil
	default:
		return &summarize.ClaudeCLI{Command: e.cfg.Summarize.Command}
	}
}
