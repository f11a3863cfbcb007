// Package debuglog writes a structured JSONL event log under the state
// directory. Hooks run non-interactively, so this log is the only window
// into what was injected, cited, or extracted. Level 0 disables it.
package debuglog

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileName is the event log file under the state dir.
const FileName = "recall.log"

// Levels. Higher levels include everything below them.
const (
	LevelOff   = 0
	LevelInfo  = 1
	LevelDebug = 2
	LevelTrace = 3
)

// Logger is a leveled event logger. The zero value discards everything.
type Logger struct {
	log   zerolog.Logger
	level int
}

// LessonEntry identifies one injected lesson in a log event.
type LessonEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// New opens the event log under stateDir at the given level. Any failure to
// open the file yields a discarding logger; logging never breaks a hook.
func New(stateDir string, level int) *Logger {
	if level <= LevelOff {
		return &Logger{}
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return &Logger{}
	}
	f, err := os.OpenFile(filepath.Join(stateDir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return &Logger{}
	}
	return &Logger{
		log:   zerolog.New(f).With().Timestamp().Logger(),
		level: level,
	}
}

// LogInjection records which lessons were injected and for which event.
func (l *Logger) LogInjection(event, projectDir string, entries []LessonEntry) {
	if l.level < LevelInfo {
		return
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	l.log.Info().
		Str("event", event).
		Str("project", projectDir).
		Strs("lessons", ids).
		Msg("inject")
}

// LogCitations records lesson IDs cited during a stop scan.
func (l *Logger) LogCitations(sessionID string, ids []string) {
	if l.level < LevelInfo || len(ids) == 0 {
		return
	}
	l.log.Info().
		Str("session", sessionID).
		Strs("lessons", ids).
		Msg("cite")
}

// LogScan records the outcome of one transcript scan.
func (l *Logger) LogScan(sessionID string, offset, newOffset int64, citations, commands int) {
	if l.level < LevelDebug {
		return
	}
	l.log.Debug().
		Str("session", sessionID).
		Int64("offset", offset).
		Int64("new_offset", newOffset).
		Int("citations", citations).
		Int("commands", commands).
		Msg("scan")
}

// LogHook records a hook invocation and its duration in milliseconds.
func (l *Logger) LogHook(hook, sessionID string, durationMs int64, err error) {
	if l.level < LevelInfo {
		return
	}
	ev := l.log.Info()
	if err != nil {
		ev = l.log.Error().Err(err)
	}
	ev.Str("hook", hook).
		Str("session", sessionID).
		Int64("duration_ms", durationMs).
		Msg("hook")
}

// Trace records a free-form diagnostic at the highest verbosity.
func (l *Logger) Trace(msg string, kv map[string]string) {
	if l.level < LevelTrace {
		return
	}
	ev := l.log.Trace()
	for k, v := range kv {
		ev = ev.Str(k, v)
	}
	ev.Msg(msg)
}
