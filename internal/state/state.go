// Package state manages the small JSON state files that sit beside the
// markdown stores: transcript byte offsets, the session→handoff map, the
// decay timestamp, and the pre-compact session snapshot. Every file here is
// rebuildable from transcripts and markdown; on corruption the file is reset
// to empty and work continues (data loss is bounded to that file).
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
)

// File names under the state directory.
const (
	OffsetsFile         = "transcript_offsets.json"
	SessionHandoffsFile = "session-handoffs.json"
	DecayStateFile      = "decay-state.json"
)

// SnapshotFile is the transient pre-compact fallback under the project dir.
const SnapshotFile = ".session-snapshot"

// CleanupSampleSize bounds how many offset entries one invocation inspects.
const CleanupSampleSize = 10

// CleanupMaxAge is how old a checkpoint must be before cleanup considers it.
const CleanupMaxAge = 7 * 24 * time.Hour

// Store reads and writes the state files for one state directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily on
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory path.
func (s *Store) Dir() string {
	return s.dir
}

// offsetEntry is one checkpoint: transcript path plus the byte offset of the
// last successful scan.
type offsetEntry struct {
	Offset         int64  `json:"offset"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// GetOffset returns the stored byte offset for a session, or 0 if absent.
func (s *Store) GetOffset(sessionID string) int64 {
	entries := s.readOffsets()
	return entries[sessionID].Offset
}

// SetOffset records the byte offset for a session atomically.
func (s *Store) SetOffset(sessionID, transcriptPath string, offset int64) error {
	entries := s.readOffsets()
	entries[sessionID] = offsetEntry{
		Offset:         offset,
		TranscriptPath: transcriptPath,
		UpdatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	return s.writeJSON(OffsetsFile, entries)
}

// CleanupOffsets opportunistically removes mappings older than CleanupMaxAge
// whose transcript no longer exists. At most CleanupSampleSize entries are
// inspected per invocation to bound cost. Returns the number removed.
func (s *Store) CleanupOffsets(now time.Time) int {
	entries := s.readOffsets()
	removed := 0
	inspected := 0
	for sid, e := range entries {
		if inspected >= CleanupSampleSize {
			break
		}
		inspected++
		t, err := time.Parse(time.RFC3339, e.UpdatedAt)
		if err != nil || now.Sub(t) < CleanupMaxAge {
			continue
		}
		if e.TranscriptPath != "" {
			if _, err := os.Stat(e.TranscriptPath); err == nil {
				continue
			}
		}
		delete(entries, sid)
		removed++
	}
	if removed > 0 {
		_ = s.writeJSON(OffsetsFile, entries)
	}
	return removed
}

func (s *Store) readOffsets() map[string]offsetEntry {
	entries := map[string]offsetEntry{}
	s.readJSON(OffsetsFile, &entries)
	return entries
}

// sessionLink joins a session to its handoff and transcript.
type sessionLink struct {
	HandoffID      string `json:"handoff_id"`
	TranscriptPath string `json:"transcript_path,omitempty"`
}

// GetSessionHandoff returns the handoff linked to a session, or "".
func (s *Store) GetSessionHandoff(sessionID string) string {
	links := map[string]sessionLink{}
	s.readJSON(SessionHandoffsFile, &links)
	return links[sessionID].HandoffID
}

// SetSessionHandoff links a session to a handoff atomically.
func (s *Store) SetSessionHandoff(sessionID, handoffID, transcriptPath string) error {
	links := map[string]sessionLink{}
	s.readJSON(SessionHandoffsFile, &links)
	links[sessionID] = sessionLink{HandoffID: handoffID, TranscriptPath: transcriptPath}
	return s.writeJSON(SessionHandoffsFile, links)
}

// DecayState tracks when decay last ran and how many sessions have been
// processed since. The counter replaces mtime sniffing: the stop hook calls
// BumpSessionCount and the decay engine resets it.
type DecayState struct {
	LastRun           string `json:"last_run"`
	SessionsSinceLast int    `json:"sessions_since_last,omitempty"`
}

// ReadDecayState loads the decay state, zero-valued when absent or corrupt.
func (s *Store) ReadDecayState() DecayState {
	var ds DecayState
	s.readJSON(DecayStateFile, &ds)
	return ds
}

// WriteDecayState persists the decay state atomically.
func (s *Store) WriteDecayState(ds DecayState) error {
	return s.writeJSON(DecayStateFile, ds)
}

// BumpSessionCount increments the sessions-since-decay counter.
func (s *Store) BumpSessionCount() error {
	ds := s.ReadDecayState()
	ds.SessionsSinceLast++
	return s.WriteDecayState(ds)
}

// Snapshot is the minimal session record written when pre-compact context
// extraction is unavailable, surfaced by a later session-start.
type Snapshot struct {
	ID           string   `json:"id"`
	SessionID    string   `json:"session_id"`
	CapturedAt   string   `json:"captured_at"`
	HandoffID    string   `json:"handoff_id,omitempty"`
	RecentFiles  []string `json:"recent_files,omitempty"`
	LastMessages []string `json:"last_messages,omitempty"`
}

// WriteSnapshot stores the fallback snapshot under the project directory.
func WriteSnapshot(projectRecallDir string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(projectRecallDir, 0o700); err != nil {
		return err
	}
	path := filepath.Join(projectRecallDir, SnapshotFile)
	return renameio.WriteFile(path, append(data, '\n'), 0o600)
}

// ReadSnapshot loads and removes the fallback snapshot, if present.
func ReadSnapshot(projectRecallDir string) (*Snapshot, error) {
	path := filepath.Join(projectRecallDir, SnapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("corrupt snapshot discarded: %w", err)
	}
	_ = os.Remove(path)
	return &snap, nil
}

// readJSON loads a state file into v. Missing or corrupt files leave v as-is
// (corrupt files are reset on the next write).
func (s *Store) readJSON(name string, v any) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, v)
}

// writeJSON writes a state file atomically via temp-file + rename.
func (s *Store) writeJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := renameio.WriteFile(filepath.Join(s.dir, name), append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
