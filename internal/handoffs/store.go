// Package handoffs implements the markdown-backed handoff store. Shared
// handoffs live in HANDOFFS.md; stealth handoffs in HANDOFFS_LOCAL.md, which
// is intended to be gitignored. Completed handoffs rotate out of the active
// files into HANDOFFS_ARCHIVE.md.
package handoffs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio/v2"

	"github.com/boshu2/recall/internal/lockfile"
	"github.com/boshu2/recall/internal/markdown"
	"github.com/boshu2/recall/internal/models"
)

// ArchiveKeepDays is the window in which completed handoffs stay active.
const ArchiveKeepDays = 7

// ArchiveKeepRecent is the number of most-recent completed handoffs kept
// active regardless of age.
const ArchiveKeepRecent = 3

// NotFoundError reports a handoff ID in neither file.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("handoff not found: %s", e.ID)
}

// Repository is the capability interface consumed by orchestrators.
type Repository interface {
	Add(opts AddOptions) (*models.Handoff, error)
	Update(id string, fields UpdateFields) (*models.Handoff, error)
	AddTriedStep(id string, outcome models.Outcome, desc string) (*models.Handoff, error)
	Complete(id string) (*models.Handoff, error)
	Archive() (int, error)
	SetContext(id string, ctx models.ContextRecord) error
	LinkSession(id, sessionID string) error
	GetByID(id string) (*models.Handoff, error)
	List(filter ListFilter) ([]*models.Handoff, error)
}

// Store is the file-backed Repository.
type Store struct {
	sharedPath  string
	stealthPath string
	archivePath string

	now func() time.Time
}

var _ Repository = (*Store)(nil)

// NewStore creates a store over the shared and stealth files. The archive
// sits beside the shared file.
func NewStore(sharedPath, stealthPath string) *Store {
	return &Store{
		sharedPath:  sharedPath,
		stealthPath: stealthPath,
		archivePath: filepath.Join(filepath.Dir(sharedPath), "HANDOFFS_ARCHIVE.md"),
		now:         time.Now,
	}
}

// AddOptions are the inputs to Add.
type AddOptions struct {
	Title       string
	Description string
	Agent       models.Agent
	Phase       models.Phase
	Status      models.Status
	Stealth     bool
}

// Add creates a handoff with a fresh random ID. A generated ID that
// collides with an existing record is resampled.
func (s *Store) Add(opts AddOptions) (*models.Handoff, error) {
	title := models.Truncate(models.Sanitize(opts.Title), models.MaxTitleLength)
	if title == "" {
		return nil, fmt.Errorf("empty title")
	}
	status := opts.Status
	if status == "" {
		status = models.StatusNotStarted
	}
	phase := opts.Phase
	if phase == "" {
		phase = models.PhaseResearch
	}

	var created *models.Handoff
	err := s.mutate(s.pathFor(opts.Stealth), func(all []*models.Handoff) ([]*models.Handoff, error) {
		id := models.NewHandoffID()
		for findByID(all, id) != nil {
			id = models.NewHandoffID()
		}
		today := s.today()
		created = &models.Handoff{
			ID:          id,
			Title:       title,
			Status:      status,
			Phase:       phase,
			Agent:       opts.Agent,
			Created:     today,
			Updated:     today,
			Description: models.Sanitize(opts.Description),
			Stealth:     opts.Stealth,
		}
		created.NormalizeState()
		return append(all, created), nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateFields holds optional updates; nil pointers are left unchanged.
type UpdateFields struct {
	Title       *string
	Status      *models.Status
	Phase       *models.Phase
	Agent       *models.Agent
	Description *string
	NextSteps   *string
	Checkpoint  *string
	Refs        *[]string
	BlockedBy   *[]string
}

// Update applies field updates to a handoff and normalizes its state.
func (s *Store) Update(id string, fields UpdateFields) (*models.Handoff, error) {
	return s.mutateOne(id, func(h *models.Handoff) error {
		if fields.Title != nil {
			h.Title = models.Truncate(models.Sanitize(*fields.Title), models.MaxTitleLength)
		}
		if fields.Status != nil {
			h.Status = *fields.Status
		}
		if fields.Phase != nil {
			h.Phase = *fields.Phase
		}
		if fields.Agent != nil {
			h.Agent = *fields.Agent
		}
		if fields.Description != nil {
			h.Description = models.Sanitize(*fields.Description)
		}
		if fields.NextSteps != nil {
			h.NextSteps = models.Sanitize(*fields.NextSteps)
		}
		if fields.Checkpoint != nil {
			h.Checkpoint = models.Sanitize(*fields.Checkpoint)
		}
		if fields.Refs != nil {
			h.Refs = *fields.Refs
		}
		if fields.BlockedBy != nil {
			h.BlockedBy = *fields.BlockedBy
		}
		h.Updated = s.today()
		h.NormalizeState()
		return nil
	})
}

// AddTriedStep appends an attempt and applies the auto-transitions (terminal
// success completes; implementing language advances the phase).
func (s *Store) AddTriedStep(id string, outcome models.Outcome, desc string) (*models.Handoff, error) {
	if !models.ValidOutcome(outcome) {
		return nil, fmt.Errorf("invalid outcome %q", outcome)
	}
	return s.mutateOne(id, func(h *models.Handoff) error {
		h.ApplyTriedStep(models.TriedStep{
			Outcome:     outcome,
			Description: models.Sanitize(desc),
		}, s.today())
		return nil
	})
}

// Complete marks a handoff completed; completing twice is a no-op.
func (s *Store) Complete(id string) (*models.Handoff, error) {
	return s.mutateOne(id, func(h *models.Handoff) error {
		h.Complete(s.today())
		return nil
	})
}

// SetContext attaches a pre-compact context record.
func (s *Store) SetContext(id string, ctx models.ContextRecord) error {
	_, err := s.mutateOne(id, func(h *models.Handoff) error {
		h.Context = &ctx
		h.Updated = s.today()
		return nil
	})
	return err
}

// LinkSession records a session against a handoff.
func (s *Store) LinkSession(id, sessionID string) error {
	_, err := s.mutateOne(id, func(h *models.Handoff) error {
		h.LinkSession(sessionID, s.today())
		return nil
	})
	return err
}

// GetByID returns a handoff from either file.
func (s *Store) GetByID(id string) (*models.Handoff, error) {
	for _, stealth := range []bool{false, true} {
		all, err := s.readFile(s.pathFor(stealth), stealth)
		if err != nil {
			return nil, err
		}
		if h := findByID(all, id); h != nil {
			return h, nil
		}
	}
	return nil, &NotFoundError{ID: id}
}

// ListFilter narrows List results.
type ListFilter struct {
	Status           models.Status
	IncludeCompleted bool
}

// List returns handoffs from both files, shared first. Completed handoffs
// are excluded unless requested.
func (s *Store) List(filter ListFilter) ([]*models.Handoff, error) {
	var out []*models.Handoff
	for _, stealth := range []bool{false, true} {
		all, err := s.readFile(s.pathFor(stealth), stealth)
		if err != nil {
			return nil, err
		}
		for _, h := range all {
			if filter.Status != "" && h.Status != filter.Status {
				continue
			}
			if !filter.IncludeCompleted && filter.Status == "" && h.Status == models.StatusCompleted {
				continue
			}
			out = append(out, h)
		}
	}
	return out, nil
}

// Archive rotates completed handoffs out of both active files. A completed
// handoff stays active while it is within ArchiveKeepDays or among the
// ArchiveKeepRecent most recently updated; the rest move to the archive
// file. Returns the number archived.
func (s *Store) Archive() (int, error) {
	total := 0
	cutoff := s.now().AddDate(0, 0, -ArchiveKeepDays)

	for _, stealth := range []bool{false, true} {
		path := s.pathFor(stealth)
		var archived []*models.Handoff
		err := s.mutate(path, func(all []*models.Handoff) ([]*models.Handoff, error) {
			active, completed := partition(all)
			sort.SliceStable(completed, func(i, j int) bool {
				return completed[i].Updated > completed[j].Updated
			})
			for i, h := range completed {
				recent := false
				if t, err := time.Parse(models.DateFormat, h.Updated); err == nil && t.After(cutoff) {
					recent = true
				}
				if recent || i < ArchiveKeepRecent {
					active = append(active, h)
				} else {
					archived = append(archived, h)
				}
			}
			return active, nil
		})
		if err != nil {
			return total, err
		}
		if len(archived) > 0 {
			if err := s.appendArchive(archived); err != nil {
				return total, err
			}
			total += len(archived)
		}
	}
	return total, nil
}

func partition(all []*models.Handoff) (active, completed []*models.Handoff) {
	for _, h := range all {
		if h.Status == models.StatusCompleted {
			completed = append(completed, h)
		} else {
			active = append(active, h)
		}
	}
	return active, completed
}

func (s *Store) appendArchive(batch []*models.Handoff) error {
	return s.mutate(s.archivePath, func(all []*models.Handoff) ([]*models.Handoff, error) {
		return append(all, batch...), nil
	})
}

// mutateOne locates id in either file and applies fn under that file's lock.
func (s *Store) mutateOne(id string, fn func(*models.Handoff) error) (*models.Handoff, error) {
	var result *models.Handoff
	for _, stealth := range []bool{false, true} {
		path := s.pathFor(stealth)
		found := false
		err := s.mutate(path, func(all []*models.Handoff) ([]*models.Handoff, error) {
			h := findByID(all, id)
			if h == nil {
				return all, nil
			}
			found = true
			if err := fn(h); err != nil {
				return nil, err
			}
			result = h
			return all, nil
		})
		if err != nil {
			return nil, err
		}
		if found {
			return result, nil
		}
	}
	return nil, &NotFoundError{ID: id}
}

// mutate runs the lock → read → mutate → atomic write → release cycle.
func (s *Store) mutate(path string, fn func([]*models.Handoff) ([]*models.Handoff, error)) error {
	stealth := path == s.stealthPath
	return lockfile.WithLock(path, func() error {
		all, err := s.readFile(path, stealth)
		if err != nil {
			return err
		}
		out, err := fn(all)
		if err != nil {
			return err
		}
		for _, h := range out {
			h.NormalizeState()
		}
		return writeFile(path, out)
	})
}

func (s *Store) readFile(path string, stealth bool) ([]*models.Handoff, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	parsed, diags := markdown.ParseHandoffs(string(data))
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "recall: %s: %s\n", filepath.Base(path), d)
	}
	for _, h := range parsed {
		h.Stealth = stealth
	}
	return parsed, nil
}

func writeFile(path string, all []*models.Handoff) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return renameio.WriteFile(path, []byte(markdown.SerializeHandoffs(all)), 0o644)
}

func (s *Store) pathFor(stealth bool) string {
	if stealth {
		return s.stealthPath
	}
	return s.sharedPath
}

func (s *Store) today() string {
	return s.now().Format(models.DateFormat)
}

func findByID(all []*models.Handoff, id string) *models.Handoff {
	for _, h := range all {
		if h.ID == id {
			return h
		}
	}
	return nil
}
