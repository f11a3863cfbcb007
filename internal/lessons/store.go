// Package lessons implements the two-tier markdown-backed lesson store.
// The project tier lives in $PROJECT_DIR/.claude-recall/LESSONS.md, the
// system tier in the state directory. Every mutator follows the same shape:
// acquire the file lock, read, mutate in memory, write atomically, release.
// Reads and writes of the same file never interleave.
package lessons

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/boshu2/recall/internal/lockfile"
	"github.com/boshu2/recall/internal/markdown"
	"github.com/boshu2/recall/internal/models"
)

// DefaultStaleDays is the stale filter window for Search.
const DefaultStaleDays = 60

// PromotionMinUses is the citation count required before Promote.
const PromotionMinUses = 50

// Repository is the capability interface consumed by orchestrators.
type Repository interface {
	Add(opts AddOptions) (*models.Lesson, error)
	Cite(ids ...string) ([]string, error)
	Edit(id string, fields EditFields) (*models.Lesson, error)
	Delete(id string) error
	Get(id string) (*models.Lesson, error)
	List() ([]*models.Lesson, error)
	Search(query string, category models.Category, staleOnly bool) ([]*models.Lesson, error)
	Promote(id string) (*models.Lesson, error)
}

// Store is the file-backed Repository.
type Store struct {
	projectPath string
	systemPath  string

	// StaleDays overrides the stale window; zero means DefaultStaleDays.
	StaleDays int

	now func() time.Time
}

var _ Repository = (*Store)(nil)

// NewStore creates a store over the two tier files.
func NewStore(projectPath, systemPath string) *Store {
	return &Store{projectPath: projectPath, systemPath: systemPath, now: time.Now}
}

// AddOptions are the inputs to Add.
type AddOptions struct {
	Level      models.Level
	Category   models.Category
	Title      string
	Content    string
	Source     models.Source
	Promotable bool
	Type       models.LessonType
	Triggers   []string

	// Force skips duplicate-title detection.
	Force bool
}

// Add creates a lesson with the next free ID in its tier.
func (s *Store) Add(opts AddOptions) (*models.Lesson, error) {
	if !models.ValidCategory(opts.Category) {
		return nil, fmt.Errorf("invalid category %q", opts.Category)
	}
	if !models.ValidLessonType(opts.Type) {
		return nil, fmt.Errorf("invalid type %q", opts.Type)
	}
	title := models.Truncate(strings.Join(strings.Fields(models.Sanitize(opts.Title)), " "), models.MaxTitleLength)
	content := models.Truncate(models.Sanitize(opts.Content), models.MaxContentLength)
	if title == "" {
		return nil, fmt.Errorf("empty title")
	}

	path := s.tierPath(opts.Level)
	var created *models.Lesson
	err := s.mutate(path, func(all []*models.Lesson) ([]*models.Lesson, error) {
		if !opts.Force {
			norm := models.NormalizeTitle(title)
			for _, l := range all {
				if models.NormalizeTitle(l.Title) == norm {
					return nil, &DuplicateError{ID: l.ID, Title: title}
				}
			}
		}
		today := s.today()
		created = &models.Lesson{
			ID:         nextID(opts.Level, all),
			Title:      title,
			Content:    content,
			Category:   opts.Category,
			Uses:       0,
			Velocity:   0,
			Learned:    today,
			LastUsed:   today,
			Source:     opts.Source,
			Level:      opts.Level,
			Promotable: opts.Promotable,
			Type:       opts.Type,
			Triggers:   opts.Triggers,
		}
		return append(all, created), nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Cite increments uses (saturating at 100), bumps velocity by 1.0, and
// stamps last-used for each ID. IDs that exist are returned; unknown IDs are
// skipped silently (the transcript may cite a deleted lesson).
func (s *Store) Cite(ids ...string) ([]string, error) {
	project, system := splitByTier(ids)
	var cited []string

	apply := func(path string, wanted map[string]bool) error {
		if len(wanted) == 0 {
			return nil
		}
		return s.mutate(path, func(all []*models.Lesson) ([]*models.Lesson, error) {
			today := s.today()
			for _, l := range all {
				if wanted[l.ID] {
					l.Cite(today)
					cited = append(cited, l.ID)
				}
			}
			return all, nil
		})
	}

	if err := apply(s.projectPath, project); err != nil {
		return cited, err
	}
	if err := apply(s.systemPath, system); err != nil {
		return cited, err
	}
	return cited, nil
}

// EditFields holds optional field updates; nil pointers are left unchanged.
type EditFields struct {
	Title    *string
	Content  *string
	Category *models.Category
	Type     *models.LessonType
	Triggers *[]string
}

// Edit updates fields on an existing lesson.
func (s *Store) Edit(id string, fields EditFields) (*models.Lesson, error) {
	var edited *models.Lesson
	err := s.mutate(s.pathForID(id), func(all []*models.Lesson) ([]*models.Lesson, error) {
		l := findByID(all, id)
		if l == nil {
			return nil, &NotFoundError{ID: id}
		}
		if fields.Title != nil {
			l.Title = models.Truncate(models.Sanitize(*fields.Title), models.MaxTitleLength)
		}
		if fields.Content != nil {
			l.Content = models.Truncate(models.Sanitize(*fields.Content), models.MaxContentLength)
		}
		if fields.Category != nil {
			if !models.ValidCategory(*fields.Category) {
				return nil, fmt.Errorf("invalid category %q", *fields.Category)
			}
			l.Category = *fields.Category
		}
		if fields.Type != nil {
			if !models.ValidLessonType(*fields.Type) {
				return nil, fmt.Errorf("invalid type %q", *fields.Type)
			}
			l.Type = *fields.Type
		}
		if fields.Triggers != nil {
			l.Triggers = *fields.Triggers
		}
		edited = l
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return edited, nil
}

// Delete removes a lesson's record block.
func (s *Store) Delete(id string) error {
	return s.mutate(s.pathForID(id), func(all []*models.Lesson) ([]*models.Lesson, error) {
		out := all[:0]
		found := false
		for _, l := range all {
			if l.ID == id {
				found = true
				continue
			}
			out = append(out, l)
		}
		if !found {
			return nil, &NotFoundError{ID: id}
		}
		return out, nil
	})
}

// Get returns a lesson by ID from either tier.
func (s *Store) Get(id string) (*models.Lesson, error) {
	all, err := s.readTier(s.pathForID(id))
	if err != nil {
		return nil, err
	}
	if l := findByID(all, id); l != nil {
		return l, nil
	}
	return nil, &NotFoundError{ID: id}
}

// List returns lessons from both tiers, project first.
func (s *Store) List() ([]*models.Lesson, error) {
	project, err := s.readTier(s.projectPath)
	if err != nil {
		return nil, err
	}
	system, err := s.readTier(s.systemPath)
	if err != nil {
		return nil, err
	}
	return append(project, system...), nil
}

// Search filters both tiers by substring query, category, and staleness.
func (s *Store) Search(query string, category models.Category, staleOnly bool) ([]*models.Lesson, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	staleDays := s.StaleDays
	if staleDays == 0 {
		staleDays = DefaultStaleDays
	}
	q := strings.ToLower(query)
	now := s.now()

	var out []*models.Lesson
	for _, l := range all {
		if category != "" && l.Category != category {
			continue
		}
		if staleOnly && !l.IsStale(now, staleDays) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(l.Title+" "+l.Content), q) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// Promote copies a project lesson into the system tier with a fresh S###
// ID. The original stays in place; the host decides archival. Requires
// promotable and uses >= PromotionMinUses.
func (s *Store) Promote(id string) (*models.Lesson, error) {
	src, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if src.Level != models.LevelProject {
		return nil, &NotPromotableError{ID: id, Reason: "already system tier"}
	}
	if !src.Promotable {
		return nil, &NotPromotableError{ID: id, Reason: "marked not promotable"}
	}
	if src.Uses < PromotionMinUses {
		return nil, &NotPromotableError{ID: id, Reason: fmt.Sprintf("uses %d below threshold %d", src.Uses, PromotionMinUses)}
	}

	var promoted *models.Lesson
	err = s.mutate(s.systemPath, func(all []*models.Lesson) ([]*models.Lesson, error) {
		clone := *src
		clone.ID = nextID(models.LevelSystem, all)
		clone.Level = models.LevelSystem
		promoted = &clone
		return append(all, promoted), nil
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// MutateAll applies fn to every lesson in both tiers under their locks.
// The decay engine runs through here so corpus-wide updates stay two-phase.
func (s *Store) MutateAll(fn func(*models.Lesson)) error {
	for _, path := range []string{s.projectPath, s.systemPath} {
		err := s.mutate(path, func(all []*models.Lesson) ([]*models.Lesson, error) {
			for _, l := range all {
				fn(l)
			}
			return all, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// mutate runs the lock → read → mutate → atomic write → release cycle.
func (s *Store) mutate(path string, fn func([]*models.Lesson) ([]*models.Lesson, error)) error {
	return lockfile.WithLock(path, func() error {
		all, err := s.readTier(path)
		if err != nil {
			return err
		}
		out, err := fn(all)
		if err != nil {
			return err
		}
		for _, l := range out {
			l.Clamp()
		}
		return writeTier(path, out)
	})
}

// readTier parses one tier file; a missing file is an empty tier.
func (s *Store) readTier(path string) ([]*models.Lesson, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	parsed, diags := markdown.ParseLessons(string(data))
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "recall: %s: %s\n", filepath.Base(path), d)
	}
	return parsed, nil
}

func writeTier(path string, all []*models.Lesson) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return renameio.WriteFile(path, []byte(markdown.SerializeLessons(all)), 0o644)
}

func (s *Store) tierPath(level models.Level) string {
	if level == models.LevelSystem {
		return s.systemPath
	}
	return s.projectPath
}

func (s *Store) pathForID(id string) string {
	if strings.HasPrefix(id, "S") {
		return s.systemPath
	}
	return s.projectPath
}

func (s *Store) today() string {
	return s.now().Format(models.DateFormat)
}

func findByID(all []*models.Lesson, id string) *models.Lesson {
	for _, l := range all {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// nextID assigns max(id)+1 within the tier, formatted as three digits.
func nextID(level models.Level, all []*models.Lesson) string {
	prefix := "L"
	if level == models.LevelSystem {
		prefix = "S"
	}
	max := 0
	for _, l := range all {
		if len(l.ID) != 4 || !strings.HasPrefix(l.ID, prefix) {
			continue
		}
		if n, err := strconv.Atoi(l.ID[1:]); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, max+1)
}

func splitByTier(ids []string) (project, system map[string]bool) {
	project = map[string]bool{}
	system = map[string]bool{}
	for _, id := range ids {
		if !models.LessonIDPattern.MatchString(id) {
			continue
		}
		if strings.HasPrefix(id, "S") {
			system[id] = true
		} else {
			project[id] = true
		}
	}
	return project, system
}

// SortByScore orders lessons by the injection score (uses 0.7, velocity
// 0.3), descending, stable on ID for determinism.
func SortByScore(all []*models.Lesson) {
	sort.SliceStable(all, func(i, j int) bool {
		si, sj := all[i].Score(), all[j].Score()
		if si != sj {
			return si > sj
		}
		return all[i].ID < all[j].ID
	})
}
