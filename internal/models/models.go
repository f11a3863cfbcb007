// Package models defines the data structures for the recall memory engine:
// lessons, handoffs, tried-steps, and their enumerations. The two markdown
// files (LESSONS.md, HANDOFFS.md) are the authoritative state; everything
// here is a transient in-memory view of one of them.
package models

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// DateFormat is the on-disk date format used in markdown metadata.
const DateFormat = "2006-01-02"

// Field length caps applied during sanitization.
const (
	// MaxTitleLength caps lesson and handoff titles.
	MaxTitleLength = 200

	// MaxContentLength caps lesson content after sanitization.
	MaxContentLength = 1000
)

// MaxUses is the saturation ceiling for a lesson's use count.
const MaxUses = 100

// VelocityFloor is the epsilon below which velocity snaps to zero.
const VelocityFloor = 0.01

// Category classifies what kind of knowledge a lesson captures.
type Category string

const (
	CategoryPattern    Category = "pattern"
	CategoryCorrection Category = "correction"
	CategoryDecision   Category = "decision"
	CategoryGotcha     Category = "gotcha"
	CategoryPreference Category = "preference"
)

// ValidCategory reports whether c is one of the five allowed categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryPattern, CategoryCorrection, CategoryDecision, CategoryGotcha, CategoryPreference:
		return true
	default:
		return false
	}
}

// Source records who created a lesson.
type Source string

const (
	SourceHuman Source = "human"
	SourceAI    Source = "ai"
)

// Level is the lesson tier: project-local or system-wide.
type Level string

const (
	LevelProject Level = "project"
	LevelSystem  Level = "system"
)

// LessonType optionally classifies how a lesson should be treated when
// injected. Empty means untyped.
type LessonType string

const (
	TypeConstraint    LessonType = "constraint"
	TypeInformational LessonType = "informational"
	TypePreference    LessonType = "preference"
)

// ValidLessonType reports whether t is an allowed type (empty is allowed).
func ValidLessonType(t LessonType) bool {
	switch t {
	case "", TypeConstraint, TypeInformational, TypePreference:
		return true
	default:
		return false
	}
}

// ExtraField is an unrecognized metadata key/value pair preserved verbatim
// across parse/serialize round-trips so that newer writers don't lose data.
type ExtraField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LessonIDPattern matches lesson IDs: L### (project) or S### (system).
var LessonIDPattern = regexp.MustCompile(`^[LS]\d{3}$`)

// Lesson is a durable note with an ID, cited by the assistant to indicate
// application. Uses and velocity accrue through citations and decay over time.
type Lesson struct {
	// ID is L### for project tier or S### for system tier.
	ID string `json:"id"`

	// Title is a short summary, at most MaxTitleLength chars.
	Title string `json:"title"`

	// Content is the lesson body, at most MaxContentLength chars.
	Content string `json:"content"`

	// Category is one of the five allowed categories.
	Category Category `json:"category"`

	// Uses counts citations, saturating at MaxUses.
	Uses int `json:"uses"`

	// Velocity is an exponentially-decaying recency score (half-life one
	// decay cycle). Floored to zero below VelocityFloor.
	Velocity float64 `json:"velocity"`

	// Learned is the creation date (DateFormat).
	Learned string `json:"learned"`

	// LastUsed is the date of the most recent citation (DateFormat).
	LastUsed string `json:"last_used"`

	// Source is who created the lesson (human or ai).
	Source Source `json:"source"`

	// Level is the tier this lesson lives in.
	Level Level `json:"level"`

	// Promotable marks project lessons eligible for system promotion.
	Promotable bool `json:"promotable"`

	// Type optionally classifies injection behavior.
	Type LessonType `json:"type,omitempty"`

	// Triggers are keywords that should surface this lesson.
	Triggers []string `json:"triggers,omitempty"`

	// Extra preserves unknown metadata keys in encounter order.
	Extra []ExtraField `json:"extra,omitempty"`
}

// Score is the composite ranking value used when ordering lessons for
// injection: uses weighted 0.7, velocity 0.3.
func (l *Lesson) Score() float64 {
	return float64(l.Uses)*0.7 + l.Velocity*0.3
}

// Cite applies one citation: increments uses (saturating), bumps velocity
// by 1.0, and stamps last-used with today's date.
func (l *Lesson) Cite(today string) {
	if l.Uses < MaxUses {
		l.Uses++
	}
	l.Velocity += 1.0
	l.LastUsed = today
}

// IsStale reports whether the lesson was last used more than staleDays ago.
// Lessons with no parseable last-used date are considered stale.
func (l *Lesson) IsStale(now time.Time, staleDays int) bool {
	t, err := time.Parse(DateFormat, l.LastUsed)
	if err != nil {
		return true
	}
	return t.AddDate(0, 0, staleDays).Before(now)
}

// Clamp enforces the lesson invariants in place: uses in [0, MaxUses],
// velocity >= 0 with sub-epsilon values snapped to zero, title and content
// truncated to their caps.
func (l *Lesson) Clamp() {
	if l.Uses < 0 {
		l.Uses = 0
	}
	if l.Uses > MaxUses {
		l.Uses = MaxUses
	}
	if l.Velocity < VelocityFloor {
		l.Velocity = 0
	}
	l.Title = Truncate(l.Title, MaxTitleLength)
	l.Content = Truncate(l.Content, MaxContentLength)
}

// NormalizeTitle case-folds and strips punctuation for duplicate detection.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Truncate limits s to max bytes, cutting at a rune boundary.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

// Sanitize strips control bytes (other than newline and tab) from s.
// Extracted transcript strings pass through here before storage.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= 0x20 && r != 0x7f {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Today returns the current date in DateFormat.
func Today() string {
	return time.Now().Format(DateFormat)
}
