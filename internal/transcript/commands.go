package transcript

import (
	"regexp"
	"strings"

	"github.com/boshu2/recall/internal/models"
)

// maxScanLineLength is the ReDoS guard: text lines longer than this are
// never fed to the command or citation regexes.
const maxScanLineLength = 1000

// citationPattern matches [L001] / [S001]. The optional trailing group
// detects the listing form "[L001] [*" which is a rendering of the lesson
// table, not an application, and must not count as a citation.
var citationPattern = regexp.MustCompile(`\[([LS]\d{3})\]( \[\*)?`)

// lessonCommandPattern matches LESSON: and AI LESSON: lines with an
// optional [type] tag and an optional category prefix:
//
//	LESSON [constraint]: gotcha: Title - content
var lessonCommandPattern = regexp.MustCompile(
	`^(AI )?LESSON(?: \[(constraint|informational|preference)\])?:\s*(?:([a-z]+):\s*)?([^-]+?)\s*-\s*(.+)$`)

// Handoff command families.
var (
	handoffStartPattern    = regexp.MustCompile(`^HANDOFF:\s*(.+)$`)
	handoffUpdatePattern   = regexp.MustCompile(`^HANDOFF UPDATE (hf-[0-9a-f]{7}|A\d{3}):\s*(.+)$`)
	handoffCompletePattern = regexp.MustCompile(`^HANDOFF COMPLETE (hf-[0-9a-f]{7}|A\d{3})\b`)
	triedUpdatePattern     = regexp.MustCompile(`^tried (success|fail|partial)\s*-\s*(.+)$`)
	fieldUpdatePattern     = regexp.MustCompile(`^([a-z_-]+):\s*(.+)$`)
)

// LessonCommand is one LESSON: directive extracted from assistant text.
type LessonCommand struct {
	// AI marks the "AI LESSON:" form (source=ai).
	AI bool

	// Type is the optional [constraint|informational|preference] tag.
	Type models.LessonType

	// Category is the optional lowercase category prefix; empty means the
	// store default applies.
	Category models.Category

	Title   string
	Content string
}

// HandoffCommandKind discriminates the three HANDOFF command families.
type HandoffCommandKind string

const (
	HandoffStart       HandoffCommandKind = "start"
	HandoffTried       HandoffCommandKind = "tried"
	HandoffFieldUpdate HandoffCommandKind = "field"
	HandoffComplete    HandoffCommandKind = "complete"
)

// HandoffCommand is one HANDOFF directive extracted from assistant text.
type HandoffCommand struct {
	Kind HandoffCommandKind

	// ID targets an existing handoff (empty for start).
	ID string

	// Title is the new handoff title (start only).
	Title string

	// Outcome and Description carry a tried-step (tried only).
	Outcome     models.Outcome
	Description string

	// Field and Value carry a field update (field only).
	Field string
	Value string
}

// extractCitations scans a text block for applied citations, skipping the
// listing form. Returned IDs are unique, in first-appearance order.
func extractCitations(text string, seen map[string]bool) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if len(line) > maxScanLineLength {
			continue
		}
		for _, m := range citationPattern.FindAllStringSubmatch(line, -1) {
			if m[2] != "" {
				continue // listing, not an application
			}
			id := m[1]
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// extractCommands pulls lesson and handoff directives from a text block.
func extractCommands(text string) (lessons []LessonCommand, handoffs []HandoffCommand) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > maxScanLineLength {
			continue
		}
		if cmd, ok := parseLessonCommand(line); ok {
			lessons = append(lessons, cmd)
			continue
		}
		if cmd, ok := parseHandoffCommand(line); ok {
			handoffs = append(handoffs, cmd)
		}
	}
	return lessons, handoffs
}

func parseLessonCommand(line string) (LessonCommand, bool) {
	m := lessonCommandPattern.FindStringSubmatch(line)
	if m == nil {
		return LessonCommand{}, false
	}
	cmd := LessonCommand{
		AI:      m[1] != "",
		Type:    models.LessonType(m[2]),
		Title:   sanitizeTitle(m[4]),
		Content: sanitizeContent(m[5]),
	}
	if m[3] != "" && models.ValidCategory(models.Category(m[3])) {
		cmd.Category = models.Category(m[3])
	}
	if cmd.Title == "" || cmd.Content == "" {
		return LessonCommand{}, false
	}
	return cmd, true
}

func parseHandoffCommand(line string) (HandoffCommand, bool) {
	if m := handoffCompletePattern.FindStringSubmatch(line); m != nil {
		return HandoffCommand{Kind: HandoffComplete, ID: m[1]}, true
	}
	if m := handoffUpdatePattern.FindStringSubmatch(line); m != nil {
		return parseHandoffUpdate(m[1], m[2])
	}
	if m := handoffStartPattern.FindStringSubmatch(line); m != nil {
		title := sanitizeTitle(m[1])
		if title == "" {
			return HandoffCommand{}, false
		}
		return HandoffCommand{Kind: HandoffStart, Title: title}, true
	}
	return HandoffCommand{}, false
}

func parseHandoffUpdate(id, rest string) (HandoffCommand, bool) {
	if m := triedUpdatePattern.FindStringSubmatch(rest); m != nil {
		return HandoffCommand{
			Kind:        HandoffTried,
			ID:          id,
			Outcome:     models.Outcome(m[1]),
			Description: sanitizeContent(m[2]),
		}, true
	}
	if m := fieldUpdatePattern.FindStringSubmatch(rest); m != nil {
		return HandoffCommand{
			Kind:  HandoffFieldUpdate,
			ID:    id,
			Field: m[1],
			Value: sanitizeContent(m[2]),
		}, true
	}
	return HandoffCommand{}, false
}

func sanitizeTitle(s string) string {
	return models.Truncate(strings.TrimSpace(models.Sanitize(s)), models.MaxTitleLength)
}

func sanitizeContent(s string) string {
	return models.Truncate(strings.TrimSpace(models.Sanitize(s)), models.MaxContentLength)
}
