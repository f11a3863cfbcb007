package markdown

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/boshu2/recall/internal/models"
)

// lessonHeading matches "### [L001] [**---|*----] Title". The star block is
// display-only; the parse result is rebuilt from Uses/Velocity.
var lessonHeading = regexp.MustCompile(`^### \[([LS]\d{3})\] \[[*-]{5}\|[*-]{5}\] (.*)$`)

// Canonical metadata keys for lessons, in serialization order.
const (
	keyCategory   = "Category"
	keyUses       = "Uses"
	keyVelocity   = "Velocity"
	keyLearned    = "Learned"
	keyLastUsed   = "Last-Used"
	keySource     = "Source"
	keyPromotable = "Promotable"
	keyType       = "Type"
	keyTriggers   = "Triggers"
)

// SerializeLessons renders the full LESSONS.md content for one tier.
func SerializeLessons(lessons []*models.Lesson) string {
	var b strings.Builder
	b.WriteString("# Lessons\n\n## Active Lessons\n\n")
	for _, l := range lessons {
		writeLesson(&b, l)
	}
	return b.String()
}

func writeLesson(b *strings.Builder, l *models.Lesson) {
	b.WriteString("### [" + l.ID + "] " + l.Rating() + " " + singleLine(l.Title) + "\n")

	pairs := []string{
		formatPair(keyCategory, string(l.Category)),
		formatPair(keyUses, strconv.Itoa(l.Uses)),
		formatPair(keyVelocity, strconv.FormatFloat(l.Velocity, 'f', -1, 64)),
		formatPair(keyLearned, l.Learned),
		formatPair(keyLastUsed, l.LastUsed),
		formatPair(keySource, string(l.Source)),
		formatPair(keyPromotable, yesNo(l.Promotable)),
	}
	if l.Type != "" {
		pairs = append(pairs, formatPair(keyType, string(l.Type)))
	}
	if len(l.Triggers) > 0 {
		pairs = append(pairs, formatPair(keyTriggers, joinList(l.Triggers)))
	}
	for _, ex := range l.Extra {
		pairs = append(pairs, formatPair(ex.Key, ex.Value))
	}
	b.WriteString("- " + strings.Join(pairs, pairSeparator) + "\n")

	for _, line := range strings.Split(l.Content, "\n") {
		b.WriteString("> " + line + "\n")
	}
	b.WriteString("\n")
}

// ParseLessons parses LESSONS.md content. The level of every parsed lesson
// is derived from its ID prefix. Malformed records are skipped and reported
// in the diagnostics; parsing never fails for a single bad record.
func ParseLessons(content string) ([]*models.Lesson, []Diagnostic) {
	var lessons []*models.Lesson
	var diags []Diagnostic

	lines := strings.Split(content, "\n")
	i := 0
	for i < len(lines) {
		line := lines[i]
		if len(line) > maxLineLength || !strings.HasPrefix(line, "### ") {
			i++
			continue
		}
		m := lessonHeading.FindStringSubmatch(line)
		if m == nil {
			diags = append(diags, Diagnostic{Line: i + 1, Message: "unparseable lesson heading, record skipped"})
			i++
			continue
		}

		l := &models.Lesson{
			ID:    m[1],
			Title: m[2],
			Level: levelFromID(m[1]),
		}
		i++

		// One metadata bullet line, then quoted content lines.
		if i < len(lines) && strings.HasPrefix(lines[i], "- ") {
			applyLessonPairs(l, parseBulletPairs(lines[i]))
			i++
		}
		var content []string
		for i < len(lines) && strings.HasPrefix(lines[i], ">") {
			content = append(content, strings.TrimPrefix(strings.TrimPrefix(lines[i], "> "), ">"))
			i++
		}
		l.Content = strings.Join(content, "\n")

		if !models.ValidCategory(l.Category) {
			diags = append(diags, Diagnostic{Line: i, Message: "lesson " + l.ID + " has invalid category, record skipped"})
			continue
		}
		l.Clamp()
		lessons = append(lessons, l)
	}
	return lessons, diags
}

func levelFromID(id string) models.Level {
	if strings.HasPrefix(id, "S") {
		return models.LevelSystem
	}
	return models.LevelProject
}

func applyLessonPairs(l *models.Lesson, pairs []pair) {
	for _, p := range pairs {
		switch p.key {
		case keyCategory:
			l.Category = models.Category(p.value)
		case keyUses:
			if n, err := strconv.Atoi(p.value); err == nil {
				l.Uses = n
			}
		case keyVelocity:
			if v, err := strconv.ParseFloat(p.value, 64); err == nil {
				l.Velocity = v
			}
		case keyLearned:
			l.Learned = p.value
		case keyLastUsed:
			l.LastUsed = p.value
		case keySource:
			l.Source = models.Source(p.value)
		case keyPromotable:
			l.Promotable = parseYesNo(p.value)
		case keyType:
			l.Type = models.LessonType(p.value)
		case keyTriggers:
			l.Triggers = splitList(p.value)
		default:
			l.Extra = append(l.Extra, models.ExtraField{Key: p.key, Value: p.value})
		}
	}
}
