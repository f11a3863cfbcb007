// Package markdown implements the bidirectional mapping between the model
// types and the human-editable markdown files (LESSONS.md, HANDOFFS.md).
//
// The round-trip law holds for legal records: Parse(Serialize(xs)) == xs.
// Legal means metadata values are single-line and do not contain the pair
// separator " | **"; store mutators sanitize inputs into that shape. Unknown
// metadata keys are preserved verbatim so older binaries don't destroy data
// written by newer ones. A malformed record is skipped with a diagnostic;
// one bad record never aborts a whole file.
package markdown

import (
	"fmt"
	"strings"
)

// maxLineLength caps the input fed to the record regexes. Longer lines are
// ignored wholesale (ReDoS protection on hand-edited files).
const maxLineLength = 2000

// pairSeparator joins metadata pairs on a single bullet line.
const pairSeparator = " | "

// Diagnostic describes one skipped record or line.
type Diagnostic struct {
	// Line is the 1-based line number where the problem starts.
	Line int

	// Message describes what was skipped and why.
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s", d.Line, d.Message)
}

// pair is one **Key**: value unit on a metadata bullet line.
type pair struct {
	key   string
	value string
}

// parseBulletPairs splits a "- **K**: v | **K2**: v2" line into pairs.
// A line with no embedded pair separator is treated as one pair whose value
// may contain anything (free-text fields get a bullet of their own).
func parseBulletPairs(line string) []pair {
	body := strings.TrimPrefix(strings.TrimSpace(line), "- ")
	var parts []string
	if strings.Contains(body, pairSeparator+"**") {
		parts = strings.Split(body, pairSeparator)
	} else {
		parts = []string{body}
	}

	pairs := make([]pair, 0, len(parts))
	for _, part := range parts {
		k, v, ok := splitPair(part)
		if !ok {
			continue
		}
		pairs = append(pairs, pair{key: k, value: v})
	}
	return pairs
}

// splitPair parses a single "**Key**: value" unit.
func splitPair(s string) (key, value string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "**") {
		return "", "", false
	}
	rest := s[2:]
	end := strings.Index(rest, "**:")
	if end < 0 {
		return "", "", false
	}
	key = rest[:end]
	value = strings.TrimSpace(rest[end+len("**:"):])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// formatPair renders one metadata pair.
func formatPair(key, value string) string {
	return "**" + key + "**: " + value
}

// singleLine collapses newlines so a value is legal on a metadata bullet.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitList splits a comma-joined list value, dropping empties.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// joinList renders a list value with comma separators.
func joinList(items []string) string {
	return strings.Join(items, ", ")
}

// splitSemiList splits a semicolon-joined list (used for free-text lists
// whose items may contain commas).
func splitSemiList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// joinSemiList renders a free-text list with semicolon separators.
func joinSemiList(items []string) string {
	return strings.Join(items, "; ")
}

// yesNo renders a boolean the way the files spell it.
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// parseYesNo accepts yes/no and true/false.
func parseYesNo(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}
