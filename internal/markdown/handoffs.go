package markdown

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/boshu2/recall/internal/models"
)

// handoffHeading matches "### [hf-1a2b3c4] Title" (or legacy A### IDs).
var handoffHeading = regexp.MustCompile(`^### \[(hf-[0-9a-f]{7}|A\d{3})\] (.*)$`)

// triedItem matches "N. [outcome] description".
var triedItem = regexp.MustCompile(`^(\d+)\. \[(success|fail|partial)\] (.*)$`)

// Canonical metadata keys for handoffs.
const (
	keyStatus        = "Status"
	keyPhase         = "Phase"
	keyAgent         = "Agent"
	keyCreated       = "Created"
	keyUpdated       = "Updated"
	keyLastSession   = "Last-Session"
	keyDescription   = "Description"
	keyRefs          = "Refs"
	keyBlockedBy     = "Blocked-By"
	keySessions      = "Sessions"
	keyCheckpoint    = "Checkpoint"
	keyCtxSummary    = "Summary"
	keyCtxFiles      = "Critical-Files"
	keyCtxChanges    = "Recent-Changes"
	keyCtxLearnings  = "Learnings"
	keyCtxBlockers   = "Blockers"
	keyCtxGitRef     = "Git-Ref"
	triedSectionMark = "**Tried**:"
	nextSectionMark  = "**Next**:"
	recordSeparator  = "---"
)

// SerializeHandoffs renders a full handoffs file. Shared, stealth, and
// archive files share one grammar.
func SerializeHandoffs(handoffs []*models.Handoff) string {
	var b strings.Builder
	b.WriteString("# Handoffs\n\n")
	for _, h := range handoffs {
		writeHandoff(&b, h)
	}
	return b.String()
}

func writeHandoff(b *strings.Builder, h *models.Handoff) {
	b.WriteString("### [" + h.ID + "] " + singleLine(h.Title) + "\n")

	state := []string{
		formatPair(keyStatus, string(h.Status)),
		formatPair(keyPhase, string(h.Phase)),
	}
	if h.Agent != "" {
		state = append(state, formatPair(keyAgent, string(h.Agent)))
	}
	b.WriteString("- " + strings.Join(state, pairSeparator) + "\n")

	dates := []string{
		formatPair(keyCreated, h.Created),
		formatPair(keyUpdated, h.Updated),
	}
	if h.LastSession != "" {
		dates = append(dates, formatPair(keyLastSession, h.LastSession))
	}
	b.WriteString("- " + strings.Join(dates, pairSeparator) + "\n")

	writeOptionalBullet(b, keyDescription, singleLine(h.Description))
	writeOptionalBullet(b, keyRefs, joinList(h.Refs))
	writeOptionalBullet(b, keyBlockedBy, joinList(h.BlockedBy))
	writeOptionalBullet(b, keySessions, joinList(h.Sessions))
	writeOptionalBullet(b, keyCheckpoint, singleLine(h.Checkpoint))
	if !h.Context.Empty() {
		writeOptionalBullet(b, keyCtxSummary, singleLine(h.Context.Summary))
		writeOptionalBullet(b, keyCtxFiles, joinList(h.Context.CriticalFiles))
		writeOptionalBullet(b, keyCtxChanges, joinSemiList(h.Context.RecentChanges))
		writeOptionalBullet(b, keyCtxLearnings, joinSemiList(h.Context.Learnings))
		writeOptionalBullet(b, keyCtxBlockers, joinSemiList(h.Context.Blockers))
		writeOptionalBullet(b, keyCtxGitRef, h.Context.GitRef)
	}
	for _, ex := range h.Extra {
		writeOptionalBullet(b, ex.Key, ex.Value)
	}

	if len(h.Tried) > 0 {
		b.WriteString("\n" + triedSectionMark + "\n")
		for i, t := range h.Tried {
			b.WriteString(strconv.Itoa(i+1) + ". [" + string(t.Outcome) + "] " + singleLine(t.Description) + "\n")
		}
	}
	if h.NextSteps != "" {
		b.WriteString("\n" + nextSectionMark + " " + singleLine(h.NextSteps) + "\n")
	}

	b.WriteString("\n" + recordSeparator + "\n\n")
}

func writeOptionalBullet(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	b.WriteString("- " + formatPair(key, value) + "\n")
}

// ParseHandoffs parses a handoffs file. The stealth flag is applied to every
// record by the caller (it is a property of the file, not the record).
func ParseHandoffs(content string) ([]*models.Handoff, []Diagnostic) {
	var handoffs []*models.Handoff
	var diags []Diagnostic

	lines := strings.Split(content, "\n")
	i := 0
	for i < len(lines) {
		line := lines[i]
		if len(line) > maxLineLength || !strings.HasPrefix(line, "### ") {
			i++
			continue
		}
		m := handoffHeading.FindStringSubmatch(line)
		if m == nil {
			diags = append(diags, Diagnostic{Line: i + 1, Message: "unparseable handoff heading, record skipped"})
			i++
			continue
		}

		h := &models.Handoff{ID: m[1], Title: m[2]}
		i = parseHandoffBody(h, lines, i+1)

		if err := h.Validate(); err != nil {
			// Normalize rather than reject: invalid status/phase snap to
			// legal values, anything else drops the record.
			h.NormalizeState()
			if err := h.Validate(); err != nil {
				diags = append(diags, Diagnostic{Line: i, Message: "handoff " + h.ID + ": " + err.Error() + ", record skipped"})
				continue
			}
		}
		h.NormalizeState()
		handoffs = append(handoffs, h)
	}
	return handoffs, diags
}

// parseHandoffBody consumes bullet, tried, and next lines until the record
// separator (or the next heading). Returns the index of the first unconsumed
// line.
func parseHandoffBody(h *models.Handoff, lines []string, i int) int {
	for i < len(lines) {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "### "):
			return i
		case strings.TrimSpace(line) == recordSeparator:
			return i + 1
		case strings.HasPrefix(line, "- "):
			applyHandoffPairs(h, parseBulletPairs(line))
		case strings.TrimSpace(line) == triedSectionMark:
			i = parseTriedList(h, lines, i+1)
			continue
		case strings.HasPrefix(line, nextSectionMark):
			h.NextSteps = strings.TrimSpace(strings.TrimPrefix(line, nextSectionMark))
		}
		i++
	}
	return i
}

func parseTriedList(h *models.Handoff, lines []string, i int) int {
	for i < len(lines) {
		m := triedItem.FindStringSubmatch(lines[i])
		if m == nil {
			return i
		}
		h.Tried = append(h.Tried, models.TriedStep{
			Outcome:     models.Outcome(m[2]),
			Description: m[3],
		})
		i++
	}
	return i
}

func applyHandoffPairs(h *models.Handoff, pairs []pair) {
	for _, p := range pairs {
		switch p.key {
		case keyStatus:
			h.Status = models.Status(p.value)
		case keyPhase:
			h.Phase = models.Phase(p.value)
		case keyAgent:
			h.Agent = models.Agent(p.value)
		case keyCreated:
			h.Created = p.value
		case keyUpdated:
			h.Updated = p.value
		case keyLastSession:
			h.LastSession = p.value
		case keyDescription:
			h.Description = p.value
		case keyRefs:
			h.Refs = splitList(p.value)
		case keyBlockedBy:
			h.BlockedBy = splitList(p.value)
		case keySessions:
			h.Sessions = splitList(p.value)
		case keyCheckpoint:
			h.Checkpoint = p.value
		case keyCtxSummary:
			ensureContext(h).Summary = p.value
		case keyCtxFiles:
			ensureContext(h).CriticalFiles = splitList(p.value)
		case keyCtxChanges:
			ensureContext(h).RecentChanges = splitSemiList(p.value)
		case keyCtxLearnings:
			ensureContext(h).Learnings = splitSemiList(p.value)
		case keyCtxBlockers:
			ensureContext(h).Blockers = splitSemiList(p.value)
		case keyCtxGitRef:
			ensureContext(h).GitRef = p.value
		default:
			h.Extra = append(h.Extra, models.ExtraField{Key: p.key, Value: p.value})
		}
	}
}

func ensureContext(h *models.Handoff) *models.ContextRecord {
	if h.Context == nil {
		h.Context = &models.ContextRecord{}
	}
	return h.Context
}
