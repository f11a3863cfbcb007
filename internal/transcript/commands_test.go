package transcript

import (
	"strings"
	"testing"

	"github.com/boshu2/recall/internal/models"
)

func TestParseLessonCommand(t *testing.T) {
	cases := []struct {
		name string
		line string
		want LessonCommand
	}{
		{
			"plain",
			"LESSON: Buffer sizes matter - the scanner default is 64k",
			LessonCommand{Title: "Buffer sizes matter", Content: "the scanner default is 64k"},
		},
		{
			"ai form",
			"AI LESSON: Short titles - keep them under a line",
			LessonCommand{AI: true, Title: "Short titles", Content: "keep them under a line"},
		},
		{
			"typed",
			"LESSON [constraint]: Never block the host - hooks exit zero",
			LessonCommand{Type: models.TypeConstraint, Title: "Never block the host", Content: "hooks exit zero"},
		},
		{
			"category prefix",
			"LESSON: gotcha: Flock is per descriptor - reopen to contend",
			LessonCommand{Category: models.CategoryGotcha, Title: "Flock is per descriptor", Content: "reopen to contend"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseLessonCommand(tc.line)
			if !ok {
				t.Fatalf("line %q did not parse", tc.line)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseLessonCommandRejects(t *testing.T) {
	for _, line := range []string{
		"LESSON: no separator here",
		"LESSON: - content but no title",
		"lesson: lowercase keyword - nope",
		"A LESSON: not the command - nope",
	} {
		if _, ok := parseLessonCommand(line); ok {
			t.Errorf("line %q parsed, want rejection", line)
		}
	}
}

func TestParseLessonCommandUnknownCategoryFolds(t *testing.T) {
	got, ok := parseLessonCommand("LESSON: wisdom: Old saw - still true")
	if !ok {
		t.Fatal("did not parse")
	}
	if got.Category != "" {
		t.Errorf("category = %q, want empty (store default)", got.Category)
	}
	if got.Title != "Old saw" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestParseHandoffCommands(t *testing.T) {
	cases := []struct {
		name string
		line string
		want HandoffCommand
	}{
		{
			"start",
			"HANDOFF: Migrate the config loader",
			HandoffCommand{Kind: HandoffStart, Title: "Migrate the config loader"},
		},
		{
			"tried",
			"HANDOFF UPDATE hf-1a2b3c4: tried fail - yaml anchors broke the merge",
			HandoffCommand{Kind: HandoffTried, ID: "hf-1a2b3c4", Outcome: models.OutcomeFail, Description: "yaml anchors broke the merge"},
		},
		{
			"field",
			"HANDOFF UPDATE A042: next: wire the project override",
			HandoffCommand{Kind: HandoffFieldUpdate, ID: "A042", Field: "next", Value: "wire the project override"},
		},
		{
			"field with underscore",
			"HANDOFF UPDATE hf-1a2b3c4: blocked_by: hf-0000001",
			HandoffCommand{Kind: HandoffFieldUpdate, ID: "hf-1a2b3c4", Field: "blocked_by", Value: "hf-0000001"},
		},
		{
			"complete",
			"HANDOFF COMPLETE hf-1a2b3c4",
			HandoffCommand{Kind: HandoffComplete, ID: "hf-1a2b3c4"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseHandoffCommand(tc.line)
			if !ok {
				t.Fatalf("line %q did not parse", tc.line)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseHandoffCommandRejects(t *testing.T) {
	for _, line := range []string{
		"HANDOFF UPDATE hf-NOTHEX1: tried success - nope",
		"HANDOFF COMPLETE something",
		"HANDOFF UPDATE hf-1a2b3c4: tried shrug - unknown outcome",
		"HANDOFF:   ",
	} {
		if _, ok := parseHandoffCommand(line); ok {
			t.Errorf("line %q parsed, want rejection", line)
		}
	}
}

func TestExtractCommandsFromBlock(t *testing.T) {
	text := "Some prose first.\n" +
		"LESSON: Lock then read - mutators hold the flock\n" +
		"HANDOFF: Chase the flaky test\n" +
		"HANDOFF UPDATE hf-1a2b3c4: tried success - reproduced locally\n" +
		"closing prose"
	lessons, handoffs := extractCommands(text)
	if len(lessons) != 1 || lessons[0].Title != "Lock then read" {
		t.Errorf("lessons = %+v", lessons)
	}
	if len(handoffs) != 2 || handoffs[0].Kind != HandoffStart || handoffs[1].Kind != HandoffTried {
		t.Errorf("handoffs = %+v", handoffs)
	}
}

func TestOverlongLineSkipped(t *testing.T) {
	line := "LESSON: padded - " + strings.Repeat("x", maxScanLineLength)
	lessons, _ := extractCommands(line)
	if len(lessons) != 0 {
		t.Errorf("overlong command line parsed: %+v", lessons)
	}
}

func TestExtractCitationsOrderAndDedup(t *testing.T) {
	seen := map[string]bool{}
	got := extractCitations("uses [S002] then [L001] then [S002] again", seen)
	want := []string{"S002", "L001"}
	if len(got) != len(want) {
		t.Fatalf("citations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("citations = %v, want %v", got, want)
		}
	}
	// The seen set spans calls within one scan.
	if again := extractCitations("[L001] once more", seen); len(again) != 0 {
		t.Errorf("repeat across blocks = %v, want none", again)
	}
}
