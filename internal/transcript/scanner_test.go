package transcript

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeTranscript builds a JSONL transcript from assistant/user/tool records.
func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func assistantText(t *testing.T, text string) string {
	t.Helper()
	rec := map[string]any{
		"type":      "assistant",
		"timestamp": "2026-08-25T12:00:00Z",
		"message": map[string]any{
			"role":    "assistant",
			"content": []map[string]any{{"type": "text", "text": text}},
		},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func userText(t *testing.T, text string) string {
	t.Helper()
	rec := map[string]any{
		"type": "user",
		"message": map[string]any{
			"role":    "user",
			"content": text,
		},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func toolUse(t *testing.T, name string, input map[string]any) string {
	t.Helper()
	rec := map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"role":    "assistant",
			"content": []map[string]any{{"type": "tool_use", "name": name, "input": input}},
		},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestScanCollectsUserTexts(t *testing.T) {
	first := userText(t, "Refactor the token refresh flow")
	path := writeTranscript(t,
		first,
		assistantText(t, "On it."),
		userText(t, "and keep the tests green"),
	)
	res, err := Scan(path, 0)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{"Refactor the token refresh flow", "and keep the tests green"}
	if !reflect.DeepEqual(res.UserTexts, want) {
		t.Errorf("user texts = %v, want %v", res.UserTexts, want)
	}
	// User prompts are tail-scoped like assistant texts.
	res, err = Scan(path, int64(len(first))+1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.UserTexts, want[1:]) {
		t.Errorf("tail user texts = %v, want %v", res.UserTexts, want[1:])
	}
}

func TestScanExtractsCitationsAndAdvancesOffset(t *testing.T) {
	path := writeTranscript(t,
		assistantText(t, "Applying the buffer rule [L001] and the naming rule [S002] here."),
	)
	res, err := Scan(path, 0)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Empty {
		t.Fatal("result empty")
	}
	if !reflect.DeepEqual(res.Citations, []string{"L001", "S002"}) {
		t.Errorf("citations = %v", res.Citations)
	}
	info, _ := os.Stat(path)
	if res.NewOffset != info.Size() {
		t.Errorf("offset = %d, want file size %d", res.NewOffset, info.Size())
	}

	// A rescan from the new offset finds nothing new.
	res, err = Scan(path, res.NewOffset)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Empty {
		t.Error("rescan from end not empty")
	}
}

func TestScanListingIsNotCitation(t *testing.T) {
	path := writeTranscript(t,
		assistantText(t, "Current lessons:\n[L007] [***--|*----] Parser gotcha\nApplied [L008] just now."),
	)
	res, err := Scan(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Citations, []string{"L008"}) {
		t.Errorf("citations = %v, want only L008", res.Citations)
	}
}

func TestScanDeduplicatesCitations(t *testing.T) {
	path := writeTranscript(t,
		assistantText(t, "[L001] applies here."),
		assistantText(t, "[L001] again, plus [L002]."),
	)
	res, err := Scan(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Citations, []string{"L001", "L002"}) {
		t.Errorf("citations = %v", res.Citations)
	}
}

func TestScanTailOnlyCitations(t *testing.T) {
	first := assistantText(t, "old work [L001]")
	path := writeTranscript(t,
		first,
		assistantText(t, "new work [L002]"),
	)
	offset := int64(len(first) + 1)
	res, err := Scan(path, offset)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Citations, []string{"L002"}) {
		t.Errorf("citations = %v, want only the tail's L002", res.Citations)
	}
	if len(res.AssistantTexts) != 1 {
		t.Errorf("assistant texts = %d, want 1", len(res.AssistantTexts))
	}
}

func TestScanPartialBoundaryLineExcluded(t *testing.T) {
	first := assistantText(t, "old work [L001]")
	path := writeTranscript(t,
		first,
		assistantText(t, "new work [L002]"),
	)
	// An offset in the middle of the second record means that record started
	// before the checkpoint; it must not be treated as tail.
	offset := int64(len(first) + 10)
	res, err := Scan(path, offset)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Citations) != 0 {
		t.Errorf("citations = %v, want none", res.Citations)
	}
}

func TestScanMissingTranscriptIsEmpty(t *testing.T) {
	res, err := Scan(filepath.Join(t.TempDir(), "nope.jsonl"), 42)
	if err != nil {
		t.Fatalf("scan missing: %v", err)
	}
	if !res.Empty || res.NewOffset != 42 {
		t.Errorf("result = %+v", res)
	}
}

func TestScanSkipsTornLines(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"assistant","message":{"role":"assist`, // torn write
		assistantText(t, "fine [L003]"),
	)
	res, err := Scan(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Citations, []string{"L003"}) {
		t.Errorf("citations = %v", res.Citations)
	}
}

func TestScanEditAndTodoActivity(t *testing.T) {
	first := toolUse(t, "Edit", map[string]any{"file_path": "a.go"})
	path := writeTranscript(t,
		first,
		toolUse(t, "Write", map[string]any{"file_path": "b.go"}),
		toolUse(t, "Edit", map[string]any{"file_path": "a.go"}), // repeat, not double-counted
		toolUse(t, "TodoWrite", map[string]any{"todos": []map[string]any{
			{"content": "wire loader", "status": "completed"},
			{"content": "write tests", "status": "in_progress"},
		}}),
	)
	// Tool activity is collected over the full file even when the offset
	// skips most of it.
	res, err := Scan(path, int64(len(first)+1))
	if err != nil {
		t.Fatal(err)
	}
	if res.EditCount() != 2 {
		t.Errorf("edit count = %d, want 2", res.EditCount())
	}
	if res.TodoWrites != 1 || !res.NewTodoWrite {
		t.Errorf("todo writes = %d, new = %v", res.TodoWrites, res.NewTodoWrite)
	}
	if len(res.LatestTodos) != 2 || res.LatestTodos[0].Status != "completed" {
		t.Errorf("todos = %+v", res.LatestTodos)
	}
}

func TestScanStringContent(t *testing.T) {
	rec := `{"type":"assistant","message":{"role":"assistant","content":"plain string [L004]"}}`
	path := writeTranscript(t, rec)
	res, err := Scan(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Citations, []string{"L004"}) {
		t.Errorf("citations = %v", res.Citations)
	}
}

func TestScanLatestTimestamp(t *testing.T) {
	path := writeTranscript(t,
		assistantText(t, "one"),
		assistantText(t, "two"),
	)
	res, err := Scan(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.LatestTimestamp != "2026-08-25T12:00:00Z" {
		t.Errorf("timestamp = %q", res.LatestTimestamp)
	}
}

func TestTailReturnsLastTexts(t *testing.T) {
	path := writeTranscript(t,
		assistantText(t, "one"),
		assistantText(t, "two"),
		assistantText(t, "three"),
	)
	texts, err := Tail(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(texts, []string{"two", "three"}) {
		t.Errorf("tail = %v", texts)
	}
}
