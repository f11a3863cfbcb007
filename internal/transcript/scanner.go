// Package transcript reads the host's JSONL session transcripts
// incrementally. Each scan resumes from the byte offset persisted after the
// previous scan, so every byte is extracted at most once; command handling
// downstream is idempotent, so a replay after a lost offset is harmless.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// maxRecordBytes bounds one JSONL line. Tool results can embed whole files,
// so this is generous.
const maxRecordBytes = 10 << 20

// TodoItem is one entry of the host's todo list tool.
type TodoItem struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

// Result is everything one scan extracted. Citations, commands, and
// assistant texts come from the unscanned tail only; edit counts and the
// todo list reflect the full transcript, which is what the stop and
// pre-compact paths need.
type Result struct {
	// AssistantTexts are the text blocks of assistant records in the tail.
	AssistantTexts []string

	// UserTexts are the text blocks of user records in the tail, used to
	// title auto-captured handoffs.
	UserTexts []string

	// Citations are lesson IDs applied in the tail, unique, in order.
	Citations []string

	LessonCommands  []LessonCommand
	HandoffCommands []HandoffCommand

	// EditedFiles are the distinct file paths across all Edit tool calls in
	// the full transcript.
	EditedFiles []string

	// TodoWrites counts TodoWrite tool calls in the full transcript.
	TodoWrites int

	// LatestTodos is the todo list from the last TodoWrite, if any.
	LatestTodos []TodoItem

	// NewTodoWrite reports whether a TodoWrite appeared after the offset.
	NewTodoWrite bool

	// LatestTimestamp is the timestamp of the last processed record.
	LatestTimestamp string

	// NewOffset is the file size at scan time; persist it on success.
	NewOffset int64

	// Empty means the transcript had no new bytes.
	Empty bool
}

// EditCount returns the number of distinct edited files.
func (r *Result) EditCount() int {
	return len(r.EditedFiles)
}

// record mirrors the subset of the host transcript schema the scanner needs.
type record struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Message   *recordMessage `json:"message"`
}

type recordMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// contentBlock is one element of a block-array message content.
type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type editInput struct {
	FilePath string `json:"file_path"`
}

type todoInput struct {
	Todos []TodoItem `json:"todos"`
}

// Scan reads the transcript at path, extracting tail content from byte
// offset onward and tool activity from the whole file. A missing transcript
// or a tail of zero bytes yields an Empty result, not an error.
func Scan(path string, offset int64) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Result{Empty: true, NewOffset: offset}, nil
		}
		return nil, fmt.Errorf("stat transcript: %w", err)
	}
	size := info.Size()
	if size <= offset {
		return &Result{Empty: true, NewOffset: offset}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	res := &Result{NewOffset: size}
	seenCitations := map[string]bool{}
	seenEdits := map[string]bool{}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxRecordBytes)

	var pos int64
	for sc.Scan() {
		line := sc.Bytes()
		lineStart := pos
		pos += int64(len(line)) + 1

		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue // torn or foreign line
		}
		inTail := lineStart >= offset
		processRecord(&rec, inTail, res, seenCitations, seenEdits)
		if inTail && rec.Timestamp != "" {
			res.LatestTimestamp = rec.Timestamp
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return res, nil
}

func processRecord(rec *record, inTail bool, res *Result, seenCitations, seenEdits map[string]bool) {
	if rec.Message == nil {
		return
	}
	blocks := decodeContent(rec.Message.Content)

	for _, b := range blocks {
		switch b.Type {
		case "text":
			if !inTail || strings.TrimSpace(b.Text) == "" {
				continue
			}
			switch rec.Type {
			case "assistant":
				res.AssistantTexts = append(res.AssistantTexts, b.Text)
				res.Citations = append(res.Citations, extractCitations(b.Text, seenCitations)...)
				lc, hc := extractCommands(b.Text)
				res.LessonCommands = append(res.LessonCommands, lc...)
				res.HandoffCommands = append(res.HandoffCommands, hc...)
			case "user":
				res.UserTexts = append(res.UserTexts, b.Text)
			}
		case "tool_use":
			switch b.Name {
			case "Edit", "Write", "MultiEdit":
				var in editInput
				if json.Unmarshal(b.Input, &in) == nil && in.FilePath != "" && !seenEdits[in.FilePath] {
					seenEdits[in.FilePath] = true
					res.EditedFiles = append(res.EditedFiles, in.FilePath)
				}
			case "TodoWrite":
				var in todoInput
				if json.Unmarshal(b.Input, &in) == nil {
					res.TodoWrites++
					res.LatestTodos = in.Todos
					if inTail {
						res.NewTodoWrite = true
					}
				}
			}
		}
	}
}

// decodeContent accepts both content encodings the host emits: a bare string
// or an array of typed blocks.
func decodeContent(raw json.RawMessage) []contentBlock {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return []contentBlock{{Type: "text", Text: s}}
	}
	var blocks []contentBlock
	if json.Unmarshal(raw, &blocks) == nil {
		return blocks
	}
	return nil
}

// Tail returns the last n assistant text blocks of the full transcript,
// used by the pre-compact context extraction.
func Tail(path string, n int) ([]string, error) {
	res, err := Scan(path, 0)
	if err != nil {
		return nil, err
	}
	texts := res.AssistantTexts
	if len(texts) > n {
		texts = texts[len(texts)-n:]
	}
	return texts, nil
}
