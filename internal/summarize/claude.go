package summarize

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/boshu2/recall/internal/models"
)

// ClaudeCLI runs prompts through the host's claude binary in print mode.
// No API key handling; the CLI carries its own auth.
type ClaudeCLI struct {
	// Command is the binary name, normally "claude".
	Command string
}

var _ Summarizer = (*ClaudeCLI)(nil)

// ExtractContext sends the transcript tail through the CLI and parses the
// JSON response.
func (c *ClaudeCLI) ExtractContext(ctx context.Context, transcriptTail []string) (*models.ContextRecord, error) {
	out, err := c.run(ctx, buildExtractInput(transcriptTail))
	if err != nil {
		return nil, err
	}
	return parseContextJSON(out)
}

// ScoreLessons asks the CLI for 0-10 relevance scores per lesson.
func (c *ClaudeCLI) ScoreLessons(ctx context.Context, query string, lessons []*models.Lesson) (map[string]int, error) {
	out, err := c.run(ctx, buildScoreInput(query, lessons))
	if err != nil {
		return nil, err
	}
	return parseScoresJSON(out)
}

func (c *ClaudeCLI) run(ctx context.Context, prompt string) (string, error) {
	command := c.Command
	if command == "" {
		command = "claude"
	}
	cmd := exec.CommandContext(ctx, command, "-p", "--output-format", "text")
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s timed out: %w", command, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s failed: %s", command, msg)
	}
	return stdout.String(), nil
}
