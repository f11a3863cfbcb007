package summarize

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/boshu2/recall/internal/models"
)

// OpenAI runs prompts through the chat completions API. The key comes from
// OPENAI_API_KEY; construction fails without one so callers can fall back
// early instead of at request time.
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ Summarizer = (*OpenAI)(nil)

// NewOpenAI builds the client from the environment.
func NewOpenAI(model string) (*OpenAI, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClient(key), model: model}, nil
}

// ExtractContext sends the transcript tail to the API and parses the JSON
// response.
func (o *OpenAI) ExtractContext(ctx context.Context, transcriptTail []string) (*models.ContextRecord, error) {
	out, err := o.complete(ctx, buildExtractInput(transcriptTail))
	if err != nil {
		return nil, err
	}
	return parseContextJSON(out)
}

// ScoreLessons asks the API for 0-10 relevance scores per lesson.
func (o *OpenAI) ScoreLessons(ctx context.Context, query string, lessons []*models.Lesson) (map[string]int, error) {
	out, err := o.complete(ctx, buildScoreInput(query, lessons))
	if err != nil {
		return nil, err
	}
	return parseScoresJSON(out)
}

func (o *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
