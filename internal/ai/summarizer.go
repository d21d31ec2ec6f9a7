package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"econpulse/internal/model"
)

const defaultModel = "gpt-4o-mini"

// ErrDisabled is returned when Summarize is called without an API key
// configured. Callers store the article unsummarized instead of failing
// the pipeline.
var ErrDisabled = errors.New("ai: summarization disabled, no api key")

// Summary is the black-box output of one summarization call.
type Summary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
}

// Client wraps the chat-completion API for article summarization. A client
// built without an API key is inert: Enabled reports false and Summarize
// returns ErrDisabled.
type Client struct {
	client  openai.Client
	model   string
	enabled bool
}

func New(apiKey string) *Client {
	if strings.TrimSpace(apiKey) == "" {
		return &Client{}
	}
	return &Client{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   defaultModel,
		enabled: true,
	}
}

func (c *Client) Enabled() bool {
	return c.enabled
}

// Summarize produces a short Spanish summary and key points for one
// article.
func (c *Client) Summarize(ctx context.Context, article model.ProcessedArticle) (Summary, error) {
	if !c.enabled {
		return Summary{}, ErrDisabled
	}

	response, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("Sos un editor de noticias económicas argentinas. Respondés únicamente con JSON válido."),
			openai.UserMessage(buildPrompt(article)),
		},
		Temperature: openai.Float(0.2),
		MaxTokens:   openai.Int(500),
	})
	if err != nil {
		return Summary{}, fmt.Errorf("ai: request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return Summary{}, errors.New("ai: empty response")
	}

	return parseSummary(response.Choices[0].Message.Content)
}

func buildPrompt(article model.ProcessedArticle) string {
	var sb strings.Builder
	sb.WriteString("Resumí esta noticia en 2 o 3 oraciones y extraé hasta 3 puntos clave.\n")
	sb.WriteString("Respondé con JSON exactamente así:\n")
	sb.WriteString(`{"summary": "...", "keyPoints": ["...", "..."]}`)
	sb.WriteString("\n\n")
	sb.WriteString("Título: " + article.Title + "\n")
	if article.OriginalContent != "" {
		sb.WriteString("Contenido: " + article.OriginalContent + "\n")
	}
	sb.WriteString("Fuente: " + article.SourceName + "\n")
	return sb.String()
}

// parseSummary tolerates the model wrapping its JSON in a fenced code
// block.
func parseSummary(content string) (Summary, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var summary Summary
	if err := json.Unmarshal([]byte(trimmed), &summary); err != nil {
		return Summary{}, fmt.Errorf("ai: parsing response: %w", err)
	}
	if summary.Summary == "" {
		return Summary{}, errors.New("ai: response missing summary")
	}
	if len(summary.KeyPoints) > 3 {
		summary.KeyPoints = summary.KeyPoints[:3]
	}
	return summary, nil
}
