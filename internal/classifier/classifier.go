// Package classifier asks an LLM completion endpoint whether a news item
// is relevant to a task, and reuses the same client for post suggestions,
// translations, and crypto guidance.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"newswatch/internal/model"
)

// Prompt context bounds: only the most recent false positives are rendered
// into the system message, each truncated, so one noisy task cannot blow up
// the prompt.
const (
	falsePositiveContext  = 20
	falsePositiveTruncate = 500
)

// Classifier wraps an OpenAI-compatible chat completion client.
type Classifier struct {
	client          *openai.Client
	model           string
	classifyTimeout time.Duration
	composeTimeout  time.Duration
	log             *slog.Logger
}

// New creates a Classifier against the given OpenAI-compatible endpoint.
func New(apiKey, baseURL, model string, classifyTimeout, composeTimeout time.Duration, log *slog.Logger) *Classifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Classifier{
		client:          openai.NewClientWithConfig(cfg),
		model:           model,
		classifyTimeout: classifyTimeout,
		composeTimeout:  composeTimeout,
		log:             log,
	}
}

// Classify issues exactly one completion request for the (item, task) pair.
// The model must answer literally "true" or "false" (case-insensitive,
// trimmed); any other reply is logged as a warning and counts as false.
// A timeout is a clean negative; a transport or API error is returned so
// the caller can keep the item eligible for a retry pass.
func (c *Classifier) Classify(ctx context.Context, item model.NewsItem, task model.Task, rolePrompt string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.classifyTimeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(rolePrompt, task.FalsePositives),
			},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(
					"News: %s\n%s\n\nFilter: %s\n\n%s",
					item.Title, item.Description, task.Title, task.Description,
				),
			},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.log.Warn("classification timed out", "news", item.Title, "task", task.Title)
			return false, nil
		}
		return false, fmt.Errorf("classify %q against %q: %w", item.Title, task.Title, err)
	}
	// Some OpenAI-compatible backends answer 200 with no choices at all.
	if len(resp.Choices) == 0 {
		c.log.Warn("completion response without choices", "news", item.Title, "task", task.Title)
		return false, nil
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	switch strings.ToLower(answer) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		c.log.Warn("unexpected classifier reply", "reply", answer, "news", item.Title, "task", task.Title)
		return false, nil
	}
}

// ComposePost suggests a post for a relevant news item using the task's
// positive examples and the stored example posts as context.
func (c *Classifier) ComposePost(ctx context.Context, item model.NewsItem, task model.Task, prompt model.PromptConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.composeTimeout)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "News: %s\n%s\n\nMarket: %s\n\n%s\n\nLink: %s\n\n", item.Title, item.Description, task.Title, task.Description, task.Link)
	if len(task.Positives) > 0 {
		b.WriteString("Previous relevant news:\n")
		b.WriteString(renderExamples(task.Positives, len(task.Positives), 0))
	}
	if len(prompt.PostExamples) > 0 {
		b.WriteString("\nExamples of good posts:\n")
		for _, example := range prompt.PostExamples {
			b.WriteString("- " + example + "\n")
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SuggestPost},
			{Role: openai.ChatMessageRoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("compose post: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("compose post: response has no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Translate translates article text to English for the translate reply
// action.
func (c *Classifier) Translate(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.composeTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Translate the following article to English. Return only the translation.",
			},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("translate: response has no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Guide asks for analyst guidance on a crypto market given current quotes.
// An empty result means no action is needed.
func (c *Classifier) Guide(ctx context.Context, task model.CryptoTask, quotes string, cryptoRole string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.composeTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: cryptoRole},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(
					"Here is the market title and description:\nTitle: %s\nDescription: %s\n\nHere are the current crypto prices:\n%s\nCurrent time is %s.\n",
					task.Title, task.Description, quotes,
					time.Now().UTC().Format("2006-01-02 15:04:05 UTC"),
				),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("crypto guidance: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("crypto guidance: response has no choices")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if strings.EqualFold(answer, "false") {
		return "", nil
	}
	return answer, nil
}

// systemPrompt renders the role prompt with the recent false positives so
// the model is steered away from repeat mistakes.
func systemPrompt(rolePrompt string, falsePositives []model.NewsItem) string {
	if len(falsePositives) == 0 {
		return rolePrompt
	}
	return rolePrompt +
		"\n\nUse the list of irrelevant items to better understand what is not relevant:\n\n" +
		renderExamples(falsePositives, falsePositiveContext, falsePositiveTruncate)
}

// renderExamples formats the last limit items, truncating descriptions to
// truncate runes when truncate > 0.
func renderExamples(items []model.NewsItem, limit, truncate int) string {
	if len(items) > limit {
		items = items[len(items)-limit:]
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		desc := item.Description
		if truncate > 0 {
			if r := []rune(desc); len(r) > truncate {
				desc = string(r[:truncate])
			}
		}
		lines = append(lines, fmt.Sprintf("- %s\n\n%s", item.Title, desc))
	}
	return strings.Join(lines, "\n")
}
