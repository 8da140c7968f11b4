// Package pipeline contains the poll loops: the producer feeding fetched
// news into the store, the consumer classifying news against tasks and
// fanning out notifications, and the crypto watcher measuring price
// markets.
package pipeline

import (
	"context"

	"newswatch/internal/model"
)

// Relevance is the classification service consumed by the consumer loop.
type Relevance interface {
	Classify(ctx context.Context, item model.NewsItem, task model.Task, rolePrompt string) (bool, error)
	ComposePost(ctx context.Context, item model.NewsItem, task model.Task, prompt model.PromptConfig) (string, error)
}

// MatchNotifier delivers a relevant-news notification to one chat. The
// delivery is best effort, at least once; affordances attached to the
// message are the notifier's concern.
type MatchNotifier interface {
	NotifyMatch(ctx context.Context, chatID int64, item model.NewsItem, task model.Task, post string) error
}

// TextNotifier delivers a plain text message to one chat.
type TextNotifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}
