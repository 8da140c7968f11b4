// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"newswatch/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	ListActiveTasks(ctx context.Context) ([]model.Task, error)
	AppendPositive(ctx context.Context, taskID int64, item model.NewsItem) error
	AppendFalsePositive(ctx context.Context, taskID int64, item model.NewsItem) error

	CreateCryptoTask(ctx context.Context, task *model.CryptoTask) error
	ListActiveCryptoTasks(ctx context.Context) ([]model.CryptoTask, error)

	// CreateNews adds the item unless its link is already known. It reports
	// whether the item was actually inserted.
	CreateNews(ctx context.Context, item *model.NewsItem) (bool, error)
	GetNews(ctx context.Context, id int64) (*model.NewsItem, error)
	ListUnprocessedNews(ctx context.Context) ([]model.NewsItem, error)
	MarkProcessed(ctx context.Context, id int64) error

	GetOrCreatePrompt(ctx context.Context) (*model.PromptConfig, error)

	AddSubscriber(ctx context.Context, sub model.Subscriber) error
	RemoveSubscriber(ctx context.Context, tgID int64) (bool, error)
	ListSubscriberChatIDs(ctx context.Context) ([]int64, error)

	AddSource(ctx context.Context, src *model.Source) error
	ListSources(ctx context.Context) ([]model.Source, error)
	DeleteSource(ctx context.Context, name string) error

	Close() error
}
