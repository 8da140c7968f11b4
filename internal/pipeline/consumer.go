package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"newswatch/internal/model"
	"newswatch/internal/storage"
)

// Consumer classifies unprocessed news against the active tasks and
// records the outcomes. Items are handled in ascending publication order;
// an item is marked processed only after a fault-free pass over every
// task, so a failed pair is retried on a later iteration.
type Consumer struct {
	store      storage.Storage
	classifier Relevance
	notifier   MatchNotifier
	tick       time.Duration
	log        *slog.Logger
}

// NewConsumer creates a Consumer polling at the given interval.
func NewConsumer(store storage.Storage, classifier Relevance, notifier MatchNotifier, tick time.Duration, log *slog.Logger) *Consumer {
	return &Consumer{
		store:      store,
		classifier: classifier,
		notifier:   notifier,
		tick:       tick,
		log:        log,
	}
}

// Run starts the consumer loop, blocking until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.pollOnce(ctx)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

func (c *Consumer) pollOnce(ctx context.Context) {
	news, err := c.store.ListUnprocessedNews(ctx)
	if err != nil {
		c.log.Error("list unprocessed news", "error", err)
		return
	}
	if len(news) == 0 {
		return
	}

	tasks, err := c.store.ListActiveTasks(ctx)
	if err != nil {
		c.log.Error("list active tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		c.log.Info("no active tasks")
		return
	}

	prompt, err := c.store.GetOrCreatePrompt(ctx)
	if err != nil {
		c.log.Error("load prompt config", "error", err)
		return
	}

	chatIDs, err := c.store.ListSubscriberChatIDs(ctx)
	if err != nil {
		c.log.Error("list subscribers", "error", err)
		return
	}

	c.log.Info("consumer pass", "news", len(news), "tasks", len(tasks))

	for _, item := range news {
		if ctx.Err() != nil {
			return
		}
		c.processItem(ctx, item, tasks, *prompt, chatIDs)
	}
}

// taskOutcome is the per-task result of one item's classification fan-out.
// Collecting these instead of raising keeps one failing task from hiding
// the outcomes of the others.
type taskOutcome struct {
	task     model.Task
	relevant bool
	err      error
}

func (c *Consumer) processItem(ctx context.Context, item model.NewsItem, tasks []model.Task, prompt model.PromptConfig, chatIDs []int64) {
	// Tasks are independent, so the item is classified against all of
	// them concurrently. Each call carries its own timeout inside the
	// classifier.
	outcomes := make([]taskOutcome, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task model.Task) {
			defer wg.Done()
			relevant, err := c.classifier.Classify(ctx, item, task, prompt.Role)
			outcomes[i] = taskOutcome{task: task, relevant: relevant, err: err}
		}(i, task)
	}
	wg.Wait()

	clean := true
	for _, outcome := range outcomes {
		if outcome.err != nil {
			c.log.Error("classification failed", "news", item.Title, "task", outcome.task.Title, "error", outcome.err)
			clean = false
			continue
		}
		if !outcome.relevant {
			c.log.Debug("not relevant", "news", item.Title, "task", outcome.task.Title)
			continue
		}

		c.log.Info("relevant news", "news", item.Title, "task", outcome.task.Title)

		if err := c.store.AppendPositive(ctx, outcome.task.ID, snapshot(item)); err != nil {
			c.log.Error("append positive", "task", outcome.task.Title, "error", err)
			clean = false
		}

		post, err := c.classifier.ComposePost(ctx, item, outcome.task, prompt)
		if err != nil {
			// The notification still goes out, just without a suggestion.
			c.log.Error("compose post", "news", item.Title, "error", err)
			post = ""
		}

		for _, chatID := range chatIDs {
			if err := c.notifier.NotifyMatch(ctx, chatID, item, outcome.task, post); err != nil {
				c.log.Error("notify subscriber", "chat_id", chatID, "error", err)
			}
		}
	}

	if clean {
		if err := c.store.MarkProcessed(ctx, item.ID); err != nil {
			c.log.Error("mark processed", "news", item.Title, "error", err)
		}
	}
}

// snapshot strips storage identity from the item before it is embedded in
// a task's example list.
func snapshot(item model.NewsItem) model.NewsItem {
	item.ID = 0
	return item
}
