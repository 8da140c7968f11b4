package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"newswatch/internal/crypto"
	"newswatch/internal/dedup"
	"newswatch/internal/model"
	"newswatch/internal/storage"
)

// QuoteProvider returns current prices for a set of currency slugs.
type QuoteProvider interface {
	Quotes(ctx context.Context, slugs []string) ([]crypto.Quote, error)
}

// Guidance asks the model whether a crypto market needs analyst action.
type Guidance interface {
	Guide(ctx context.Context, task model.CryptoTask, quotes string, cryptoRole string) (string, error)
}

// guidanceTimes are the UTC hour/minute pairs at which the AI guidance
// pass runs in addition to the plain threshold checks.
var guidanceTimes = map[[2]int]struct{}{
	{11, 0}:  {},
	{12, 0}:  {},
	{15, 0}:  {},
	{18, 30}: {},
	{20, 0}:  {},
	{20, 30}: {},
	{21, 0}:  {},
}

// CryptoWatcher measures active crypto tasks against current prices. The
// loop ticks tightly but a per-task minute-bucket key in the dedup window
// limits each task to one measurement per minute.
type CryptoWatcher struct {
	store    storage.Storage
	quotes   QuoteProvider
	guidance Guidance
	notifier TextNotifier
	window   *dedup.Window
	tick     time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewCryptoWatcher creates a CryptoWatcher ticking at the given interval.
func NewCryptoWatcher(store storage.Storage, quotes QuoteProvider, guidance Guidance, notifier TextNotifier, tick time.Duration, log *slog.Logger) *CryptoWatcher {
	return &CryptoWatcher{
		store:    store,
		quotes:   quotes,
		guidance: guidance,
		notifier: notifier,
		window:   dedup.NewWindow(dedup.Cap, dedup.EvictBatch),
		tick:     tick,
		now:      time.Now,
		log:      log,
	}
}

// Run starts the watcher loop, blocking until ctx is cancelled.
func (w *CryptoWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *CryptoWatcher) pollOnce(ctx context.Context) {
	now := w.now().UTC()

	tasks, err := w.store.ListActiveCryptoTasks(ctx)
	if err != nil {
		w.log.Error("list active crypto tasks", "error", err)
		return
	}

	// Only tasks whose minute bucket has not been measured yet are due.
	due := lo.Filter(tasks, func(task model.CryptoTask, _ int) bool {
		return !w.window.Contains(dedup.BucketKey(task.ID, now))
	})
	if len(due) == 0 {
		return
	}

	slugs := lo.Uniq(lo.Map(due, func(task model.CryptoTask, _ int) string {
		return task.Ticker
	}))

	quotes, err := w.quotes.Quotes(ctx, slugs)
	if err != nil {
		// The bucket stays unmarked so the measurement is retried on the
		// next tick.
		w.log.Error("fetch quotes", "error", err)
		return
	}

	prices := make(map[string]crypto.Quote, len(quotes))
	for _, q := range quotes {
		prices[q.Slug] = q
	}

	chatIDs, err := w.store.ListSubscriberChatIDs(ctx)
	if err != nil {
		w.log.Error("list subscribers", "error", err)
		return
	}

	// On the hour every subscriber gets a plain price report for the
	// tracked tickers, once per hour regardless of how many tasks are due.
	if now.Minute() == 0 && w.window.Add(reportBucket(now)) {
		w.broadcast(ctx, chatIDs, crypto.Report(quotes))
	}

	runGuidance := w.isGuidanceTime(now)

	for _, task := range due {
		w.window.Add(dedup.BucketKey(task.ID, now))

		quote, ok := prices[task.Ticker]
		if !ok {
			w.log.Warn("no quote for ticker", "ticker", task.Ticker, "task", task.Title)
			continue
		}

		if conditionMet(task, quote.Price) {
			text := fmt.Sprintf(
				"%s\n%s reached $%.4f (target $%.4f) at %s.",
				task.Title, task.Ticker, quote.Price, task.EndPoint,
				quote.LastUpdated.UTC().Format("2006-01-02 15:04:05 UTC"),
			)
			w.broadcast(ctx, chatIDs, text)
		}

		if runGuidance {
			w.guide(ctx, task, quotes, chatIDs)
		}
	}
}

func (w *CryptoWatcher) guide(ctx context.Context, task model.CryptoTask, quotes []crypto.Quote, chatIDs []int64) {
	prompt, err := w.store.GetOrCreatePrompt(ctx)
	if err != nil {
		w.log.Error("load prompt config", "error", err)
		return
	}
	answer, err := w.guidance.Guide(ctx, task, crypto.Report(quotes), prompt.CryptoRole)
	if err != nil {
		w.log.Error("crypto guidance", "task", task.Title, "error", err)
		return
	}
	if answer == "" {
		w.log.Info("no action needed", "task", task.Title)
		return
	}
	w.broadcast(ctx, chatIDs, answer)
}

func (w *CryptoWatcher) broadcast(ctx context.Context, chatIDs []int64, text string) {
	for _, chatID := range chatIDs {
		if err := w.notifier.SendText(ctx, chatID, text); err != nil {
			w.log.Error("send crypto message", "chat_id", chatID, "error", err)
		}
	}
}

func reportBucket(now time.Time) string {
	return "report_" + now.UTC().Format("2006-01-02 15")
}

func (w *CryptoWatcher) isGuidanceTime(now time.Time) bool {
	_, ok := guidanceTimes[[2]int{now.Hour(), now.Minute()}]
	return ok
}

// conditionMet reports whether the price has crossed the task's end point,
// in the direction implied by the start point.
func conditionMet(task model.CryptoTask, price float64) bool {
	if task.EndPoint >= task.StartPoint {
		return price >= task.EndPoint
	}
	return price <= task.EndPoint
}
