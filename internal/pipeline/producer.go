package pipeline

import (
	"context"
	"log/slog"
	"time"

	"newswatch/internal/dedup"
	"newswatch/internal/feed"
	"newswatch/internal/model"
	"newswatch/internal/storage"
)

// Producer periodically fetches all configured sources and feeds the new
// items into the store. The dedup window is owned by this loop and carried
// across iterations.
type Producer struct {
	store   storage.Storage
	fetcher *feed.Fetcher
	window  *dedup.Window
	tick    time.Duration
	log     *slog.Logger
}

// NewProducer creates a Producer polling at the given interval.
func NewProducer(store storage.Storage, fetcher *feed.Fetcher, tick time.Duration, log *slog.Logger) *Producer {
	return &Producer{
		store:   store,
		fetcher: fetcher,
		window:  dedup.NewWindow(dedup.Cap, dedup.EvictBatch),
		tick:    tick,
		log:     log,
	}
}

// Run starts the producer loop, blocking until ctx is cancelled.
func (p *Producer) Run(ctx context.Context) {
	p.pollOnce(ctx)

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Producer) pollOnce(ctx context.Context) {
	sources, err := p.store.ListSources(ctx)
	if err != nil {
		p.log.Error("list sources", "error", err)
		return
	}
	if len(sources) == 0 {
		p.log.Info("no sources configured")
		return
	}

	items := p.fetcher.FetchAll(ctx, sources)

	added := 0
	for _, item := range items {
		id := dedup.Identity(item)
		if p.window.Contains(id) {
			continue
		}
		inserted, err := p.intake(ctx, item)
		if err != nil {
			// The window stays unmarked so the item is retried next pass.
			p.log.Error("store news", "title", item.Title, "error", err)
			continue
		}
		p.window.Add(id)
		if inserted {
			added++
		}
	}

	p.log.Info("producer pass finished", "fetched", len(items), "added", added)
}

func (p *Producer) intake(ctx context.Context, item model.NewsItem) (bool, error) {
	return p.store.CreateNews(ctx, &item)
}
