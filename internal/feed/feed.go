// Package feed handles downloading and parsing of the configured news
// sources and normalizes their items for the pipeline.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"newswatch/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// telegramMirrors are the RSS-proxy hosts tried in order for telegram
// sources. A telegram source fails only if every mirror fails.
var telegramMirrors = []string{
	"https://rss.owo.nz",
	"https://rsshub.app",
}

// maxItemsPerSource caps how many entries of one feed are considered before
// the freshness filter, bounding the classification workload downstream.
const maxItemsPerSource = 50

// Fetcher downloads and parses feeds from multiple sources concurrently.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
	recency time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// New creates a Fetcher. Items older than recency relative to fetch time
// are dropped.
func New(client HTTPClient, timeout, recency time.Duration, log *slog.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		timeout: timeout,
		recency: recency,
		now:     time.Now,
		log:     log,
	}
}

// FetchAll fetches every source concurrently and returns the merged batch
// of fresh items sorted by ascending publication time. A failing or
// unparseable source is logged and contributes no items; it never aborts
// the batch.
func (f *Fetcher) FetchAll(ctx context.Context, sources []model.Source) []model.NewsItem {
	var (
		mu    sync.Mutex
		batch []model.NewsItem
		wg    sync.WaitGroup
	)

	for _, src := range sources {
		wg.Add(1)
		go func(src model.Source) {
			defer wg.Done()
			items, err := f.fetchSource(ctx, src)
			if err != nil {
				f.log.Error("fetch source", "source", src.Name, "error", err)
				return
			}
			mu.Lock()
			batch = append(batch, items...)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	fresh := f.filterFresh(batch)
	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].PubDate.Before(fresh[j].PubDate)
	})
	if len(fresh) == 0 {
		f.log.Info("no fresh items in batch", "sources", len(sources))
	}
	return fresh
}

func (f *Fetcher) fetchSource(ctx context.Context, src model.Source) ([]model.NewsItem, error) {
	urls := sourceURLs(src)

	var lastErr error
	for _, url := range urls {
		body, err := f.download(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		feed, err := gofeed.NewParser().ParseString(body)
		if err != nil {
			// Malformed XML drops the whole document, not the batch.
			lastErr = fmt.Errorf("parse feed: %w", err)
			continue
		}
		return f.normalize(feed, src.Name), nil
	}
	return nil, lastErr
}

// sourceURLs expands a source into the candidate URLs to try in order.
func sourceURLs(src model.Source) []string {
	if src.Kind != model.SourceTelegram {
		return []string{src.URL}
	}
	urls := make([]string, 0, len(telegramMirrors))
	for _, mirror := range telegramMirrors {
		urls = append(urls, fmt.Sprintf("%s/telegram/channel/%s", mirror, src.URL))
	}
	return urls
}

func (f *Fetcher) download(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "newswatch/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// normalize maps feed entries to NewsItems. Entries without a parsable
// publication time are skipped; naive timestamps are normalized to UTC so
// freshness comparison is consistent across sources.
func (f *Fetcher) normalize(feed *gofeed.Feed, sourceName string) []model.NewsItem {
	entries := feed.Items
	if len(entries) > maxItemsPerSource {
		entries = entries[:maxItemsPerSource]
	}

	entries = lo.Filter(entries, func(item *gofeed.Item, _ int) bool {
		if item.PublishedParsed == nil {
			f.log.Warn("item without publication time", "source", sourceName, "title", item.Title)
			return false
		}
		return true
	})

	return lo.Map(entries, func(item *gofeed.Item, _ int) model.NewsItem {
		return model.NewsItem{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			PubDate:     item.PublishedParsed.UTC(),
			SourceName:  sourceName,
		}
	})
}

// filterFresh keeps items strictly newer than now minus the recency window.
// An item exactly at the boundary is dropped.
func (f *Fetcher) filterFresh(items []model.NewsItem) []model.NewsItem {
	cutoff := f.now().Add(-f.recency)
	return lo.Filter(items, func(item model.NewsItem, _ int) bool {
		return item.PubDate.After(cutoff)
	})
}
