package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"newswatch/internal/feed"
	"newswatch/internal/model"
	"newswatch/internal/storage"
)

type mockHTTP struct {
	body string
}

func (m *mockHTTP) Do(_ *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/sample.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func TestProducerIntake(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.AddSource(ctx, &model.Source{
		Name: "wire", URL: "https://example.com/rss", Kind: model.SourceRSS,
	}); err != nil {
		t.Fatalf("add source: %v", err)
	}

	// A very wide recency window keeps every dated fixture item fresh
	// regardless of when the test runs.
	fetcher := feed.New(&mockHTTP{body: loadFixture(t)}, 5*time.Second, 100*365*24*time.Hour, testLogger())
	p := NewProducer(store, fetcher, time.Minute, testLogger())

	p.pollOnce(ctx)

	items, err := store.ListUnprocessedNews(ctx)
	if err != nil {
		t.Fatalf("list unprocessed: %v", err)
	}
	// The fixture has five dated items; the undated one is skipped.
	if len(items) != 5 {
		t.Fatalf("got %d items after first pass, want 5", len(items))
	}

	// A second pass over the same feed adds nothing.
	p.pollOnce(ctx)

	items, err = store.ListUnprocessedNews(ctx)
	if err != nil {
		t.Fatalf("list unprocessed: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("got %d items after second pass, want 5", len(items))
	}
}

// flakyStore fails news inserts on demand while delegating everything else.
type flakyStore struct {
	storage.Storage
	failing bool
}

func (s *flakyStore) CreateNews(ctx context.Context, item *model.NewsItem) (bool, error) {
	if s.failing {
		return false, errors.New("database locked")
	}
	return s.Storage.CreateNews(ctx, item)
}

func TestProducerIntakeErrorRetries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.AddSource(ctx, &model.Source{
		Name: "wire", URL: "https://example.com/rss", Kind: model.SourceRSS,
	}); err != nil {
		t.Fatalf("add source: %v", err)
	}

	flaky := &flakyStore{Storage: store, failing: true}
	fetcher := feed.New(&mockHTTP{body: loadFixture(t)}, 5*time.Second, 100*365*24*time.Hour, testLogger())
	p := NewProducer(flaky, fetcher, time.Minute, testLogger())

	// A failed insert must not consume the item's dedup slot.
	p.pollOnce(ctx)

	items, err := store.ListUnprocessedNews(ctx)
	if err != nil {
		t.Fatalf("list unprocessed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("got %d items while inserts fail, want 0", len(items))
	}

	flaky.failing = false
	p.pollOnce(ctx)

	items, err = store.ListUnprocessedNews(ctx)
	if err != nil {
		t.Fatalf("list unprocessed: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("got %d items after recovery, want 5", len(items))
	}
}

func TestProducerNoSources(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	fetcher := feed.New(&mockHTTP{}, 5*time.Second, time.Hour, testLogger())
	p := NewProducer(store, fetcher, time.Minute, testLogger())

	p.pollOnce(ctx)

	items, err := store.ListUnprocessedNews(ctx)
	if err != nil {
		t.Fatalf("list unprocessed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("got %d items without sources, want 0", len(items))
	}
}
