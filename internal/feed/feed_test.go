package feed

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"newswatch/internal/model"
)

type mockResponse struct {
	body       string
	statusCode int
	err        error
}

// mockTransport routes requests by URL so one test can serve several
// sources with different outcomes.
type mockTransport struct {
	mu        sync.Mutex
	responses map[string]mockResponse
	requested []string
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	url := req.URL.String()
	m.mu.Lock()
	m.requested = append(m.requested, url)
	m.mu.Unlock()

	resp, ok := m.responses[url]
	if !ok {
		return &http.Response{StatusCode: 404, Body: io.NopCloser(bytes.NewBufferString("not found"))}, nil
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return &http.Response{
		StatusCode: resp.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(resp.body)),
	}, nil
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixtureNow matches the publish times in testdata/sample.xml: with a one
// hour recency window three items are fresh, the item exactly at the
// boundary and the stale one are dropped, and the undated one is skipped.
var fixtureNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestFetcher(transport HTTPClient) *Fetcher {
	f := New(transport, 5*time.Second, time.Hour, testLogger())
	f.now = func() time.Time { return fixtureNow }
	return f
}

func TestFetchAll(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")

	transport := &mockTransport{responses: map[string]mockResponse{
		"https://example.com/rss": {body: xml, statusCode: 200},
	}}
	f := newTestFetcher(transport)

	got := f.FetchAll(context.Background(), []model.Source{
		{Name: "wire", URL: "https://example.com/rss", Kind: model.SourceRSS},
	})

	want := []model.NewsItem{
		{
			Title:       "OpenAI announces new flagship model",
			Link:        "https://example.com/news/openai-model",
			Description: "The company unveiled its next model at a developer event.",
			PubDate:     time.Date(2024, 5, 1, 11, 30, 0, 0, time.UTC),
			SourceName:  "wire",
		},
		{
			Title:       "Bitcoin briefly tops $70,000",
			Link:        "https://example.com/news/btc-70k",
			Description: "BTC touched a new monthly high before pulling back.",
			PubDate:     time.Date(2024, 5, 1, 11, 45, 0, 0, time.UTC),
			SourceName:  "wire",
		},
		{
			Title:       "Fed holds rates steady in surprise decision",
			Link:        "https://example.com/news/fed-holds",
			Description: "The Federal Reserve left its benchmark rate unchanged.",
			PubDate:     time.Date(2024, 5, 1, 11, 50, 0, 0, time.UTC),
			SourceName:  "wire",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("batch mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchAllPartialFailure(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")

	tests := []struct {
		name      string
		responses map[string]mockResponse
		wantItems int
	}{
		{
			name: "one source down",
			responses: map[string]mockResponse{
				"https://ok.example.com/rss":  {body: xml, statusCode: 200},
				"https://bad.example.com/rss": {err: io.ErrUnexpectedEOF},
			},
			wantItems: 3,
		},
		{
			name: "one source returns error status",
			responses: map[string]mockResponse{
				"https://ok.example.com/rss":  {body: xml, statusCode: 200},
				"https://bad.example.com/rss": {body: "maintenance", statusCode: 503},
			},
			wantItems: 3,
		},
		{
			name: "one source serves malformed xml",
			responses: map[string]mockResponse{
				"https://ok.example.com/rss":  {body: xml, statusCode: 200},
				"https://bad.example.com/rss": {body: "not xml at all", statusCode: 200},
			},
			wantItems: 3,
		},
		{
			name: "all sources down",
			responses: map[string]mockResponse{
				"https://ok.example.com/rss":  {err: io.ErrUnexpectedEOF},
				"https://bad.example.com/rss": {err: io.ErrUnexpectedEOF},
			},
			wantItems: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFetcher(&mockTransport{responses: tt.responses})

			got := f.FetchAll(context.Background(), []model.Source{
				{Name: "ok", URL: "https://ok.example.com/rss", Kind: model.SourceRSS},
				{Name: "bad", URL: "https://bad.example.com/rss", Kind: model.SourceRSS},
			})

			if len(got) != tt.wantItems {
				t.Errorf("got %d items, want %d", len(got), tt.wantItems)
			}
		})
	}
}

func TestFetchSourceTelegramMirrorFallback(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")

	transport := &mockTransport{responses: map[string]mockResponse{
		"https://rss.owo.nz/telegram/channel/markets": {err: io.ErrUnexpectedEOF},
		"https://rsshub.app/telegram/channel/markets": {body: xml, statusCode: 200},
	}}
	f := newTestFetcher(transport)

	items, err := f.fetchSource(context.Background(), model.Source{
		Name: "markets", URL: "markets", Kind: model.SourceTelegram,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected items from the fallback mirror")
	}

	wantOrder := []string{
		"https://rss.owo.nz/telegram/channel/markets",
		"https://rsshub.app/telegram/channel/markets",
	}
	if diff := cmp.Diff(wantOrder, transport.requested); diff != "" {
		t.Errorf("mirror order mismatch (-want +got):\n%s", diff)
	}
}

func TestSourceURLs(t *testing.T) {
	tests := []struct {
		name string
		src  model.Source
		want []string
	}{
		{
			name: "rss source is used as is",
			src:  model.Source{URL: "https://example.com/rss", Kind: model.SourceRSS},
			want: []string{"https://example.com/rss"},
		},
		{
			name: "telegram source expands over mirrors",
			src:  model.Source{URL: "markets", Kind: model.SourceTelegram},
			want: []string{
				"https://rss.owo.nz/telegram/channel/markets",
				"https://rsshub.app/telegram/channel/markets",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, sourceURLs(tt.src)); diff != "" {
				t.Errorf("sourceURLs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterFresh(t *testing.T) {
	f := newTestFetcher(&mockTransport{})

	items := []model.NewsItem{
		{Title: "fresh", PubDate: fixtureNow.Add(-time.Minute)},
		{Title: "boundary", PubDate: fixtureNow.Add(-time.Hour)},
		{Title: "stale", PubDate: fixtureNow.Add(-2 * time.Hour)},
	}

	got := f.filterFresh(items)
	if len(got) != 1 || got[0].Title != "fresh" {
		t.Fatalf("filterFresh kept %v, want only the fresh item", got)
	}
}
