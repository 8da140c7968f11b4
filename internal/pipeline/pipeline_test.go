package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"newswatch/internal/model"
	"newswatch/internal/storage"
)

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMatch struct {
	ChatID int64
	News   string
	Task   string
	Post   string
}

type sentText struct {
	ChatID int64
	Text   string
}

// mockNotifier records deliveries for both the consumer and the crypto
// watcher.
type mockNotifier struct {
	mu      sync.Mutex
	matches []sentMatch
	texts   []sentText
}

func (m *mockNotifier) NotifyMatch(_ context.Context, chatID int64, item model.NewsItem, task model.Task, post string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches = append(m.matches, sentMatch{ChatID: chatID, News: item.Title, Task: task.Title, Post: post})
	return nil
}

func (m *mockNotifier) SendText(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, sentText{ChatID: chatID, Text: text})
	return nil
}

func (m *mockNotifier) getMatches() []sentMatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentMatch, len(m.matches))
	copy(cp, m.matches)
	return cp
}

func (m *mockNotifier) getTexts() []sentText {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentText, len(m.texts))
	copy(cp, m.texts)
	return cp
}
