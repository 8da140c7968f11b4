package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"newswatch/internal/model"
)

func TestAdd(t *testing.T) {
	w := NewWindow(0, 0)

	if !w.Add("a") {
		t.Fatal("first add should report new")
	}
	if w.Add("a") {
		t.Fatal("second add of same id should report seen")
	}
	if !w.Contains("a") {
		t.Fatal("added id should be tracked")
	}
	if w.Contains("b") {
		t.Fatal("unknown id should not be tracked")
	}
	if got := w.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
}

func TestAddEviction(t *testing.T) {
	w := NewWindow(10, 4)

	for i := 0; i < 11; i++ {
		w.Add(fmt.Sprintf("id-%d", i))
	}

	// Crossing the capacity drops the 4 oldest in one step.
	if got := w.Len(); got != 7 {
		t.Fatalf("Len() after eviction = %d, want 7", got)
	}
	for i := 0; i < 4; i++ {
		if w.Contains(fmt.Sprintf("id-%d", i)) {
			t.Errorf("id-%d should have been evicted", i)
		}
	}
	for i := 4; i < 11; i++ {
		if !w.Contains(fmt.Sprintf("id-%d", i)) {
			t.Errorf("id-%d should still be tracked", i)
		}
	}

	// An evicted id counts as brand new again.
	if !w.Add("id-0") {
		t.Fatal("re-adding an evicted id should report new")
	}
}

func TestAddStaysBounded(t *testing.T) {
	w := NewWindow(0, 0)

	for i := 0; i < Cap*5; i++ {
		w.Add(fmt.Sprintf("id-%d", i))
		if w.Len() > Cap {
			t.Fatalf("Len() = %d exceeds capacity %d at insert %d", w.Len(), Cap, i)
		}
	}
}

func TestIdentity(t *testing.T) {
	pub := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		item model.NewsItem
		want string
	}{
		{
			name: "link preferred",
			item: model.NewsItem{Title: "Title", Link: "https://example.com/a", PubDate: pub},
			want: "https://example.com/a",
		},
		{
			name: "falls back to title and timestamp",
			item: model.NewsItem{Title: "Title", PubDate: pub},
			want: fmt.Sprintf("Title|%d", pub.Unix()),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Identity(tt.item)); diff != "" {
				t.Errorf("Identity mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBucketKey(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)

	tests := []struct {
		name   string
		taskID int64
		at     time.Time
		want   string
	}{
		{
			name:   "utc time",
			taskID: 7,
			at:     time.Date(2024, 5, 1, 12, 34, 56, 0, time.UTC),
			want:   "7_2024-05-01 12:34",
		},
		{
			name:   "normalized to utc",
			taskID: 7,
			at:     time.Date(2024, 5, 1, 15, 34, 0, 0, loc),
			want:   "7_2024-05-01 12:34",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, BucketKey(tt.taskID, tt.at)); diff != "" {
				t.Errorf("BucketKey mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBucketKeySameMinute(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 34, 1, 0, time.UTC)
	if BucketKey(1, base) != BucketKey(1, base.Add(50*time.Second)) {
		t.Fatal("measurements within one minute should share a bucket")
	}
	if BucketKey(1, base) == BucketKey(2, base) {
		t.Fatal("different tasks should not share a bucket")
	}
	if BucketKey(1, base) == BucketKey(1, base.Add(time.Minute)) {
		t.Fatal("adjacent minutes should not share a bucket")
	}
}
