package bot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeAction(t *testing.T) {
	tests := []struct {
		name string
		in   action
		want string
	}{
		{
			name: "irrelevant",
			in:   action{kind: actionIrrelevant, taskID: 3, newsID: 7},
			want: "irr:3:7",
		},
		{
			name: "translate",
			in:   action{kind: actionTranslate, newsID: 7},
			want: "tr:7",
		},
		{
			name: "unknown kind",
			in:   action{kind: "nope"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, encodeAction(tt.in)); diff != "" {
				t.Errorf("encodeAction mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		want   action
		wantOK bool
	}{
		{
			name:   "irrelevant",
			data:   "irr:3:7",
			want:   action{kind: actionIrrelevant, taskID: 3, newsID: 7},
			wantOK: true,
		},
		{
			name:   "translate",
			data:   "tr:7",
			want:   action{kind: actionTranslate, newsID: 7},
			wantOK: true,
		},
		{name: "no separator", data: "nocolon"},
		{name: "unknown kind", data: "zap:1:2"},
		{name: "non-numeric id", data: "irr:abc:7"},
		{name: "translate with wrong arity", data: "tr:1:2"},
		{name: "empty", data: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseAction(tt.data)
			if ok != tt.wantOK {
				t.Fatalf("parseAction(%q) ok = %v, want %v", tt.data, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(action{})); diff != "" {
				t.Errorf("parseAction mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	in := "  First paragraph.\n\n\n\n\nSecond paragraph.\n\n"
	want := "First paragraph.\n\nSecond paragraph."
	if diff := cmp.Diff(want, cleanText(in)); diff != "" {
		t.Errorf("cleanText mismatch (-want +got):\n%s", diff)
	}
}
