package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestMemoryContextStore_CapsAndEvictsOldest(t *testing.T) {
	s := NewMemoryContextStore(10, 0)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		if err := s.Append(ctx, "u1", ContextEntry{Message: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.Recent(ctx, "u1")
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	if got[0].Message != "m2" || got[9].Message != "m11" {
		t.Fatalf("kept %s..%s, want m2..m11", got[0].Message, got[9].Message)
	}

	if err := s.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got, _ := s.Recent(ctx, "u1"); len(got) != 0 {
		t.Fatalf("len after Clear = %d", len(got))
	}
}

func TestSummarize(t *testing.T) {
	entries := []ContextEntry{
		{Message: "first"},
		{Message: "second"},
		{Message: "third"},
		{Message: strings.Repeat("x", 80)},
	}
	got := Summarize(entries)
	if strings.Contains(got, "first") {
		t.Fatalf("summary should only keep the last 3 messages:\n%s", got)
	}
	if !strings.Contains(got, strings.Repeat("x", 50)+"...") || strings.Contains(got, strings.Repeat("x", 51)) {
		t.Fatalf("long message not truncated to 50 characters:\n%s", got)
	}
	if Summarize(nil) != "" {
		t.Fatal("Summarize(nil) should be empty")
	}
}
