package tasks

import (
	"Friday/backend/go/internal/llm"
	"Friday/backend/go/internal/store"
	"Friday/backend/go/pkg/logger"
	"context"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestDeps(oracle llm.Completer) (Deps, *store.MemoryStore) {
	mem := store.NewMemoryStore("")
	mem.SetClock(func() time.Time { return fixedNow })
	return Deps{
		Store:  mem,
		Oracle: oracle,
		Logger: logger.Discard(),
		Now:    func() time.Time { return fixedNow },
	}.withDefaults(), mem
}

func seed(t *testing.T, mem *store.MemoryStore, collection string, recs ...store.Record) []string {
	t.Helper()
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		id, err := mem.Create(context.Background(), collection, r)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

// scriptedOracle 记录调用次数并返回固定文本。
type scriptedOracle struct {
	reply string
	err   error
	calls int
}

func (s *scriptedOracle) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.reply, s.err
}
