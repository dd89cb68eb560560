package assistant

import (
	"Friday/backend/go/internal/config"
	"Friday/backend/go/internal/dispatcher"
	"Friday/backend/go/internal/llm"
	"Friday/backend/go/internal/store"
	"Friday/backend/go/internal/tasks"
	"Friday/backend/go/pkg/logger"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// 每个提示词中唯一出现的标记。
const (
	markClassify    = "Classify the user's message"
	markExtractTodo = "new todo record"
	markExtractAcc  = "new accounting record"
	markQuery       = "Analyze the user's query"
	markDelete      = "Analyze what the user wants to delete"
	markUpdate      = "Analyze which record"
	markChat        = "You are Friday"
	markQueryReply  = "Write a clear plain-text reply"
	markSmartReply  = "The task result was"
	markTieBreak    = "Pick the record the user most likely wants"
)

var errOffline = errors.New("oracle offline")

// routeOracle 按提示词中的标记返回预设回复，没有匹配的标记时返回错误。
func routeOracle(routes map[string]string) llm.Func {
	return func(ctx context.Context, prompt string) (string, error) {
		for mark, reply := range routes {
			if strings.Contains(prompt, mark) {
				return reply, nil
			}
		}
		return "", errOffline
	}
}

type env struct {
	proc *Processor
	disp *dispatcher.Dispatcher
	mem  *store.MemoryStore
}

func newEnv(t *testing.T, oracle llm.Completer, opts ...Option) *env {
	t.Helper()
	mem := store.NewMemoryStore("https://records.example/")
	mem.SetClock(clock)
	reg := tasks.NewDefaultRegistry(tasks.Deps{
		Store:  mem,
		Oracle: oracle,
		Logger: logger.Discard(),
		Now:    clock,
	})
	disp := dispatcher.New(reg, dispatcher.WithClock(clock), dispatcher.WithLogger(logger.Discard()))
	opts = append([]Option{WithClock(clock), WithLogger(logger.Discard())}, opts...)
	return &env{
		proc: NewProcessor(oracle, disp, config.Default().Assistant, opts...),
		disp: disp,
		mem:  mem,
	}
}

func (e *env) seed(t *testing.T, collection string, recs ...store.Record) {
	t.Helper()
	for _, r := range recs {
		if _, err := e.mem.Create(context.Background(), collection, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
}

func (e *env) count(t *testing.T, collection string) int {
	t.Helper()
	recs, err := e.mem.Query(context.Background(), collection, store.Query{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	return len(recs)
}

type fakeSubs struct {
	mu  sync.Mutex
	set map[string]bool
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{set: map[string]bool{}}
}

func (f *fakeSubs) AddSubscriber(userID, platform string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set[platform+":"+userID] = true
}

func (f *fakeSubs) RemoveSubscriber(userID, platform string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := platform + ":" + userID
	ok := f.set[key]
	delete(f.set, key)
	return ok
}

func (f *fakeSubs) IsSubscribed(userID, platform string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set[platform+":"+userID]
}

func (f *fakeSubs) SendManualDailyReport(ctx context.Context, platform, userID string) string {
	return "report for " + platform + ":" + userID
}
