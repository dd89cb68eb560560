package assistant

import (
	"Friday/backend/go/internal/llm"
	"Friday/backend/go/internal/models"
	"Friday/backend/go/internal/store"
	"context"
	"strings"
	"testing"
)

func TestProcessMessage_OracleUnreachable(t *testing.T) {
	offline := llm.Func(func(ctx context.Context, prompt string) (string, error) {
		return "", errOffline
	})
	for _, oracle := range []llm.Completer{offline, nil} {
		e := newEnv(t, oracle)
		for _, msg := range []string{"lunch 25", "what do I have today?", "the release is done", "hello"} {
			reply := e.proc.ProcessMessage(context.Background(), msg, "u1", "telegram")
			if strings.TrimSpace(reply) == "" {
				t.Fatalf("ProcessMessage(%q) returned an empty reply", msg)
			}
		}
		if n := e.count(t, "accounting"); n != 0 {
			t.Fatalf("accounting records = %d, want 0", n)
		}
	}
}

func TestProcessMessage_LowConfidenceRoutesToChat(t *testing.T) {
	e := newEnv(t, routeOracle(map[string]string{
		markClassify:   `{"task_type": "accounting", "confidence": 0.4}`,
		markExtractAcc: `{"title": "lunch", "amount": 25}`,
		markChat:       "Sounds tasty!",
	}))

	reply := e.proc.ProcessMessage(context.Background(), "lunch was 25, so good", "u1", "telegram")
	if reply != "Sounds tasty!" {
		t.Fatalf("reply = %q, want the chat reply", reply)
	}
	if n := e.count(t, "accounting"); n != 0 {
		t.Fatalf("accounting records = %d, want 0", n)
	}
	if h := e.disp.GetUserTaskHistory("u1", 0); len(h) != 0 {
		t.Fatalf("history = %d entries, want 0", len(h))
	}
}

func TestProcessMessage_CreatesTodo(t *testing.T) {
	e := newEnv(t, routeOracle(map[string]string{
		markClassify:    `{"task_type": "todo", "confidence": "0.9"}`,
		markExtractTodo: "Sure!\n```json\n{\"title\": \"Call mom\", \"due_date\": \"2026-03-11\"}\n```",
	}))

	reply := e.proc.ProcessMessage(context.Background(), "remind me to call mom tomorrow", "u1", "telegram")
	if !strings.HasPrefix(reply, "Done! Added to-do \"Call mom\"") {
		t.Fatalf("reply = %q", reply)
	}

	recs, err := e.mem.Query(context.Background(), "todos", store.Query{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("todos = %d, want 1", len(recs))
	}
	if got := recs[0].String("priority"); got != "medium" {
		t.Fatalf("priority = %q, want medium", got)
	}
	if got := recs[0].String("due_date"); got != "2026-03-11" {
		t.Fatalf("due_date = %q", got)
	}
}

func TestProcessMessage_QueryFallsBackToPendingTodos(t *testing.T) {
	e := newEnv(t, routeOracle(map[string]string{
		markClassify: `{"task_type": "query", "confidence": 0.9}`,
		markQuery:    "I think you want your tasks.",
	}))
	e.seed(t, "todos",
		store.Record{"title": "Write report", "status": "pending", "priority": "high"},
		store.Record{"title": "Old chore", "status": "done", "priority": "low"},
	)

	reply := e.proc.ProcessMessage(context.Background(), "what's on my plate", "u1", "telegram")
	if !strings.Contains(reply, "Write report") {
		t.Fatalf("reply does not list the pending to-do:\n%s", reply)
	}
	if strings.Contains(reply, "Old chore") {
		t.Fatalf("reply lists a finished to-do:\n%s", reply)
	}
}

func TestProcessMessage_UpdateAmbiguousListsCandidates(t *testing.T) {
	e := newEnv(t, routeOracle(map[string]string{
		markClassify: `{"task_type": "update", "confidence": 0.95}`,
		markUpdate:   `{"type": "todo", "task_name": "ship", "new_status": "done"}`,
		markTieBreak: `{"selected_index": 0, "confidence": 0.3, "reason": "both plausible"}`,
	}))
	e.seed(t, "todos",
		store.Record{"title": "Ship release", "status": "pending"},
		store.Record{"title": "Ship docs", "status": "pending"},
	)

	reply := e.proc.ProcessMessage(context.Background(), "ship is done", "u1", "telegram")
	for _, want := range []string{"Ship release", "Ship docs", "1.", "2."} {
		if !strings.Contains(reply, want) {
			t.Fatalf("reply missing %q:\n%s", want, reply)
		}
	}

	recs, _ := e.mem.Query(context.Background(), "todos", store.Query{Filter: store.Eq("status", "done")})
	if len(recs) != 0 {
		t.Fatalf("%d to-dos were updated, want none", len(recs))
	}
}

func TestProcessMessage_UpdateSingleCandidate(t *testing.T) {
	e := newEnv(t, routeOracle(map[string]string{
		markClassify: `{"task_type": "update", "confidence": 0.95}`,
		markUpdate:   `{"type": "todo", "task_name": "release", "new_status": "done"}`,
	}))
	e.seed(t, "todos",
		store.Record{"title": "Ship release", "status": "pending"},
		store.Record{"title": "Buy milk", "status": "pending"},
	)

	reply := e.proc.ProcessMessage(context.Background(), "the release is done", "u1", "telegram")
	if !strings.Contains(reply, "Ship release") {
		t.Fatalf("reply = %q", reply)
	}
	recs, _ := e.mem.Query(context.Background(), "todos", store.Query{Filter: store.Eq("status", "done")})
	if len(recs) != 1 || recs[0].String("title") != "Ship release" {
		t.Fatalf("done to-dos = %v", recs)
	}
}

func TestProcessMessage_DeleteAll(t *testing.T) {
	e := newEnv(t, routeOracle(map[string]string{
		markClassify: `{"task_type": "delete", "confidence": 0.9}`,
		markDelete:   `{"type": "todo", "target": "all"}`,
	}))
	e.seed(t, "todos", store.Record{"title": "a"}, store.Record{"title": "b"})

	reply := e.proc.ProcessMessage(context.Background(), "clear all tasks", "u1", "telegram")
	if !strings.Contains(reply, "Deleted 2") {
		t.Fatalf("reply = %q", reply)
	}
	if n := e.count(t, "todos"); n != 0 {
		t.Fatalf("todos left = %d, want 0", n)
	}
}

func TestProcessMessage_DeleteSpecificDoesNotClear(t *testing.T) {
	e := newEnv(t, routeOracle(map[string]string{
		markClassify: `{"task_type": "delete", "confidence": 0.9}`,
		markDelete:   `{"type": "subscription", "target": "specific"}`,
	}))
	e.seed(t, "subscriptions", store.Record{"name": "Netflix"}, store.Record{"name": "Spotify"})

	reply := e.proc.ProcessMessage(context.Background(), "remove the Netflix subscription", "u1", "telegram")
	if reply == "" {
		t.Fatal("empty reply")
	}
	if n := e.count(t, "subscriptions"); n != 2 {
		t.Fatalf("subscriptions left = %d, want 2", n)
	}
}

func TestCommands(t *testing.T) {
	subs := newFakeSubs()
	e := newEnv(t, nil, WithSubscriptions(subs))
	ctx := context.Background()

	e.proc.ProcessMessage(ctx, "/subscribe_daily", "u1", "synology_chat")
	if !subs.IsSubscribed("u1", "synology_chat") {
		t.Fatal("IsSubscribed() = false after /subscribe_daily")
	}
	if reply := e.proc.ProcessMessage(ctx, "/subscribe_daily", "u1", "synology_chat"); !strings.Contains(reply, "already") {
		t.Fatalf("second subscribe reply = %q", reply)
	}
	if reply := e.proc.ProcessMessage(ctx, "/daily_report", "u1", "synology_chat"); reply != "report for synology_chat:u1" {
		t.Fatalf("/daily_report reply = %q", reply)
	}
	e.proc.ProcessMessage(ctx, "/unsubscribe_daily", "u1", "synology_chat")
	if subs.IsSubscribed("u1", "synology_chat") {
		t.Fatal("IsSubscribed() = true after /unsubscribe_daily")
	}
	if reply := e.proc.ProcessMessage(ctx, "/help", "u1", "synology_chat"); !strings.Contains(reply, "/subscribe_daily") {
		t.Fatalf("/help reply = %q", reply)
	}
}

func TestCommands_WithoutScheduler(t *testing.T) {
	e := newEnv(t, nil)
	if reply := e.proc.ProcessMessage(context.Background(), "/daily_report", "u1", "telegram"); reply != msgNoScheduler {
		t.Fatalf("reply = %q, want %q", reply, msgNoScheduler)
	}
}

func TestClearCommandForgetsContext(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.proc.ProcessMessage(ctx, "hello", "u1", "telegram")
	e.proc.ProcessMessage(ctx, "/clear", "u1", "telegram")

	entries, err := e.proc.contexts.Recent(ctx, "u1")
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("context entries = %d, want 0", len(entries))
	}
}

func TestGetTaskSuggestions(t *testing.T) {
	e := newEnv(t, nil)
	e.seed(t, "todos",
		store.Record{"title": "Today item", "status": "pending", "due_date": "2026-03-10"},
		store.Record{"title": "Late item", "status": "pending", "due_date": "2026-03-01"},
	)
	e.seed(t, "subscriptions",
		store.Record{"name": "Netflix", "status": "active", "next_billing_date": "2026-03-12"},
		store.Record{"name": "Gym", "status": "active", "next_billing_date": "2026-05-01"},
	)

	got := strings.Join(e.proc.GetTaskSuggestions(context.Background(), "u1"), "\n")
	for _, want := range []string{"1 to-do(s) for today", "1 overdue", "1 subscription(s) renew"} {
		if !strings.Contains(got, want) {
			t.Fatalf("suggestions missing %q:\n%s", want, got)
		}
	}
}

func TestGetUserStats(t *testing.T) {
	e := newEnv(t, nil)
	e.seed(t, "accounting", store.Record{"title": "lunch", "amount": 25.0, "type": "expense", "date": "2026-03-09"})
	_ = e.proc.contexts.Append(context.Background(), "u1", ContextEntry{Message: "lunch 25", TaskType: string(models.TaskAccounting)})

	stats := e.proc.GetUserStats(context.Background(), "u1")
	acc, ok := stats["accounting"].(map[string]interface{})
	if !ok {
		t.Fatalf("stats[accounting] = %T", stats["accounting"])
	}
	if acc["total_expense"] != 25.0 {
		t.Fatalf("total_expense = %v, want 25", acc["total_expense"])
	}
	ctxStats := stats["context"].(map[string]interface{})
	if ctxStats["most_used_type"] != "accounting" {
		t.Fatalf("most_used_type = %v", ctxStats["most_used_type"])
	}
}

type unreachableContexts struct {
	recentCalls int
}

func (u *unreachableContexts) Append(ctx context.Context, userID string, entry ContextEntry) error {
	return errOffline
}

func (u *unreachableContexts) Recent(ctx context.Context, userID string) ([]ContextEntry, error) {
	u.recentCalls++
	return nil, errOffline
}

func (u *unreachableContexts) Clear(ctx context.Context, userID string) error {
	return errOffline
}

func TestGetUserStats_ContextUnavailable(t *testing.T) {
	contexts := &unreachableContexts{}
	e := newEnv(t, nil, WithContextStore(contexts))

	stats := e.proc.GetUserStats(context.Background(), "u1")
	ctxStats := stats["context"].(map[string]interface{})
	if ctxStats["message_count"] != 0 || ctxStats["most_used_type"] != "" {
		t.Fatalf("context stats = %v, want empty", ctxStats)
	}
	if contexts.recentCalls != 1 {
		t.Fatalf("Recent() calls = %d, want 1", contexts.recentCalls)
	}
	if _, ok := stats["executions"]; !ok {
		t.Fatalf("stats missing executions: %v", stats)
	}
}
