package assistant

import (
	"Friday/backend/go/internal/models"
	"context"
	"testing"
)

func TestClassify_Fallbacks(t *testing.T) {
	e := newEnv(t, routeOracle(nil))
	got := e.proc.Classify(context.Background(), "hi")
	if got.Kind != models.IntentChat || got.Confidence != 0.5 || got.ReplyHint == "" {
		t.Fatalf("Classify() with offline oracle = %+v", got)
	}

	e = newEnv(t, routeOracle(map[string]string{markClassify: "I am not JSON"}))
	got = e.proc.Classify(context.Background(), "hi")
	if got.Kind != models.IntentChat || got.Confidence != 0.8 || got.ReplyHint == "" {
		t.Fatalf("Classify() with unparsable reply = %+v", got)
	}
}

func TestClassify_Kinds(t *testing.T) {
	cases := []struct {
		reply    string
		kind     models.IntentKind
		taskType models.TaskType
	}{
		{`{"task_type": "subscription", "confidence": 0.9}`, models.IntentCreate, models.TaskSubscription},
		{`{"task_type": "query", "confidence": 0.7}`, models.IntentQuery, models.TaskNone},
		{`{"task_type": "update", "confidence": 0.6}`, models.IntentUpdate, models.TaskNone},
		{`{"task_type": "todo", "confidence": 0.59}`, models.IntentChat, models.TaskTodo},
		{`{"task_type": "weather", "confidence": 0.99}`, models.IntentChat, models.TaskNone},
	}
	for _, c := range cases {
		e := newEnv(t, routeOracle(map[string]string{markClassify: c.reply}))
		got := e.proc.Classify(context.Background(), "message")
		if got.Kind != c.kind || got.TaskType != c.taskType {
			t.Fatalf("Classify(%s) = %s/%s, want %s/%s", c.reply, got.Kind, got.TaskType, c.kind, c.taskType)
		}
	}
}

func TestExtractFields_DefaultsWhenOracleFails(t *testing.T) {
	e := newEnv(t, routeOracle(nil))

	acc := e.proc.ExtractFields(context.Background(), models.TaskAccounting, "something")
	want := map[string]interface{}{
		"title":    "Unknown expense",
		"amount":   0.0,
		"type":     "expense",
		"category": "other",
		"date":     "2026-03-10",
	}
	for k, v := range want {
		if acc[k] != v {
			t.Fatalf("accounting[%s] = %v, want %v", k, acc[k], v)
		}
	}

	sub := e.proc.ExtractFields(context.Background(), models.TaskSubscription, "something")
	if sub["billing_cycle"] != "month" || sub["price"] != 0.0 || sub["next_billing_date"] != "2026-03-10" {
		t.Fatalf("subscription defaults = %v", sub)
	}

	todo := e.proc.ExtractFields(context.Background(), models.TaskTodo, "do this whenever, not urgent")
	if todo["priority"] != "low" || todo["due_date"] != "2026-03-10" || todo["title"] != "Unknown task" {
		t.Fatalf("todo defaults = %v", todo)
	}
}

func TestExtractFields_UsesOracleValues(t *testing.T) {
	e := newEnv(t, routeOracle(map[string]string{
		markExtractAcc: `{"title": "Lunch", "amount": "25.5", "type": "expense", "category": "food", "date": "2026-03-09", "description": ""}`,
	}))
	got := e.proc.ExtractFields(context.Background(), models.TaskAccounting, "lunch yesterday 25.5")
	if got["title"] != "Lunch" || got["amount"] != "25.5" || got["category"] != "food" || got["date"] != "2026-03-09" {
		t.Fatalf("ExtractFields() = %v", got)
	}
	if got["description"] != "lunch yesterday 25.5" {
		t.Fatalf("empty description should fall back to the message, got %v", got["description"])
	}
}

func TestInferPriority(t *testing.T) {
	cases := map[string]string{
		"this is urgent":           "high",
		"important meeting":        "high",
		"not urgent at all":        "low",
		"whenever you can":         "low",
		"buy some milk on the way": "medium",
	}
	for msg, want := range cases {
		if got := inferPriority(msg); got != want {
			t.Fatalf("inferPriority(%q) = %q, want %q", msg, got, want)
		}
	}
}
