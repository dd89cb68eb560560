package tasks

import (
	"Friday/backend/go/internal/store"
	"context"
	"testing"
)

func TestTodoValidate(t *testing.T) {
	deps, _ := newTestDeps(nil)
	td := NewTodo(deps)

	data := map[string]interface{}{"title": "Write report", "priority": "super"}
	if !td.Validate(data) {
		t.Fatal("Validate() = false, want true")
	}
	if data["priority"] != PriorityMedium {
		t.Errorf("priority = %v, want medium", data["priority"])
	}
	if td.Validate(map[string]interface{}{"title": "x", "due_date": "next week"}) {
		t.Error("Validate() should reject a malformed due date")
	}
	if td.Validate(map[string]interface{}{"title": "  "}) {
		t.Error("Validate() should reject a blank title")
	}
}

func TestTodoQuery_Overdue(t *testing.T) {
	deps, mem := newTestDeps(nil)
	seed(t, mem, deps.Collections.Todo,
		store.Record{"title": "late", "status": "pending", "due_date": "2026-03-01"},
		store.Record{"title": "late but done", "status": "done", "due_date": "2026-03-02"},
		store.Record{"title": "future", "status": "pending", "due_date": "2026-04-01"},
	)

	res := NewTodo(deps).Query(context.Background(), map[string]interface{}{"overdue": true})
	recs := res.Records("records")
	if len(recs) != 1 || recs[0]["title"] != "late" {
		t.Errorf("Query(overdue) = %v, want only late", recs)
	}
}

func TestTodoAgenda(t *testing.T) {
	deps, mem := newTestDeps(nil)
	seed(t, mem, deps.Collections.Todo,
		store.Record{"title": "today", "status": "pending", "due_date": "2026-03-10"},
		store.Record{"title": "undated", "status": "in_progress"},
		store.Record{"title": "overdue", "status": "pending", "due_date": "2026-03-08"},
		store.Record{"title": "finished", "status": "done", "due_date": "2026-03-08"},
		store.Record{"title": "tomorrow", "status": "pending", "due_date": "2026-03-11"},
	)

	a, err := NewTodo(deps).Agenda(context.Background(), "2026-03-10")
	if err != nil {
		t.Fatalf("Agenda() error = %v", err)
	}
	if len(a.Today) != 2 {
		t.Errorf("Today = %d items, want 2", len(a.Today))
	}
	if len(a.Overdue) != 1 || a.Overdue[0].String("title") != "overdue" {
		t.Errorf("Overdue = %v, want only overdue", a.Overdue)
	}
}

func TestRanks(t *testing.T) {
	if !(StatusRank("in progress") > StatusRank("pending") && StatusRank("pending") > StatusRank("done") && StatusRank("done") > StatusRank("cancelled")) {
		t.Error("status ranks out of order")
	}
	if !(PriorityRank("high") > PriorityRank("medium") && PriorityRank("medium") > PriorityRank("low")) {
		t.Error("priority ranks out of order")
	}
}
