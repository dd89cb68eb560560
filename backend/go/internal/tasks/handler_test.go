package tasks

import (
	"Friday/backend/go/internal/models"
	"Friday/backend/go/internal/store"
	"context"
	"errors"
	"testing"
)

func TestDeleteAll_Empty(t *testing.T) {
	deps, _ := newTestDeps(nil)

	res := NewTodo(deps).DeleteAll(context.Background())
	if !res.Success {
		t.Fatalf("DeleteAll() = %+v, want success", res)
	}
	if res.Int("deleted_count") != 0 {
		t.Errorf("deleted_count = %d, want 0", res.Int("deleted_count"))
	}
}

func TestDeleteAll_PartialFailure(t *testing.T) {
	deps, mem := newTestDeps(nil)
	ids := seed(t, mem, deps.Collections.Accounting,
		store.Record{"title": "a", "amount": 1.0},
		store.Record{"title": "b", "amount": 2.0},
		store.Record{"title": "c", "amount": 3.0},
	)
	mem.FailArchive(ids[1], errors.New("archive rejected"))

	res := NewAccounting(deps).DeleteAll(context.Background())
	if !res.Success {
		t.Fatalf("DeleteAll() = %+v, want success", res)
	}
	if res.Int("deleted_count") != 2 || res.Int("failed_count") != 1 {
		t.Errorf("counts = %d/%d, want 2/1", res.Int("deleted_count"), res.Int("failed_count"))
	}
}

func TestDeleteAll_StoreDown(t *testing.T) {
	deps, mem := newTestDeps(nil)
	mem.FailQueries(errors.New("connection refused"))

	res := NewSubscription(deps).DeleteAll(context.Background())
	if res.Success || res.Kind != models.KindStore {
		t.Errorf("DeleteAll() = %+v, want store failure", res)
	}
}

func TestSafeExecute_ValidationFailure(t *testing.T) {
	deps, mem := newTestDeps(nil)

	res := SafeExecute(context.Background(), NewAccounting(deps), map[string]interface{}{"title": "Lunch", "amount": 0.0})
	if res.Success || res.Kind != models.KindValidation {
		t.Fatalf("SafeExecute() = %+v, want validation failure", res)
	}
	recs, _ := mem.Query(context.Background(), deps.Collections.Accounting, store.Query{})
	if len(recs) != 0 {
		t.Errorf("nothing should be written on validation failure, got %v", recs)
	}
}

type panicHandler struct{ *Todo }

func (p panicHandler) Execute(ctx context.Context, data map[string]interface{}) models.TaskResult {
	panic("boom")
}

func TestSafeExecute_RecoversPanic(t *testing.T) {
	deps, _ := newTestDeps(nil)
	res := SafeExecute(context.Background(), panicHandler{NewTodo(deps)}, map[string]interface{}{"title": "x"})
	if res.Success || res.Kind != models.KindInternal {
		t.Errorf("SafeExecute() = %+v, want internal failure", res)
	}
}

func TestRegistry(t *testing.T) {
	deps, _ := newTestDeps(nil)
	r := NewDefaultRegistry(deps)

	if _, ok := r.CreateTask("weather"); ok {
		t.Error("CreateTask(weather) should be unknown")
	}
	h1, ok := r.CreateTask(models.TaskTodo)
	if !ok {
		t.Fatal("CreateTask(todo) not registered")
	}
	h2, _ := r.CreateTask(models.TaskTodo)
	if h1 == h2 {
		t.Error("CreateTask should return a fresh instance")
	}
	if got := len(r.Infos()); got != 3 {
		t.Errorf("Infos() = %d entries, want 3", got)
	}
}
