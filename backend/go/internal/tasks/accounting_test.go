package tasks

import (
	"Friday/backend/go/internal/store"
	"context"
	"testing"
)

func TestAccountingValidate_CoercesInPlace(t *testing.T) {
	deps, _ := newTestDeps(nil)
	a := NewAccounting(deps)

	data := map[string]interface{}{"title": "Coffee", "amount": "¥18.5", "type": "gift"}
	if !a.Validate(data) {
		t.Fatal("Validate() = false, want true")
	}
	if data["amount"] != 18.5 {
		t.Errorf("amount = %v, want 18.5", data["amount"])
	}
	if data["type"] != EntryExpense {
		t.Errorf("type = %v, want expense", data["type"])
	}
}

func TestAccountingExecute_Defaults(t *testing.T) {
	deps, mem := newTestDeps(nil)
	a := NewAccounting(deps)

	res := SafeExecute(context.Background(), a, map[string]interface{}{"title": "Taxi", "amount": 42, "category": ""})
	if !res.Success {
		t.Fatalf("SafeExecute() = %+v", res)
	}
	recs, _ := mem.Query(context.Background(), deps.Collections.Accounting, store.Query{})
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	r := recs[0]
	if r.String("date") != "2026-03-10" || r.String("category") != "other" || r.String("currency") != "CNY" {
		t.Errorf("defaults not applied: %v", r)
	}
	if r.Float("amount") != 42 {
		t.Errorf("amount = %v, want 42", r["amount"])
	}
}

func TestAccountingQuery_ConjunctiveAndIgnoresUnknown(t *testing.T) {
	deps, mem := newTestDeps(nil)
	seed(t, mem, deps.Collections.Accounting,
		store.Record{"title": "Lunch", "amount": 30.0, "type": "expense", "category": "food", "date": "2026-03-09"},
		store.Record{"title": "Dinner", "amount": 80.0, "type": "expense", "category": "food", "date": "2026-03-10"},
		store.Record{"title": "Salary", "amount": 9000.0, "type": "income", "category": "work", "date": "2026-03-09"},
	)

	res := NewAccounting(deps).Query(context.Background(), map[string]interface{}{
		"category": "food",
		"date":     "2026-03-09",
		"mood":     "happy",
	})
	if !res.Success {
		t.Fatalf("Query() = %+v", res)
	}
	recs := res.Records("records")
	if len(recs) != 1 || recs[0]["title"] != "Lunch" {
		t.Errorf("Query() = %v, want only Lunch", recs)
	}
}

func TestAccountingStatistics_Month(t *testing.T) {
	deps, mem := newTestDeps(nil)
	seed(t, mem, deps.Collections.Accounting,
		store.Record{"title": "Rent", "amount": 3000.0, "type": "expense", "category": "housing", "date": "2026-03-01"},
		store.Record{"title": "Salary", "amount": 9000.0, "type": "income", "date": "2026-03-05"},
		store.Record{"title": "Old", "amount": 50.0, "type": "expense", "date": "2026-02-20"},
	)

	res := NewAccounting(deps).Statistics(context.Background(), "month")
	if !res.Success {
		t.Fatalf("Statistics() = %+v", res)
	}
	if res.Data["total_income"] != 9000.0 || res.Data["total_expense"] != 3000.0 || res.Data["net_amount"] != 6000.0 {
		t.Errorf("Statistics() data = %v", res.Data)
	}
	if res.Int("record_count") != 2 {
		t.Errorf("record_count = %d, want 2", res.Int("record_count"))
	}
}
