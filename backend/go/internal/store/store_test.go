package store

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestFilterMatch_DateComparisons(t *testing.T) {
	rec := Record{"due_date": "2026-03-10", "status": "pending"}

	cases := []struct {
		name string
		f    *Filter
		want bool
	}{
		{"before", Before("due_date", "2026-03-11"), true},
		{"before same day", Before("due_date", "2026-03-10"), false},
		{"on or before same day", OnOrBefore("due_date", "2026-03-10"), true},
		{"after", After("due_date", "2026-03-09"), true},
		{"on or after", OnOrAfter("due_date", "2026-03-11"), false},
		{"equals", Eq("status", "pending"), true},
		{"not equals", NotEq("status", "done"), true},
		{"and", And(Eq("status", "pending"), Before("due_date", "2026-03-01")), false},
		{"missing date never matches", Before("created_at", "2030-01-01"), false},
	}
	for _, tc := range cases {
		if got := tc.f.Match(rec); got != tc.want {
			t.Errorf("%s: Match() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFilterMatch_RFC3339AgainstDate(t *testing.T) {
	rec := Record{"created_time": "2026-03-10T08:15:00Z"}
	if !Eq("created_time", "2026-03-10").Match(rec) {
		t.Error("timestamp should equal its calendar date")
	}
}

func TestAndCollapses(t *testing.T) {
	if And() != nil {
		t.Error("And() with no filters should be nil")
	}
	f := Eq("a", 1)
	if And(nil, f) != f {
		t.Error("And() with one filter should return it")
	}
}

func TestMemoryStore_QuerySortLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("https://records.example/")

	for _, d := range []string{"2026-01-02", "2026-01-05", "2026-01-01"} {
		if _, err := s.Create(ctx, "todos", Record{"title": "t" + d, "due_date": d}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	recs, err := s.Query(ctx, "todos", Query{Sorts: []Sort{{Property: "due_date"}}, Limit: 2})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Query() returned %d records, want 2", len(recs))
	}
	if recs[0].String("due_date") != "2026-01-01" || recs[1].String("due_date") != "2026-01-02" {
		t.Errorf("unexpected order: %v, %v", recs[0]["due_date"], recs[1]["due_date"])
	}
	if recs[0].ID() == "" || recs[0].String(FieldURL) != "https://records.example/"+recs[0].ID() {
		t.Errorf("system fields not populated: %v", recs[0])
	}
}

func TestMemoryStore_ArchiveHidesRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")
	id, _ := s.Create(ctx, "todos", Record{"title": "a"})

	if err := s.Archive(ctx, "todos", id); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	recs, _ := s.Query(ctx, "todos", Query{})
	if len(recs) != 0 {
		t.Errorf("archived record still visible: %v", recs)
	}
	if err := s.Update(ctx, "todos", id, Record{"title": "b"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() on archived record error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_FailArchive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")
	id, _ := s.Create(ctx, "todos", Record{"title": "a"})
	boom := errors.New("boom")
	s.FailArchive(id, boom)

	if err := s.Archive(ctx, "todos", id); !errors.Is(err, boom) {
		t.Errorf("Archive() error = %v, want %v", err, boom)
	}
}

func TestToBSON(t *testing.T) {
	got := ToBSON(And(Eq("id", "x"), OnOrBefore("due_date", "2026-01-01")))
	parts, ok := got["$and"].(bson.A)
	if !ok || len(parts) != 2 {
		t.Fatalf("ToBSON() = %v, want $and with 2 parts", got)
	}
	if parts[0].(bson.M)["_id"] != "x" {
		t.Errorf("id should map to _id: %v", parts[0])
	}
	lte := parts[1].(bson.M)["due_date"].(bson.M)["$lte"]
	if lte != "2026-01-01" {
		t.Errorf("on_or_before should map to $lte: %v", parts[1])
	}
}

func TestSortBSON(t *testing.T) {
	d := SortBSON([]Sort{{Property: "date", Descending: true}, {Property: "title"}})
	if len(d) != 2 || d[0].Key != "date" || d[0].Value != -1 || d[1].Value != 1 {
		t.Errorf("SortBSON() = %v", d)
	}
}
