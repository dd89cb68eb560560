package tasks

import (
	"Friday/backend/go/internal/store"
	"context"
	"math"
	"testing"
	"time"
)

func TestNextBillingDate(t *testing.T) {
	jan31 := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		cycle string
		from  time.Time
		want  string
	}{
		{"week", jan31, "2026-02-07"},
		{"month", jan31, "2026-02-28"},
		{"monthly", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), "2026-04-15"},
		{"year", time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), "2029-02-28"},
		{"", jan31, "2026-03-02"},
	}
	for _, tc := range cases {
		if got := NextBillingDate(tc.from, tc.cycle).Format(dateLayout); got != tc.want {
			t.Errorf("NextBillingDate(%s, %q) = %s, want %s", tc.from.Format(dateLayout), tc.cycle, got, tc.want)
		}
	}
}

func TestSubscriptionExecute_ComputesNextBilling(t *testing.T) {
	deps, mem := newTestDeps(nil)

	res := SafeExecute(context.Background(), NewSubscription(deps), map[string]interface{}{
		"name": "Netflix", "price": "15", "billing_cycle": "monthly",
	})
	if !res.Success {
		t.Fatalf("SafeExecute() = %+v", res)
	}
	recs, _ := mem.Query(context.Background(), deps.Collections.Subscription, store.Query{})
	if recs[0].String("next_billing_date") != "2026-04-10" || recs[0].String("status") != SubscriptionActive {
		t.Errorf("record = %v", recs[0])
	}
}

func TestSubscriptionMonthlyCost(t *testing.T) {
	deps, mem := newTestDeps(nil)
	seed(t, mem, deps.Collections.Subscription,
		store.Record{"name": "Gym", "price": 10.0, "billing_cycle": "week", "status": "active"},
		store.Record{"name": "Domain", "price": 120.0, "billing_cycle": "year", "status": "active"},
		store.Record{"name": "Music", "price": 5.0, "billing_cycle": "month", "status": "active"},
		store.Record{"name": "Old", "price": 99.0, "billing_cycle": "month", "status": "cancelled"},
	)

	res := NewSubscription(deps).MonthlyCost(context.Background())
	if !res.Success {
		t.Fatalf("MonthlyCost() = %+v", res)
	}
	got := res.Data["monthly_cost"].(float64)
	if math.Abs(got-58.3) > 0.001 {
		t.Errorf("monthly_cost = %v, want 58.3", got)
	}
}

func TestSubscriptionUpcomingRenewals(t *testing.T) {
	deps, mem := newTestDeps(nil)
	seed(t, mem, deps.Collections.Subscription,
		store.Record{"name": "Soon", "status": "active", "next_billing_date": "2026-03-12"},
		store.Record{"name": "Later", "status": "active", "next_billing_date": "2026-05-01"},
		store.Record{"name": "Paused", "status": "paused", "next_billing_date": "2026-03-11"},
	)

	res := NewSubscription(deps).UpcomingRenewals(context.Background(), 7)
	recs := res.Records("records")
	if len(recs) != 1 || recs[0]["name"] != "Soon" {
		t.Errorf("UpcomingRenewals() = %v, want only Soon", recs)
	}
}
