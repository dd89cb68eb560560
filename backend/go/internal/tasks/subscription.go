package tasks

import (
	"Friday/backend/go/internal/models"
	"Friday/backend/go/internal/store"
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	CycleWeek  = "week"
	CycleMonth = "month"
	CycleYear  = "year"

	SubscriptionActive    = "active"
	SubscriptionPaused    = "paused"
	SubscriptionCancelled = "cancelled"
)

// Subscription 管理周期性订阅。
type Subscription struct {
	base
}

// NewSubscription 创建订阅处理器。
func NewSubscription(deps Deps) *Subscription {
	deps = deps.withDefaults()
	return &Subscription{base: newBase(deps, deps.Collections.Subscription, "name", "subscription")}
}

func (s *Subscription) Info() Info {
	return Info{
		Type:        models.TaskSubscription,
		Name:        "Subscription",
		Description: "Track recurring subscriptions and their renewal dates",
		Required:    []string{"name", "price"},
		Optional:    []string{"billing_cycle", "category", "next_billing_date", "description"},
	}
}

// Validate 要求名称非空且价格不为负；计费周期不合法时改为 month。
func (s *Subscription) Validate(data map[string]interface{}) bool {
	if asString(data["name"]) == "" {
		s.log.Warn("subscription validation: empty name")
		return false
	}
	price, ok := asFloat(data["price"])
	if !ok || price < 0 {
		s.log.WithField("price", data["price"]).Warn("subscription validation: invalid price")
		return false
	}
	data["price"] = price
	if c := normalizeCycle(asString(data["billing_cycle"])); c != "" {
		data["billing_cycle"] = c
	} else {
		data["billing_cycle"] = CycleMonth
	}
	return true
}

func (s *Subscription) FormatData(data map[string]interface{}) map[string]interface{} {
	out := stripEmpty(data)
	if price, ok := asFloat(out["price"]); ok {
		out["price"] = price
	} else {
		out["price"] = 0.0
	}
	cycle := normalizeCycle(asString(out["billing_cycle"]))
	if cycle == "" {
		cycle = CycleMonth
	}
	out["billing_cycle"] = cycle
	if isEmpty(out["category"]) {
		out["category"] = "other"
	}
	if d, ok := normalizeDate(out["next_billing_date"]); ok {
		out["next_billing_date"] = d
	} else {
		out["next_billing_date"] = NextBillingDate(s.deps.Now(), cycle).Format(dateLayout)
	}
	if isEmpty(out["currency"]) {
		out["currency"] = s.deps.Currency
	}
	out["status"] = SubscriptionActive
	return out
}

func (s *Subscription) Execute(ctx context.Context, data map[string]interface{}) models.TaskResult {
	attrs := store.Record{
		"name":              asString(data["name"]),
		"price":             data["price"],
		"billing_cycle":     asString(data["billing_cycle"]),
		"category":          asString(data["category"]),
		"next_billing_date": asString(data["next_billing_date"]),
		"status":            SubscriptionActive,
		"description":       asString(data["description"]),
		"currency":          asString(data["currency"]),
	}
	id, failed, ok := s.create(ctx, attrs)
	if !ok {
		return failed
	}
	price, _ := asFloat(attrs["price"])
	return models.Succeeded(
		fmt.Sprintf("Added subscription \"%s\": %.2f %s per %s, next billing on %s",
			attrs["name"], price, attrs["currency"], attrs["billing_cycle"], attrs["next_billing_date"]),
		map[string]interface{}{
			"id":                id,
			"name":              attrs["name"],
			"price":             price,
			"billing_cycle":     attrs["billing_cycle"],
			"next_billing_date": attrs["next_billing_date"],
		})
}

// Query 支持 status、category、billing_cycle、expiring_soon（7 天内续费的有效订阅）、limit。
func (s *Subscription) Query(ctx context.Context, filters map[string]interface{}) models.TaskResult {
	var preds []*store.Filter
	limit := s.deps.QueryLimit
	for key, raw := range filters {
		switch key {
		case "status", "category":
			if v := asString(raw); v != "" {
				preds = append(preds, store.Eq(key, v))
			}
		case "billing_cycle":
			if c := normalizeCycle(asString(raw)); c != "" {
				preds = append(preds, store.Eq(key, c))
			}
		case "expiring_soon":
			if asBool(raw) {
				preds = append(preds,
					store.OnOrBefore("next_billing_date", s.dayOffset(7)),
					store.Eq("status", SubscriptionActive))
			}
		case "limit":
			if n, ok := asFloat(raw); ok && n > 0 {
				limit = int(n)
			}
		}
	}
	return s.find(ctx, store.And(preds...), []store.Sort{{Property: "next_billing_date"}}, limit)
}

func (s *Subscription) DeleteAll(ctx context.Context) models.TaskResult {
	return s.deleteAll(ctx)
}

// UpdateByName 可以修改状态和下次计费日期。
func (s *Subscription) UpdateByName(ctx context.Context, name, status, priority, date string) models.TaskResult {
	changes := store.Record{}
	if st := normalizeSubscriptionStatus(status); st != "" {
		changes["status"] = st
	}
	if d, ok := normalizeDate(date); ok {
		changes["next_billing_date"] = d
	}
	return s.updateByName(ctx, name, changes)
}

// UpcomingRenewals 返回 days 天内需要续费的有效订阅。
func (s *Subscription) UpcomingRenewals(ctx context.Context, days int) models.TaskResult {
	if days <= 0 {
		days = 7
	}
	res := s.find(ctx, store.And(
		store.Eq("status", SubscriptionActive),
		store.OnOrBefore("next_billing_date", s.dayOffset(days)),
	), []store.Sort{{Property: "next_billing_date"}}, 0)
	if res.Success {
		res.Message = fmt.Sprintf("%d subscription(s) renew within %d days", res.Int("count"), days)
		res.Data["days"] = days
	}
	return res
}

// MonthlyCost 把有效订阅折算为每月费用：按周 ×4.33，按年 ÷12。
func (s *Subscription) MonthlyCost(ctx context.Context) models.TaskResult {
	recs, err := s.deps.Store.Query(ctx, s.collection, store.Query{Filter: store.Eq("status", SubscriptionActive)})
	if err != nil {
		s.log.WithError(err).Error("query monthly cost failed")
		return models.Failed(models.KindStore, msgRetryLater, err.Error())
	}

	total := 0.0
	breakdown := make([]map[string]interface{}, 0, len(recs))
	for _, r := range recs {
		monthly := MonthlyEquivalent(r.Float("price"), r.String("billing_cycle"))
		total += monthly
		breakdown = append(breakdown, map[string]interface{}{
			"name":    r.String("name"),
			"cycle":   r.String("billing_cycle"),
			"monthly": monthly,
		})
	}
	total = math.Round(total*100) / 100
	return models.Succeeded(fmt.Sprintf("Active subscriptions cost about %.2f per month", total), map[string]interface{}{
		"monthly_cost": total,
		"count":        len(recs),
		"breakdown":    breakdown,
	})
}

// MonthlyEquivalent 把单个价格折算为月费用。
func MonthlyEquivalent(price float64, cycle string) float64 {
	switch normalizeCycle(cycle) {
	case CycleWeek:
		return price * 4.33
	case CycleYear:
		return price / 12
	}
	return price
}

// NextBillingDate 从 from 开始推算下一个计费日。月末日期会落在目标月的最后一天。
func NextBillingDate(from time.Time, cycle string) time.Time {
	switch normalizeCycle(cycle) {
	case CycleWeek:
		return from.AddDate(0, 0, 7)
	case CycleYear:
		return addMonthsClamped(from, 12)
	case CycleMonth:
		return addMonthsClamped(from, 1)
	}
	return from.AddDate(0, 0, 30)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)
	lastDay := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func normalizeCycle(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "week", "weekly", "w":
		return CycleWeek
	case "month", "monthly", "m":
		return CycleMonth
	case "year", "yearly", "annual", "annually", "y":
		return CycleYear
	}
	return ""
}

func normalizeSubscriptionStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "resume", "resumed":
		return SubscriptionActive
	case "paused", "pause":
		return SubscriptionPaused
	case "cancelled", "canceled", "cancel", "stopped":
		return SubscriptionCancelled
	}
	return ""
}
