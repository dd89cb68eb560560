package tasks

import (
	"Friday/backend/go/internal/models"
	"Friday/backend/go/internal/store"
	"context"
	"fmt"
	"time"
)

const (
	EntryIncome  = "income"
	EntryExpense = "expense"
)

// Accounting 记录收入和支出。
type Accounting struct {
	base
}

// NewAccounting 创建记账处理器。
func NewAccounting(deps Deps) *Accounting {
	deps = deps.withDefaults()
	return &Accounting{base: newBase(deps, deps.Collections.Accounting, "title", "accounting")}
}

func (a *Accounting) Info() Info {
	return Info{
		Type:        models.TaskAccounting,
		Name:        "Accounting",
		Description: "Record income and expenses",
		Required:    []string{"title", "amount"},
		Optional:    []string{"category", "type", "date", "description"},
	}
}

// Validate 要求标题非空且金额为正数；type 不合法时改为 expense。
func (a *Accounting) Validate(data map[string]interface{}) bool {
	if asString(data["title"]) == "" {
		a.log.Warn("accounting validation: empty title")
		return false
	}
	amount, ok := asFloat(data["amount"])
	if !ok || amount <= 0 {
		a.log.WithField("amount", data["amount"]).Warn("accounting validation: amount must be positive")
		return false
	}
	data["amount"] = amount
	if t := asString(data["type"]); !oneOf(t, EntryIncome, EntryExpense) {
		data["type"] = EntryExpense
	}
	return true
}

func (a *Accounting) FormatData(data map[string]interface{}) map[string]interface{} {
	out := stripEmpty(data)
	if amount, ok := asFloat(out["amount"]); ok {
		out["amount"] = amount
	} else {
		out["amount"] = 0.0
	}
	if t := asString(out["type"]); !oneOf(t, EntryIncome, EntryExpense) {
		out["type"] = EntryExpense
	}
	if isEmpty(out["category"]) {
		out["category"] = "other"
	}
	if d, ok := normalizeDate(out["date"]); ok {
		out["date"] = d
	} else {
		out["date"] = a.today()
	}
	if isEmpty(out["currency"]) {
		out["currency"] = a.deps.Currency
	}
	return out
}

func (a *Accounting) Execute(ctx context.Context, data map[string]interface{}) models.TaskResult {
	attrs := store.Record{
		"title":       asString(data["title"]),
		"amount":      data["amount"],
		"type":        asString(data["type"]),
		"category":    asString(data["category"]),
		"date":        asString(data["date"]),
		"description": asString(data["description"]),
		"currency":    asString(data["currency"]),
	}
	id, failed, ok := a.create(ctx, attrs)
	if !ok {
		return failed
	}
	amount, _ := asFloat(attrs["amount"])
	return models.Succeeded(
		fmt.Sprintf("Recorded %s \"%s\": %.2f %s", attrs["type"], attrs["title"], amount, attrs["currency"]),
		map[string]interface{}{
			"id":       id,
			"title":    attrs["title"],
			"amount":   amount,
			"type":     attrs["type"],
			"category": attrs["category"],
			"date":     attrs["date"],
		})
}

// Query 支持 type、category、date（精确日期）、date_from、date_to、limit。
func (a *Accounting) Query(ctx context.Context, filters map[string]interface{}) models.TaskResult {
	var preds []*store.Filter
	limit := a.deps.QueryLimit
	for key, raw := range filters {
		v := asString(raw)
		if v == "" {
			continue
		}
		switch key {
		case "type", "category":
			preds = append(preds, store.Eq(key, v))
		case "date":
			if d, ok := normalizeDate(v); ok {
				preds = append(preds, store.Eq("date", d))
			}
		case "date_from":
			if d, ok := normalizeDate(v); ok {
				preds = append(preds, store.OnOrAfter("date", d))
			}
		case "date_to":
			if d, ok := normalizeDate(v); ok {
				preds = append(preds, store.OnOrBefore("date", d))
			}
		case "limit":
			if n, ok := asFloat(raw); ok && n > 0 {
				limit = int(n)
			}
		}
	}
	return a.find(ctx, store.And(preds...), []store.Sort{{Property: "date", Descending: true}}, limit)
}

func (a *Accounting) DeleteAll(ctx context.Context) models.TaskResult {
	return a.deleteAll(ctx)
}

// UpdateByName 只能修改记账日期。
func (a *Accounting) UpdateByName(ctx context.Context, name, status, priority, date string) models.TaskResult {
	changes := store.Record{}
	if d, ok := normalizeDate(date); ok {
		changes["date"] = d
	}
	return a.updateByName(ctx, name, changes)
}

// Statistics 汇总指定周期（month、year、all）的收支。
func (a *Accounting) Statistics(ctx context.Context, period string) models.TaskResult {
	now := a.deps.Now()
	var from string
	switch period {
	case "year":
		from = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()).Format(dateLayout)
	case "all":
	default:
		period = "month"
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(dateLayout)
	}

	var filter *store.Filter
	if from != "" {
		filter = store.OnOrAfter("date", from)
	}
	recs, err := a.deps.Store.Query(ctx, a.collection, store.Query{Filter: filter})
	if err != nil {
		a.log.WithError(err).Error("query accounting statistics failed")
		return models.Failed(models.KindStore, msgRetryLater, err.Error())
	}

	s := Summarize(recs)
	return models.Succeeded(
		fmt.Sprintf("This %s: income %.2f, expense %.2f, net %.2f", period, s.Income, s.Expense, s.Net()),
		map[string]interface{}{
			"period":        period,
			"total_income":  s.Income,
			"total_expense": s.Expense,
			"net_amount":    s.Net(),
			"record_count":  s.Count,
			"categories":    s.ExpenseByCategory,
		})
}

// LedgerSummary 是一组记账记录的汇总。
type LedgerSummary struct {
	Income            float64
	Expense           float64
	Count             int
	ExpenseByCategory map[string]float64
}

func (s LedgerSummary) Net() float64 {
	return s.Income - s.Expense
}

// Summarize 汇总收入、支出和按分类的支出。
func Summarize(recs []store.Record) LedgerSummary {
	s := LedgerSummary{ExpenseByCategory: map[string]float64{}}
	for _, r := range recs {
		amount := r.Float("amount")
		s.Count++
		if r.String("type") == EntryIncome {
			s.Income += amount
			continue
		}
		s.Expense += amount
		cat := r.String("category")
		if cat == "" {
			cat = "other"
		}
		s.ExpenseByCategory[cat] += amount
	}
	return s
}
