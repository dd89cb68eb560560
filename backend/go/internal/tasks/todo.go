package tasks

import (
	"Friday/backend/go/internal/models"
	"Friday/backend/go/internal/store"
	"context"
	"fmt"
	"strings"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// StatusRank 用于排序：进行中 > 待办 > 已完成 > 已取消。
func StatusRank(status string) int {
	switch NormalizeTodoStatus(status) {
	case StatusInProgress:
		return 3
	case StatusPending:
		return 2
	case StatusDone:
		return 1
	}
	return 0
}

// PriorityRank 用于排序：高 > 中 > 低。
func PriorityRank(priority string) int {
	switch NormalizePriority(priority) {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Todo 管理待办事项。
type Todo struct {
	base
}

// NewTodo 创建待办处理器。
func NewTodo(deps Deps) *Todo {
	deps = deps.withDefaults()
	return &Todo{base: newBase(deps, deps.Collections.Todo, "title", "to-do")}
}

func (t *Todo) Info() Info {
	return Info{
		Type:        models.TaskTodo,
		Name:        "To-do",
		Description: "Create and manage to-do items",
		Required:    []string{"title"},
		Optional:    []string{"priority", "due_date", "category", "description"},
	}
}

// Validate 要求标题非空、截止日期格式正确；优先级不合法时改为 medium。
func (t *Todo) Validate(data map[string]interface{}) bool {
	if asString(data["title"]) == "" {
		t.log.Warn("todo validation: empty title")
		return false
	}
	if raw := data["due_date"]; !isEmpty(raw) {
		d, ok := normalizeDate(raw)
		if !ok {
			t.log.WithField("due_date", raw).Warn("todo validation: bad due date format")
			return false
		}
		data["due_date"] = d
	}
	if p := NormalizePriority(asString(data["priority"])); p != "" {
		data["priority"] = p
	} else {
		data["priority"] = PriorityMedium
	}
	return true
}

func (t *Todo) FormatData(data map[string]interface{}) map[string]interface{} {
	out := stripEmpty(data)
	if p := NormalizePriority(asString(out["priority"])); p != "" {
		out["priority"] = p
	} else {
		out["priority"] = PriorityMedium
	}
	if isEmpty(out["category"]) {
		out["category"] = "other"
	}
	if d, ok := normalizeDate(out["due_date"]); ok {
		out["due_date"] = d
	} else {
		delete(out, "due_date")
	}
	out["status"] = StatusPending
	return out
}

func (t *Todo) Execute(ctx context.Context, data map[string]interface{}) models.TaskResult {
	attrs := store.Record{
		"title":       asString(data["title"]),
		"priority":    asString(data["priority"]),
		"category":    asString(data["category"]),
		"status":      StatusPending,
		"description": asString(data["description"]),
	}
	if due := asString(data["due_date"]); due != "" {
		attrs["due_date"] = due
	}
	id, failed, ok := t.create(ctx, attrs)
	if !ok {
		return failed
	}

	msg := fmt.Sprintf("Added to-do \"%s\" (%s priority)", attrs["title"], attrs["priority"])
	if due, ok := attrs["due_date"]; ok {
		msg += fmt.Sprintf(", due %s", due)
	}
	return models.Succeeded(msg, map[string]interface{}{
		"id":       id,
		"title":    attrs["title"],
		"priority": attrs["priority"],
		"due_date": attrs["due_date"],
	})
}

// Query 支持 status、priority、category、due_date、due_soon、overdue、limit。
func (t *Todo) Query(ctx context.Context, filters map[string]interface{}) models.TaskResult {
	var preds []*store.Filter
	limit := t.deps.QueryLimit
	for key, raw := range filters {
		switch key {
		case "status":
			if s := NormalizeTodoStatus(asString(raw)); s != "" {
				preds = append(preds, store.Eq("status", s))
			}
		case "priority":
			if p := NormalizePriority(asString(raw)); p != "" {
				preds = append(preds, store.Eq("priority", p))
			}
		case "category":
			if v := asString(raw); v != "" {
				preds = append(preds, store.Eq("category", v))
			}
		case "due_date":
			if d, ok := normalizeDate(raw); ok {
				preds = append(preds, store.Eq("due_date", d))
			}
		case "due_soon":
			if asBool(raw) {
				preds = append(preds,
					store.OnOrBefore("due_date", t.dayOffset(1)),
					store.NotEq("status", StatusDone))
			}
		case "overdue":
			if asBool(raw) {
				preds = append(preds,
					store.Before("due_date", t.today()),
					store.NotEq("status", StatusDone))
			}
		case "limit":
			if n, ok := asFloat(raw); ok && n > 0 {
				limit = int(n)
			}
		}
	}
	return t.find(ctx, store.And(preds...), []store.Sort{{Property: "due_date"}}, limit)
}

func (t *Todo) DeleteAll(ctx context.Context) models.TaskResult {
	return t.deleteAll(ctx)
}

// UpdateByName 可以修改状态、优先级和截止日期。
func (t *Todo) UpdateByName(ctx context.Context, name, status, priority, date string) models.TaskResult {
	changes := store.Record{}
	if s := NormalizeTodoStatus(status); s != "" {
		changes["status"] = s
	}
	if p := NormalizePriority(priority); p != "" {
		changes["priority"] = p
	}
	if d, ok := normalizeDate(date); ok {
		changes["due_date"] = d
	}
	return t.updateByName(ctx, name, changes)
}

// Agenda 是某一天的待办概览。
type Agenda struct {
	Today   []store.Record
	Overdue []store.Record
}

// Agenda 返回未完成的待办：today 为当天到期或没有截止日期的，overdue 为已过期的。
func (t *Todo) Agenda(ctx context.Context, today string) (Agenda, error) {
	recs, err := t.deps.Store.Query(ctx, t.collection, store.Query{
		Filter: store.And(store.NotEq("status", StatusDone), store.NotEq("status", StatusCancelled)),
		Sorts:  []store.Sort{{Property: "due_date"}},
	})
	if err != nil {
		return Agenda{}, fmt.Errorf("query agenda: %w", err)
	}

	var a Agenda
	for _, r := range recs {
		due := r.String("due_date")
		switch {
		case due == "" || due == today:
			a.Today = append(a.Today, r)
		case due < today:
			a.Overdue = append(a.Overdue, r)
		}
	}
	return a, nil
}

// NormalizeTodoStatus 把常见说法映射到状态枚举，无法识别时返回空字符串。
func NormalizeTodoStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "todo", "to do", "open", "not started":
		return StatusPending
	case "in_progress", "in progress", "in-progress", "doing", "started", "ongoing":
		return StatusInProgress
	case "done", "completed", "complete", "finished":
		return StatusDone
	case "cancelled", "canceled", "cancel", "dropped":
		return StatusCancelled
	}
	return ""
}

// NormalizePriority 把常见说法映射到优先级枚举，无法识别时返回空字符串。
func NormalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high", "urgent", "important":
		return PriorityHigh
	case "medium", "normal", "mid":
		return PriorityMedium
	case "low", "whenever":
		return PriorityLow
	}
	return ""
}
