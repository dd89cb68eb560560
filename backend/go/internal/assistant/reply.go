package assistant

import (
	"Friday/backend/go/internal/models"
	"Friday/backend/go/internal/store"
	"Friday/backend/go/internal/tasks"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// taskLabel 返回面向用户的类型名称。
func taskLabel(t models.TaskType) string {
	switch t {
	case models.TaskAccounting:
		return "accounting"
	case models.TaskSubscription:
		return "subscription"
	case models.TaskTodo:
		return "to-do"
	}
	return string(t)
}

// SortForDisplay 按展示顺序排序。
// 待办：状态（进行中 > 待办 > 已完成 > 已取消）、优先级（高 > 中 > 低）、截止日期，均为降序，没有截止日期的排在最前。
// 其他类型：按日期（没有则按创建时间）降序。
func SortForDisplay(taskType models.TaskType, recs []map[string]interface{}) {
	str := func(r map[string]interface{}, k string) string {
		s, _ := r[k].(string)
		return s
	}
	if taskType == models.TaskTodo {
		due := func(r map[string]interface{}) string {
			if d := str(r, "due_date"); d != "" {
				return d
			}
			return "9999-12-31"
		}
		sort.SliceStable(recs, func(i, j int) bool {
			a, b := recs[i], recs[j]
			if ra, rb := tasks.StatusRank(str(a, "status")), tasks.StatusRank(str(b, "status")); ra != rb {
				return ra > rb
			}
			if pa, pb := tasks.PriorityRank(str(a, "priority")), tasks.PriorityRank(str(b, "priority")); pa != pb {
				return pa > pb
			}
			return due(a) > due(b)
		})
		return
	}
	key := func(r map[string]interface{}) string {
		for _, k := range []string{"date", "next_billing_date", store.FieldCreated} {
			if v := str(r, k); v != "" {
				return v
			}
		}
		return ""
	}
	sort.SliceStable(recs, func(i, j int) bool { return key(recs[i]) > key(recs[j]) })
}

// Truncate 返回前 limit 条以及被隐藏的条数。
func Truncate(recs []map[string]interface{}, limit int) ([]map[string]interface{}, int) {
	if limit <= 0 || len(recs) <= limit {
		return recs, 0
	}
	return recs[:limit], len(recs) - limit
}

const queryReplyPrompt = `Write a clear plain-text reply listing the user's %s records below.

Records (JSON):
%s

Total records: %d
Shown records: %d

Formatting rules (the chat client does not render Markdown):
1. No Markdown, no bold or italics, no emoji.
2. Group to-dos by status in this order: [In progress], [Pending], [Done], [Cancelled].
3. For each item give the title, priority, due date, description (if any), category, link as <URL|link>, created time and last edited time.
4. Keep the order of the records within each group.
%s`

// RenderQueryReply 对查询结果排序、截断，并请模型生成回复；模型失败时使用本地格式化。
func (p *Processor) RenderQueryReply(ctx context.Context, taskType models.TaskType, records []map[string]interface{}) string {
	label := taskLabel(taskType)
	if len(records) == 0 {
		return fmt.Sprintf("No %s records found.", label)
	}

	sorted := append([]map[string]interface{}(nil), records...)
	SortForDisplay(taskType, sorted)
	shown, hidden := Truncate(sorted, p.policy.ReplyTruncation)
	moreLine := ""
	if hidden > 0 {
		moreLine = fmt.Sprintf("%d more not shown.", hidden)
	}

	if p.oracle != nil {
		payload, err := json.MarshalIndent(shown, "", "  ")
		if err == nil {
			extra := ""
			if moreLine != "" {
				extra = "End the reply with the line: " + moreLine
			}
			text, err := p.oracle.Complete(ctx, fmt.Sprintf(queryReplyPrompt, label, payload, len(records), len(shown), extra))
			if err == nil && strings.TrimSpace(text) != "" {
				text = strings.TrimSpace(text)
				if hidden > 0 && !strings.Contains(text, fmt.Sprintf("%d more", hidden)) {
					text += "\n\n" + moreLine
				}
				return text
			}
			p.log.WithError(err).Warn("query reply generation failed, using local formatter")
		}
	}
	return FormatRecords(taskType, shown, len(records))
}

var statusGroups = []struct {
	status string
	title  string
}{
	{tasks.StatusInProgress, "[In progress]"},
	{tasks.StatusPending, "[Pending]"},
	{tasks.StatusDone, "[Done]"},
	{tasks.StatusCancelled, "[Cancelled]"},
}

// FormatRecords 是不依赖模型的纯文本格式化，shown 应已按 SortForDisplay 排好序。
func FormatRecords(taskType models.TaskType, shown []map[string]interface{}, total int) string {
	label := taskLabel(taskType)
	if len(shown) == 0 {
		return fmt.Sprintf("No %s records found.", label)
	}

	lines := []string{fmt.Sprintf("Here are your %s records:", label)}
	str := func(r map[string]interface{}, k string) string {
		if v, ok := r[k]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return ""
	}

	if taskType == models.TaskTodo {
		groups := map[string][]map[string]interface{}{}
		for _, r := range shown {
			st := tasks.NormalizeTodoStatus(str(r, "status"))
			if st == "" {
				st = "other"
			}
			groups[st] = append(groups[st], r)
		}
		emit := func(title string, items []map[string]interface{}) {
			lines = append(lines, "", title)
			for _, r := range items {
				lines = append(lines, "   - "+str(r, "title"))
				if v := str(r, "priority"); v != "" {
					lines = append(lines, "     Priority: "+v)
				}
				if v := str(r, "due_date"); v != "" {
					lines = append(lines, "     Due: "+v)
				}
				if v := str(r, "description"); v != "" {
					lines = append(lines, "     Description: "+v)
				}
				if v := str(r, "category"); v != "" && v != "other" {
					lines = append(lines, "     Category: "+v)
				}
				if v := str(r, store.FieldURL); v != "" {
					lines = append(lines, fmt.Sprintf("     Link: <%s|link>", v))
				}
				if v := str(r, store.FieldCreated); v != "" {
					lines = append(lines, "     Created: "+v)
				}
				if v := str(r, store.FieldEdited); v != "" {
					lines = append(lines, "     Last edited: "+v)
				}
			}
		}
		for _, g := range statusGroups {
			if items, ok := groups[g.status]; ok {
				emit(g.title, items)
			}
		}
		if items, ok := groups["other"]; ok {
			emit("[Other]", items)
		}
	} else {
		for i, r := range shown {
			title := str(r, "title")
			if title == "" {
				title = str(r, "name")
			}
			line := fmt.Sprintf("%d. %s", i+1, title)
			if v := str(r, "amount"); v != "" {
				line += fmt.Sprintf(" | %s %s", str(r, "type"), v)
			}
			if v := str(r, "price"); v != "" {
				line += fmt.Sprintf(" | %s per %s", v, str(r, "billing_cycle"))
			}
			for _, k := range []string{"date", "next_billing_date"} {
				if v := str(r, k); v != "" {
					line += " | " + v
				}
			}
			lines = append(lines, line)
		}
	}

	lines = append(lines, "", fmt.Sprintf("Total: %d, shown: %d", total, len(shown)))
	if total > len(shown) {
		lines = append(lines, fmt.Sprintf("%d more not shown.", total-len(shown)))
	} else {
		lines = append(lines, fmt.Sprintf("That's all of your %s records.", label))
	}
	return strings.Join(lines, "\n")
}

const smartReplyPrompt = `The user sent: "%s"

The task result was:
%s

Write a short, friendly reply confirming what was done and mentioning any important details. Plain text only.`

// smartReply 让模型根据执行结果生成确认回复，失败时直接使用结果中的消息。
func (p *Processor) smartReply(ctx context.Context, message string, result models.TaskResult) string {
	fallback := "Done! " + result.Message
	if p.oracle == nil {
		return fallback
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fallback
	}
	text, err := p.oracle.Complete(ctx, fmt.Sprintf(smartReplyPrompt, message, payload))
	if err != nil || strings.TrimSpace(text) == "" {
		p.log.WithError(err).Warn("smart reply failed, using task message")
		return fallback
	}
	return strings.TrimSpace(text)
}
