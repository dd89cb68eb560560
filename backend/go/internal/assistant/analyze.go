package assistant

import (
	"Friday/backend/go/internal/models"
	"context"
	"fmt"
	"strings"
)

const queryIntentPrompt = `%s

Analyze the user's query and decide which records to look up. Reply with JSON only:
{"type": "accounting|subscription|todo", "filters": {}}

Types:
- accounting: spending, income, money
- subscription: subscriptions, memberships, renewals
- todo: tasks, to-dos, reminders

Filter keys:
- todo: "status" (pending|in_progress|done|cancelled), "priority" (high|medium|low), "category", "due_date" (YYYY-MM-DD), "due_soon" (true), "overdue" (true)
- accounting: "type" (income|expense), "category", "date", "date_from", "date_to" (YYYY-MM-DD)
- subscription: "status" (active|paused|cancelled), "category", "billing_cycle", "expiring_soon" (true)

Date rules: "today" is %s, "tomorrow" is %s. Always write absolute dates.

Examples:
- "what tasks do I have" -> {"type": "todo", "filters": {}}
- "what's due today" -> {"type": "todo", "filters": {"due_date": "%s"}}
- "most important to-dos" -> {"type": "todo", "filters": {"priority": "high"}}
- "what am I working on" -> {"type": "todo", "filters": {"status": "in_progress"}}
- "how much did I spend this month" -> {"type": "accounting", "filters": {"type": "expense", "date_from": "%s"}}
- "my subscriptions" -> {"type": "subscription", "filters": {"status": "active"}}

User message: %s`

// AnalyzeQueryIntent 分析查询的类型和过滤条件。失败时返回 error，由调用方决定默认策略。
func (p *Processor) AnalyzeQueryIntent(ctx context.Context, message string) (*models.QueryIntent, error) {
	now := p.now()
	today := now.Format("2006-01-02")
	monthStart := now.AddDate(0, 0, -now.Day()+1).Format("2006-01-02")
	prompt := fmt.Sprintf(queryIntentPrompt, timeInfo(now), today,
		now.AddDate(0, 0, 1).Format("2006-01-02"), today, monthStart, message)

	res, err := p.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	taskType, ok := parseTaskType(res.Get("type").String())
	if !ok {
		return nil, fmt.Errorf("%w: unknown query type %q", errUnparsable, res.Get("type").String())
	}
	filters, _ := res.Get("filters").Value().(map[string]interface{})
	if filters == nil {
		filters = map[string]interface{}{}
	}
	return &models.QueryIntent{TaskType: taskType, Filters: filters}, nil
}

const deleteIntentPrompt = `Analyze what the user wants to delete. Reply with JSON only:
{"type": "accounting|subscription|todo", "target": "all|specific"}

Use "all" when the user clears every record of a type, "specific" when they name particular records.

Examples:
- "clear all tasks" -> {"type": "todo", "target": "all"}
- "delete all my to-dos" -> {"type": "todo", "target": "all"}
- "wipe the expense records" -> {"type": "accounting", "target": "all"}
- "remove the Netflix subscription" -> {"type": "subscription", "target": "specific"}

User message: %s`

// AnalyzeDeleteIntent 分析删除的类型和范围。
func (p *Processor) AnalyzeDeleteIntent(ctx context.Context, message string) (*models.DeleteIntent, error) {
	res, err := p.completeJSON(ctx, fmt.Sprintf(deleteIntentPrompt, message))
	if err != nil {
		return nil, err
	}
	taskType, ok := parseTaskType(res.Get("type").String())
	if !ok {
		return nil, fmt.Errorf("%w: unknown delete type %q", errUnparsable, res.Get("type").String())
	}
	target := strings.ToLower(strings.TrimSpace(res.Get("target").String()))
	if target != "specific" {
		target = "all"
	}
	return &models.DeleteIntent{TaskType: taskType, Target: target}, nil
}

const updateIntentPrompt = `%s

Analyze which record the user wants to change and how. Reply with JSON only:
{"type": "accounting|subscription|todo", "task_name": "core name of the record", "new_status": "", "new_priority": "", "new_date": ""}

Rules:
- "is done", "finished", "completed" -> new_status "done"
- "started", "working on" -> new_status "in_progress"
- "cancel", "drop" -> new_status "cancelled"; for subscriptions "pause" -> "paused"
- "urgent", "important" -> new_priority "high"; "not urgent", "no rush" -> new_priority "low"
- "postpone to", "move to", "change the date to" -> new_date in YYYY-MM-DD ("today" is %s, "tomorrow" is %s)
- Leave fields that do not change as empty strings.
- task_name is the core name only: "the release is done" -> "release", "move the team meeting to tomorrow" -> "team meeting"

User message: %s`

// AnalyzeUpdateIntent 分析要修改的记录名称和新值。
func (p *Processor) AnalyzeUpdateIntent(ctx context.Context, message string) (*models.UpdateIntent, error) {
	now := p.now()
	prompt := fmt.Sprintf(updateIntentPrompt, timeInfo(now), now.Format("2006-01-02"),
		now.AddDate(0, 0, 1).Format("2006-01-02"), message)

	res, err := p.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	taskType, ok := parseTaskType(res.Get("type").String())
	if !ok {
		taskType = models.TaskTodo
	}
	return &models.UpdateIntent{
		TaskType:  taskType,
		TaskName:  strings.TrimSpace(res.Get("task_name").String()),
		NewStatus: strings.TrimSpace(res.Get("new_status").String()),
		Priority:  strings.TrimSpace(res.Get("new_priority").String()),
		Date:      strings.TrimSpace(res.Get("new_date").String()),
	}, nil
}

func parseTaskType(s string) (models.TaskType, bool) {
	switch t := models.TaskType(strings.ToLower(strings.TrimSpace(s))); t {
	case models.TaskAccounting, models.TaskSubscription, models.TaskTodo:
		return t, true
	}
	return models.TaskNone, false
}
