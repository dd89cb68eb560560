package scheduler

import (
	"Friday/backend/go/internal/models"
	"Friday/backend/go/internal/store"
	"Friday/backend/go/internal/tasks"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	fallbackGreeting = "Good morning! A new day has started, wishing you a smooth and happy one."
	maxOverdue       = 3
	maxToday         = 5
)

const greetingPrompt = `Write a warm good-morning greeting for the user of a personal assistant.
Today is %s.
Requirements: friendly and natural, one or two short sentences, under 30 words, plain text without quotes or emoji.`

// BuildReport 生成每日报告：问候语、昨日收支和今日待办。任何部分失败都只影响该部分的文字。
func (s *Scheduler) BuildReport(ctx context.Context, at time.Time) string {
	local := at.In(s.loc)
	today := local.Format("2006-01-02")
	yesterday := local.AddDate(0, 0, -1).Format("2006-01-02")

	parts := []string{
		s.greeting(ctx, local),
		fmt.Sprintf("Today is %s, %s.", today, local.Weekday()),
		"",
		"[Yesterday's finances]",
		s.financeSummary(ctx, yesterday),
		"",
		"[Today's to-dos]",
		s.todoSummary(ctx, today),
		"",
		"Have a productive and pleasant day!",
	}
	return strings.Join(parts, "\n")
}

func (s *Scheduler) greeting(ctx context.Context, now time.Time) string {
	if s.oracle == nil {
		return fallbackGreeting
	}
	text, err := s.oracle.Complete(ctx, fmt.Sprintf(greetingPrompt, now.Format("Monday, 2006-01-02")))
	text = strings.Trim(strings.TrimSpace(text), `"'`)
	if err != nil || text == "" {
		s.log.WithError(err).Warn("greeting generation failed, using default")
		return fallbackGreeting
	}
	return text
}

// financeSummary 汇总指定日期的收支。
func (s *Scheduler) financeSummary(ctx context.Context, date string) string {
	h, ok := s.registry.CreateTask(models.TaskAccounting)
	if !ok {
		return "Accounting is not available."
	}
	res := h.Query(ctx, map[string]interface{}{"date": date, "limit": 1000})
	if !res.Success {
		s.log.WithField("error", res.Error).Warn("load yesterday's accounting records failed")
		return "Could not load yesterday's records."
	}
	raw := res.Records("records")
	if len(raw) == 0 {
		return "No records for yesterday."
	}

	recs := make([]store.Record, len(raw))
	for i, r := range raw {
		recs[i] = store.Record(r)
	}
	sum := tasks.Summarize(recs)

	var parts []string
	if sum.Income > 0 {
		parts = append(parts, fmt.Sprintf("Income: %.2f", sum.Income))
	}
	if sum.Expense > 0 {
		parts = append(parts, fmt.Sprintf("Expense: %.2f", sum.Expense))
	}
	switch net := sum.Net(); {
	case net > 0:
		parts = append(parts, fmt.Sprintf("Net income: %.2f", net))
	case net < 0:
		parts = append(parts, fmt.Sprintf("Net spending: %.2f", -net))
	default:
		parts = append(parts, "Balanced")
	}
	parts = append(parts, fmt.Sprintf("%d record(s)", sum.Count))

	line := strings.Join(parts, " | ")
	if top := topCategories(sum.ExpenseByCategory, 3); top != "" {
		line += "\nTop spending: " + top
	}
	return line
}

func topCategories(byCat map[string]float64, n int) string {
	type kv struct {
		cat    string
		amount float64
	}
	list := make([]kv, 0, len(byCat))
	for c, a := range byCat {
		list = append(list, kv{c, a})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].amount != list[j].amount {
			return list[i].amount > list[j].amount
		}
		return list[i].cat < list[j].cat
	})
	if len(list) > n {
		list = list[:n]
	}
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = fmt.Sprintf("%s %.2f", e.cat, e.amount)
	}
	return strings.Join(out, ", ")
}

// todoSummary 列出逾期（最多 3 条）和今日（最多 5 条）的未完成待办。
func (s *Scheduler) todoSummary(ctx context.Context, today string) string {
	h, ok := s.registry.CreateTask(models.TaskTodo)
	if !ok {
		return "To-dos are not available."
	}
	todo, ok := h.(*tasks.Todo)
	if !ok {
		return "To-dos are not available."
	}
	agenda, err := todo.Agenda(ctx, today)
	if err != nil {
		s.log.WithError(err).Warn("load today's to-dos failed")
		return "Could not load today's to-dos."
	}
	if len(agenda.Today) == 0 && len(agenda.Overdue) == 0 {
		return "No records due today."
	}

	var lines []string
	if n := len(agenda.Overdue); n > 0 {
		lines = append(lines, "Overdue:")
		for _, r := range head(agenda.Overdue, maxOverdue) {
			lines = append(lines, fmt.Sprintf("- %s%s (was due %s)", r.String("title"), priorityTag(r), r.String("due_date")))
		}
		if n > maxOverdue {
			lines = append(lines, fmt.Sprintf("+%d more overdue", n-maxOverdue))
		}
		lines = append(lines, "")
	}

	if n := len(agenda.Today); n > 0 {
		items := append([]store.Record(nil), agenda.Today...)
		sort.SliceStable(items, func(i, j int) bool {
			return tasks.PriorityRank(items[i].String("priority")) > tasks.PriorityRank(items[j].String("priority"))
		})
		lines = append(lines, "Today:")
		for _, r := range head(items, maxToday) {
			line := "- " + r.String("title") + priorityTag(r)
			if r.String("status") == tasks.StatusInProgress {
				line += " [in progress]"
			}
			lines = append(lines, line)
		}
		if n > maxToday {
			lines = append(lines, fmt.Sprintf("+%d more", n-maxToday))
		}
	} else {
		lines = append(lines, "Nothing else is due today.")
	}
	return strings.Join(lines, "\n")
}

func head(recs []store.Record, n int) []store.Record {
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}

func priorityTag(r store.Record) string {
	if p := r.String("priority"); p != "" {
		return " [" + p + "]"
	}
	return ""
}
