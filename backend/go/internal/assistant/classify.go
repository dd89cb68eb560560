package assistant

import (
	"Friday/backend/go/internal/llm"
	"Friday/backend/go/internal/models"
	"Friday/backend/go/internal/tasks"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// errUnparsable 表示模型有回复，但其中没有可解析的 JSON。
var errUnparsable = errors.New("oracle response has no JSON object")

const msgFallbackHint = "Sorry, I didn't quite catch that. Could you say it another way?"

const classifyPrompt = `You are a personal assistant that helps the user manage records.

%s

Classify the user's message into exactly one of these task types:
1. accounting - the user wants to record income or an expense ("lunch 25", "got paid 5000 salary")
2. subscription - the user wants to record or manage a recurring subscription ("Netflix 15 per month")
3. todo - the user wants to create a to-do item ("remind me to call mom tomorrow", "need to prepare the slides")
4. query - the user asks about existing records ("what do I have today", "show my subscriptions", "how much did I spend this month")
5. delete - the user wants to clear records ("clear all tasks", "delete all expenses", "reset my subscriptions")
6. update - the user changes an existing record ("the release is done", "move the meeting to tomorrow", "the report is urgent")
7. chat - anything else, plain conversation

Phrases like "X is done", "finished X", "postpone X to ..." and "X is urgent" are updates, not new to-dos.
Resolve relative dates against the current date above ("today" = %s, "tomorrow" = %s).

Reply with JSON only:
{"task_type": "<one of the types above>", "confidence": <0.0-1.0>, "extracted_data": {}, "response_text": "<short reply to the user>"}

User message: %s`

// timeInfo 生成提示词中使用的当前时间信息，相对日期都以它为准。
func timeInfo(now time.Time) string {
	return fmt.Sprintf("Current date: %s\nCurrent time: %s\nWeekday: %s\nTomorrow: %s",
		now.Format("2006-01-02"), now.Format("15:04"), now.Weekday(), now.AddDate(0, 0, 1).Format("2006-01-02"))
}

// Classify 判断消息的意图。模型不可用或回复无法解析时退回到聊天，不会返回错误。
// 置信度低于阈值时一律视为聊天，但保留模型给出的类型供上下文记录使用。
func (p *Processor) Classify(ctx context.Context, message string) models.Intent {
	now := p.now()
	prompt := fmt.Sprintf(classifyPrompt, timeInfo(now),
		now.Format("2006-01-02"), now.AddDate(0, 0, 1).Format("2006-01-02"), message)

	res, err := p.completeJSON(ctx, prompt)
	if err != nil {
		intent := models.Intent{Kind: models.IntentChat, Confidence: 0.5, ReplyHint: msgFallbackHint}
		if errors.Is(err, errUnparsable) {
			intent.Confidence = 0.8
		}
		p.log.WithError(err).WithField("kind", models.KindClassification).Warn("classification fell back to chat")
		return intent
	}

	intent := models.Intent{
		Confidence: res.Get("confidence").Float(),
		ReplyHint:  res.Get("response_text").String(),
	}
	if data, ok := res.Get("extracted_data").Value().(map[string]interface{}); ok {
		intent.ExtractedFields = data
	}

	switch t := strings.ToLower(strings.TrimSpace(res.Get("task_type").String())); t {
	case string(models.TaskAccounting), string(models.TaskSubscription), string(models.TaskTodo):
		intent.Kind = models.IntentCreate
		intent.TaskType = models.TaskType(t)
	case string(models.IntentQuery), string(models.IntentDelete), string(models.IntentUpdate):
		intent.Kind = models.IntentKind(t)
	default:
		intent.Kind = models.IntentChat
	}

	if intent.Kind != models.IntentChat && intent.Confidence < p.policy.ConfidenceThreshold {
		p.log.WithPayload(map[string]interface{}{
			"kind":       intent.Kind,
			"task_type":  intent.TaskType,
			"confidence": intent.Confidence,
		}).Info("low confidence, handling as chat")
		intent.Kind = models.IntentChat
	}
	return intent
}

const extractPrompt = `%s

Extract the fields of a new %s record from the user's message. Reply with JSON only, using exactly these fields:
%s

Rules:
%s
If a value is missing, infer a sensible default from common sense.

User message: %s`

// fieldRules 是每种任务类型的字段说明和默认值推断规则。
var fieldRules = map[models.TaskType]struct {
	schema string
	rules  string
}{
	models.TaskAccounting: {
		schema: `{"title": "short description", "amount": <number>, "type": "expense|income", "category": "food|transport|shopping|entertainment|housing|salary|other", "date": "YYYY-MM-DD", "description": "original details"}`,
		rules: `- amount is a plain number without currency symbols
- salary, refund, bonus and "got paid" are income; everything else is an expense
- no date means today (%s), "yesterday" means %s`,
	},
	models.TaskSubscription: {
		schema: `{"name": "service name", "price": <number>, "billing_cycle": "week|month|year", "category": "entertainment|productivity|cloud|education|other", "next_billing_date": "YYYY-MM-DD", "description": "details"}`,
		rules: `- "monthly", "per month" mean month; "annual", "per year" mean year
- no billing cycle means month
- no next billing date means today (%s); "tomorrow" means %s`,
	},
	models.TaskTodo: {
		schema: `{"title": "short task title", "priority": "high|medium|low", "category": "work|life|study|health|other", "description": "details", "due_date": "YYYY-MM-DD"}`,
		rules: `- "important", "urgent", "must" mean high; "whenever", "no rush", "not urgent" mean low; otherwise medium
- no due date means today (%s); "tomorrow" means %s; "this afternoon" or "tonight" mean today`,
	},
}

// ExtractFields 让模型按任务类型提取字段，并保证返回的 map 中每个字段都有值。
// 模型失败时只使用默认值。
func (p *Processor) ExtractFields(ctx context.Context, taskType models.TaskType, message string) map[string]interface{} {
	now := p.now()
	today := now.Format("2006-01-02")
	rule, ok := fieldRules[taskType]
	if !ok {
		return map[string]interface{}{}
	}

	var res gjson.Result
	var err error
	if p.oracle != nil {
		var rel string
		if taskType == models.TaskAccounting {
			rel = now.AddDate(0, 0, -1).Format("2006-01-02")
		} else {
			rel = now.AddDate(0, 0, 1).Format("2006-01-02")
		}
		prompt := fmt.Sprintf(extractPrompt, timeInfo(now), taskType, rule.schema,
			fmt.Sprintf(rule.rules, today, rel), message)
		res, err = p.completeJSON(ctx, prompt)
	} else {
		err = errors.New("no oracle configured")
	}
	if err != nil {
		p.log.WithError(err).WithPayload(map[string]interface{}{
			"kind":      models.KindExtraction,
			"task_type": taskType,
		}).Warn("field extraction failed, using defaults")
	}

	get := func(field string) interface{} {
		if err != nil {
			return nil
		}
		v := res.Get(field)
		if !v.Exists() || v.Type == gjson.Null {
			return nil
		}
		if v.Type == gjson.String && strings.TrimSpace(v.Str) == "" {
			return nil
		}
		return v.Value()
	}
	or := func(v interface{}, def interface{}) interface{} {
		if v == nil {
			return def
		}
		return v
	}

	switch taskType {
	case models.TaskAccounting:
		return map[string]interface{}{
			"title":       or(get("title"), "Unknown expense"),
			"amount":      or(get("amount"), 0.0),
			"type":        or(get("type"), tasks.EntryExpense),
			"category":    or(get("category"), "other"),
			"date":        or(get("date"), today),
			"description": or(get("description"), message),
		}
	case models.TaskSubscription:
		return map[string]interface{}{
			"name":              or(get("name"), "Unknown subscription"),
			"price":             or(get("price"), 0.0),
			"billing_cycle":     or(get("billing_cycle"), tasks.CycleMonth),
			"category":          or(get("category"), "other"),
			"next_billing_date": or(get("next_billing_date"), today),
			"description":       or(get("description"), message),
		}
	default:
		priority := tasks.NormalizePriority(fmt.Sprint(or(get("priority"), "")))
		if priority == "" {
			priority = inferPriority(message)
		}
		return map[string]interface{}{
			"title":       or(get("title"), "Unknown task"),
			"priority":    priority,
			"category":    or(get("category"), "other"),
			"description": or(get("description"), message),
			"due_date":    or(get("due_date"), today),
		}
	}
}

// inferPriority 根据关键词推断优先级。先检查低优先级，"not urgent" 不能被当成 urgent。
func inferPriority(message string) string {
	lower := strings.ToLower(message)
	for _, kw := range []string{"whenever", "no rush", "not urgent", "low priority", "someday"} {
		if strings.Contains(lower, kw) {
			return tasks.PriorityLow
		}
	}
	for _, kw := range []string{"important", "urgent", "asap", "must", "high priority"} {
		if strings.Contains(lower, kw) {
			return tasks.PriorityHigh
		}
	}
	return tasks.PriorityMedium
}

// completeJSON 调用模型并取回复中第一个 '{' 到最后一个 '}' 之间的 JSON。
func (p *Processor) completeJSON(ctx context.Context, prompt string) (gjson.Result, error) {
	if p.oracle == nil {
		return gjson.Result{}, errors.New("no oracle configured")
	}
	text, err := p.oracle.Complete(ctx, prompt)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("oracle call failed: %w", err)
	}
	res, ok := llm.JSONIsland(text)
	if !ok {
		p.log.WithField("response", truncateRunes(text, 200)).Debug("unparsable oracle response")
		return gjson.Result{}, errUnparsable
	}
	return res, nil
}
