package assistant

import (
	"Friday/backend/go/internal/config"
	"Friday/backend/go/internal/dispatcher"
	"Friday/backend/go/internal/llm"
	"Friday/backend/go/internal/models"
	"Friday/backend/go/internal/tasks"
	"Friday/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// 面向用户的回复文案。
const (
	msgProcessingFailed = "Sorry, I can't handle your message right now. Please try again later."
	msgConfused         = "I'm a little confused, could you say that again?"
	msgEmpty            = "Please send me a message."
	msgNoScheduler      = "The daily report is not available right now."
)

// Subscriptions 是每日报告的订阅管理能力，由调度器实现。
type Subscriptions interface {
	AddSubscriber(userID, platform string)
	RemoveSubscriber(userID, platform string) bool
	IsSubscribed(userID, platform string) bool
	SendManualDailyReport(ctx context.Context, platform, userID string) string
}

// Processor 是消息意图管道：分类、字段提取、路由到调度器并生成回复。
type Processor struct {
	oracle     llm.Completer
	dispatcher *dispatcher.Dispatcher
	contexts   ContextStore
	subs       Subscriptions
	policy     config.AssistantConfig
	now        func() time.Time
	log        *logger.Logger
}

// Option 配置 Processor。
type Option func(*Processor)

// WithContextStore 替换会话上下文存储，默认使用内存存储。
func WithContextStore(s ContextStore) Option {
	return func(p *Processor) { p.contexts = s }
}

// WithSubscriptions 启用每日报告相关的命令。
func WithSubscriptions(s Subscriptions) Option {
	return func(p *Processor) { p.subs = s }
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithLogger 设置日志记录器。
func WithLogger(l *logger.Logger) Option {
	return func(p *Processor) { p.log = l }
}

// NewProcessor 创建意图管道。policy 中未设置的值使用默认策略。
func NewProcessor(oracle llm.Completer, d *dispatcher.Dispatcher, policy config.AssistantConfig, opts ...Option) *Processor {
	def := config.Default().Assistant
	if policy.ConfidenceThreshold <= 0 {
		policy.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if policy.ReplyTruncation <= 0 {
		policy.ReplyTruncation = def.ReplyTruncation
	}
	if policy.HistoryCap <= 0 {
		policy.HistoryCap = def.HistoryCap
	}

	p := &Processor{
		oracle:     oracle,
		dispatcher: d,
		policy:     policy,
		now:        time.Now,
		log:        logger.New("assistant"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.contexts == nil {
		p.contexts = NewMemoryContextStore(policy.HistoryCap, time.Duration(policy.ContextTTLHours)*time.Hour)
	}
	return p
}

// ProcessMessage 处理一条用户消息并返回回复文本。
// 任何失败都会被吸收到回复内容中，返回值永远不为空，也不会 panic。
func (p *Processor) ProcessMessage(ctx context.Context, message, userID, platform string) (reply string) {
	log := p.log.WithUser(platform, userID)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("message processing panicked")
			reply = msgProcessingFailed
		}
		if strings.TrimSpace(reply) == "" {
			reply = msgConfused
		}
	}()

	message = strings.TrimSpace(message)
	if message == "" {
		return msgEmpty
	}
	log.WithField("message", truncateRunes(message, 100)).Info("processing message")

	if strings.HasPrefix(message, "/") {
		return p.handleCommand(ctx, message, userID, platform)
	}

	history, err := p.contexts.Recent(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("load conversation context failed")
	}

	intent := p.Classify(ctx, message)
	log.WithPayload(map[string]interface{}{
		"kind":       intent.Kind,
		"task_type":  intent.TaskType,
		"confidence": intent.Confidence,
	}).Info("message classified")

	entryType := string(intent.TaskType)
	if entryType == "" {
		entryType = string(intent.Kind)
	}
	if err := p.contexts.Append(ctx, userID, ContextEntry{Message: message, TaskType: entryType, Timestamp: p.now()}); err != nil {
		log.WithError(err).Warn("save conversation context failed")
	}

	switch intent.Kind {
	case models.IntentCreate:
		return p.handleCreate(ctx, intent.TaskType, message, userID)
	case models.IntentQuery:
		return p.handleQuery(ctx, message, userID)
	case models.IntentDelete:
		return p.handleDelete(ctx, message, userID)
	case models.IntentUpdate:
		return p.handleUpdate(ctx, message, userID)
	default:
		return p.handleChat(ctx, message, Summarize(history), intent)
	}
}

const chatPrompt = `You are Friday, a friendly personal assistant that keeps track of expenses, subscriptions and to-dos.
Reply briefly and naturally in plain text.

%s
User: %s`

func (p *Processor) handleChat(ctx context.Context, message, history string, intent models.Intent) string {
	if hint := p.dailyReportHint(message); hint != "" {
		return hint
	}
	if p.oracle == nil {
		return intent.ReplyHint
	}
	text, err := p.oracle.Complete(ctx, fmt.Sprintf(chatPrompt, history, message))
	if err != nil || strings.TrimSpace(text) == "" {
		p.log.WithError(err).Warn("chat reply failed")
		if intent.ReplyHint != "" {
			return intent.ReplyHint
		}
		return msgConfused
	}
	return strings.TrimSpace(text)
}

// dailyReportHint 在聊天中提到每日报告时给出对应命令。
func (p *Processor) dailyReportHint(message string) string {
	if p.subs == nil {
		return ""
	}
	lower := strings.ToLower(message)
	if !strings.Contains(lower, "daily report") && !strings.Contains(lower, "daily push") {
		return ""
	}
	switch {
	case strings.Contains(lower, "unsubscribe") || strings.Contains(lower, "stop") || strings.Contains(lower, "turn off"):
		return "To stop the daily report, send /unsubscribe_daily"
	case strings.Contains(lower, "subscribe") || strings.Contains(lower, "turn on") || strings.Contains(lower, "enable"):
		return "To receive the daily report, send /subscribe_daily"
	case strings.Contains(lower, "now") || strings.Contains(lower, "send"):
		return "To get today's report right away, send /daily_report"
	}
	return ""
}

func (p *Processor) handleCreate(ctx context.Context, taskType models.TaskType, message, userID string) string {
	data := p.ExtractFields(ctx, taskType, message)
	result := p.dispatcher.ExecuteTask(ctx, taskType, data, userID)
	if !result.Success {
		return result.Message
	}
	return p.smartReply(ctx, message, result)
}

func (p *Processor) handleQuery(ctx context.Context, message, userID string) string {
	qi, err := p.AnalyzeQueryIntent(ctx, message)
	if err != nil {
		// 分析失败时查询待完成的待办，而不是无过滤地返回全部记录。
		p.log.WithError(err).WithField("reason", failureReason(err)).Warn("query intent analysis failed, using default todo query")
		qi = &models.QueryIntent{
			TaskType: models.TaskTodo,
			Filters:  map[string]interface{}{"status": tasks.StatusPending},
		}
	}

	result := p.dispatcher.QueryData(ctx, qi.TaskType, qi.Filters, userID)
	if !result.Success {
		return "Query failed: " + result.Message
	}
	return p.RenderQueryReply(ctx, qi.TaskType, result.Records("records"))
}

func (p *Processor) handleDelete(ctx context.Context, message, userID string) string {
	di, err := p.AnalyzeDeleteIntent(ctx, message)
	if err != nil {
		p.log.WithError(err).WithField("reason", failureReason(err)).Warn("delete intent analysis failed")
		return "Sorry, I couldn't tell what you want to delete. Please say which records to clear, for example \"clear all to-dos\"."
	}
	label := taskLabel(di.TaskType)
	if di.Target == "specific" {
		return fmt.Sprintf("I can only clear all %s records at once for now. Say \"clear all %s records\" if that's what you want.", label, label)
	}

	result := p.dispatcher.DeleteAllData(ctx, di.TaskType, userID)
	if !result.Success {
		return "Delete failed: " + result.Message
	}
	return result.Message + "."
}

func (p *Processor) handleUpdate(ctx context.Context, message, userID string) string {
	ui, err := p.AnalyzeUpdateIntent(ctx, message)
	if err != nil {
		p.log.WithError(err).WithField("reason", failureReason(err)).Warn("update intent analysis failed")
		return "Sorry, I couldn't tell what you want to change. Please name the item and the new value."
	}
	if ui.TaskName == "" {
		return "Please tell me which item you want to update."
	}

	// 成功时消息包含记录名称和修改内容；有歧义时消息列出全部候选。
	result := p.dispatcher.UpdateTaskStatus(ctx, ui.TaskType, ui.TaskName, ui.NewStatus, ui.Priority, ui.Date, userID)
	return result.Message
}

func failureReason(err error) string {
	if errors.Is(err, errUnparsable) {
		return "unparsable"
	}
	return "oracle_error"
}

// ClearConversationContext 清除用户的会话上下文。
func (p *Processor) ClearConversationContext(ctx context.Context, userID string) error {
	if err := p.contexts.Clear(ctx, userID); err != nil {
		return err
	}
	p.log.WithField("user_id", userID).Info("conversation context cleared")
	return nil
}

// GetTaskSuggestions 根据今天的待办、即将续费的订阅和用户最近常用的类型给出提示。
func (p *Processor) GetTaskSuggestions(ctx context.Context, userID string) []string {
	suggestions := []string{}
	registry := p.dispatcher.Registry()

	if h, ok := registry.CreateTask(models.TaskTodo); ok {
		if todo, ok := h.(*tasks.Todo); ok {
			agenda, err := todo.Agenda(ctx, p.now().Format("2006-01-02"))
			if err != nil {
				p.log.WithError(err).Warn("load agenda for suggestions failed")
			} else {
				if n := len(agenda.Today); n > 0 {
					suggestions = append(suggestions, fmt.Sprintf("You have %d to-do(s) for today", n))
				}
				if n := len(agenda.Overdue); n > 0 {
					suggestions = append(suggestions, fmt.Sprintf("You have %d overdue to-do(s)", n))
				}
			}
		}
	}

	if h, ok := registry.CreateTask(models.TaskSubscription); ok {
		if sub, ok := h.(*tasks.Subscription); ok {
			if res := sub.UpcomingRenewals(ctx, 7); res.Success && res.Int("count") > 0 {
				suggestions = append(suggestions, fmt.Sprintf("%d subscription(s) renew within 7 days", res.Int("count")))
			}
		}
	}

	if top := mostUsedType(p.recentContext(ctx, userID)); top != "" {
		suggestions = append(suggestions, fmt.Sprintf("You often work with %s records; try asking \"show my %s records\"", top, top))
	}
	return suggestions
}

// GetUserStats 汇总本月收支、订阅月费、今日待办、会话上下文和执行统计。
func (p *Processor) GetUserStats(ctx context.Context, userID string) map[string]interface{} {
	stats := map[string]interface{}{}
	registry := p.dispatcher.Registry()

	if h, ok := registry.CreateTask(models.TaskAccounting); ok {
		if acc, ok := h.(*tasks.Accounting); ok {
			if res := acc.Statistics(ctx, "month"); res.Success {
				stats["accounting"] = res.Data
			}
		}
	}
	if h, ok := registry.CreateTask(models.TaskSubscription); ok {
		if sub, ok := h.(*tasks.Subscription); ok {
			if res := sub.MonthlyCost(ctx); res.Success {
				stats["subscription"] = res.Data
			}
		}
	}
	if h, ok := registry.CreateTask(models.TaskTodo); ok {
		if todo, ok := h.(*tasks.Todo); ok {
			if agenda, err := todo.Agenda(ctx, p.now().Format("2006-01-02")); err == nil {
				stats["todo"] = map[string]interface{}{
					"today_count":   len(agenda.Today),
					"overdue_count": len(agenda.Overdue),
				}
			}
		}
	}

	entries := p.recentContext(ctx, userID)
	stats["context"] = map[string]interface{}{
		"message_count":  len(entries),
		"most_used_type": mostUsedType(entries),
	}
	stats["executions"] = p.dispatcher.GetTaskStatistics(userID)
	return stats
}

// recentContext 读取会话上下文，读取失败时记录日志并按空上下文处理。
func (p *Processor) recentContext(ctx context.Context, userID string) []ContextEntry {
	entries, err := p.contexts.Recent(ctx, userID)
	if err != nil {
		p.log.WithField("user_id", userID).WithError(err).Warn("load conversation context failed")
		return nil
	}
	return entries
}

// mostUsedType 返回上下文中出现最多的任务类型，只统计记账、订阅和待办。
func mostUsedType(entries []ContextEntry) string {
	if len(entries) == 0 {
		return ""
	}
	counts := map[string]int{}
	for _, e := range entries {
		if _, ok := parseTaskType(e.TaskType); ok {
			counts[e.TaskType]++
		}
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	if len(types) == 0 {
		return ""
	}
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return types[i] < types[j]
	})
	return types[0]
}
