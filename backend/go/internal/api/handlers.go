package api

import (
	"Friday/backend/go/internal/assistant"
	"Friday/backend/go/internal/dispatcher"
	"Friday/backend/go/internal/models"
	"Friday/backend/go/pkg/logger"
	"Friday/backend/go/pkg/ratelimiter"
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultPlatform = "api"

// HealthCheck 检查一个外部依赖是否可用。
type HealthCheck func(ctx context.Context) error

// API provides handlers for the assistant service.
type API struct {
	processor  *assistant.Processor
	dispatcher *dispatcher.Dispatcher
	subs       assistant.Subscriptions
	limiter    *ratelimiter.Keyed
	jwtSecret  string
	checks     map[string]HealthCheck
	logger     *logger.Logger
}

// Option 配置 API。
type Option func(*API)

// WithSubscriptions 启用每日报告相关的路由。
func WithSubscriptions(s assistant.Subscriptions) Option {
	return func(a *API) { a.subs = s }
}

// WithRateLimiter 为 /messages 设置按用户的限流器。
func WithRateLimiter(l *ratelimiter.Keyed) Option {
	return func(a *API) { a.limiter = l }
}

// WithAuth 要求 /api/v1 下的请求携带 HS256 签名的 Bearer token，token 的 sub 即用户 id。
func WithAuth(jwtSecret string) Option {
	return func(a *API) { a.jwtSecret = jwtSecret }
}

// WithHealthCheck 在 /health 中加入一个依赖检查。
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(a *API) { a.checks[name] = check }
}

// NewAPI creates a new API handler.
func NewAPI(p *assistant.Processor, d *dispatcher.Dispatcher, log *logger.Logger, opts ...Option) *API {
	a := &API{
		processor:  p,
		dispatcher: d,
		checks:     make(map[string]HealthCheck),
		logger:     log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type messageRequest struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	Platform string `json:"platform"`
}

// ProcessMessageHandler 处理一条用户消息并返回回复文本。
func (a *API) ProcessMessageHandler(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.logger.WithError(err).Warn("Invalid message payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.UserID = userFor(c, req.UserID); req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if req.Platform == "" {
		req.Platform = defaultPlatform
	}

	reply := a.processor.ProcessMessage(c.Request.Context(), req.Message, req.UserID, req.Platform)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

type subscriptionRequest struct {
	UserID   string `json:"user_id"`
	Platform string `json:"platform"`
}

func (a *API) requireSubs(c *gin.Context) bool {
	if a.subs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Daily reports are not enabled"})
		return false
	}
	return true
}

// SubscribeHandler 订阅每日报告。
func (a *API) SubscribeHandler(c *gin.Context) {
	if !a.requireSubs(c) {
		return
	}
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.UserID = userFor(c, req.UserID); req.UserID == "" || req.Platform == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and platform are required"})
		return
	}
	a.subs.AddSubscriber(req.UserID, req.Platform)
	c.JSON(http.StatusCreated, gin.H{"subscribed": true})
}

// UnsubscribeHandler 取消订阅。之前未订阅时返回 404。
func (a *API) UnsubscribeHandler(c *gin.Context) {
	if !a.requireSubs(c) {
		return
	}
	if !a.subs.RemoveSubscriber(c.Param("user"), c.Param("platform")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": false})
}

// SubscriptionStatusHandler 查询订阅状态。
func (a *API) SubscriptionStatusHandler(c *gin.Context) {
	if !a.requireSubs(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": a.subs.IsSubscribed(c.Param("user"), c.Param("platform"))})
}

// ManualReportHandler 立即生成每日报告并返回，不会发送到平台。
func (a *API) ManualReportHandler(c *gin.Context) {
	if !a.requireSubs(c) {
		return
	}
	report := a.subs.SendManualDailyReport(c.Request.Context(), c.Param("platform"), c.Param("user"))
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// AvailableTasksHandler 列出已注册的任务类型。
func (a *API) AvailableTasksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": a.dispatcher.GetAvailableTasks()})
}

// ValidateTaskHandler 检查任务数据是否缺少必填字段，不会写入任何记录。
func (a *API) ValidateTaskHandler(c *gin.Context) {
	var data map[string]interface{}
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	c.JSON(http.StatusOK, a.dispatcher.ValidateTaskData(models.TaskType(c.Param("type")), data))
}

type executeRequest struct {
	UserID string                 `json:"user_id"`
	Data   map[string]interface{} `json:"data"`
}

// ExecuteTaskHandler 直接创建一条记录，跳过意图识别。
func (a *API) ExecuteTaskHandler(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.UserID = userFor(c, req.UserID); req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if req.Data == nil {
		req.Data = map[string]interface{}{}
	}
	result := a.dispatcher.ExecuteTask(c.Request.Context(), models.TaskType(c.Param("type")), req.Data, req.UserID)
	c.JSON(statusFor(result), result)
}

type batchRequest struct {
	UserID string                   `json:"user_id"`
	Tasks  []dispatcher.TaskRequest `json:"tasks" binding:"required"`
}

// BatchExecuteHandler 批量执行任务，结果顺序与请求一致，单个失败不影响其他任务。
func (a *API) BatchExecuteHandler(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.UserID = userFor(c, req.UserID); req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	results := a.dispatcher.BatchExecuteTasks(c.Request.Context(), req.Tasks, req.UserID)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// HistoryHandler 返回用户最近的执行记录，新的在前。
func (a *API) HistoryHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	history := a.dispatcher.GetUserTaskHistory(c.Param("user"), limit)
	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

// CleanupHistoryHandler 删除超过 days 天的执行记录。
func (a *API) CleanupHistoryHandler(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a non-negative integer"})
		return
	}
	removed := a.dispatcher.CleanupOldHistory(days)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// ExecutionStatusHandler 按 id 查询一次执行。
func (a *API) ExecutionStatusHandler(c *gin.Context) {
	rec, ok := a.dispatcher.GetExecutionStatus(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Execution not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// StatisticsHandler 返回执行统计，user 为空时统计所有用户。
func (a *API) StatisticsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.dispatcher.GetTaskStatistics(userFor(c, c.Query("user"))))
}

// SuggestionsHandler 返回给用户的任务建议。
func (a *API) SuggestionsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suggestions": a.processor.GetTaskSuggestions(c.Request.Context(), c.Param("user"))})
}

// UserStatsHandler 返回用户的记录和会话概况。
func (a *API) UserStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.processor.GetUserStats(c.Request.Context(), c.Param("user")))
}

// ClearContextHandler 清空用户的会话上下文。
func (a *API) ClearContextHandler(c *gin.Context) {
	if err := a.processor.ClearConversationContext(c.Request.Context(), c.Param("user")); err != nil {
		a.logger.WithError(err).Error("Failed to clear conversation context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear conversation context"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// HealthHandler 逐个执行依赖检查，任一失败时返回 503。
func (a *API) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(a.checks))
	for name := range a.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	components := gin.H{}
	for _, name := range names {
		if err := a.checks[name](ctx); err != nil {
			a.logger.WithError(err).WithField("check", name).Warn("Health check failed")
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "components": components})
}

func statusFor(result models.TaskResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Kind {
	case models.KindUnknownTaskType, models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindAmbiguousTarget:
		return http.StatusConflict
	case models.KindStore:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
