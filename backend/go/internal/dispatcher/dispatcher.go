package dispatcher

import (
	"Friday/backend/go/internal/models"
	"Friday/backend/go/internal/tasks"
	"Friday/backend/go/pkg/logger"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	msgUnsupported = "Sorry, that task type is not supported."
	msgInternal    = "Something went wrong while handling the task, please try again later."
)

// Sink 接收已完成的执行记录，例如发布到消息队列。
type Sink interface {
	PublishExecution(ctx context.Context, rec models.ExecutionRecord) error
}

// TaskRequest 是批量执行中的一项。
type TaskRequest struct {
	Type models.TaskType        `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Dispatcher 负责执行任务处理器的生命周期，并维护进程内的执行历史。
// 所有公开方法都不会 panic，失败统一以 TaskResult 返回。
type Dispatcher struct {
	registry *tasks.Registry
	log      *logger.Logger
	now      func() time.Time
	sink     Sink

	mu      sync.RWMutex
	history map[string]*models.ExecutionRecord
}

// Option 配置 Dispatcher。
type Option func(*Dispatcher)

// WithSink 设置执行记录的下游。
func WithSink(s Sink) Option {
	return func(d *Dispatcher) { d.sink = s }
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithLogger 设置日志记录器。
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// New 创建 Dispatcher。
func New(registry *tasks.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		log:      logger.New("dispatcher"),
		now:      time.Now,
		history:  make(map[string]*models.ExecutionRecord),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry 返回调度器使用的注册表。
func (d *Dispatcher) Registry() *tasks.Registry {
	return d.registry
}

// ExecuteTask 解析处理器，记录执行历史，执行 Validate → FormatData → Execute 并记录结果。
func (d *Dispatcher) ExecuteTask(ctx context.Context, taskType models.TaskType, data map[string]interface{}, userID string) (result models.TaskResult) {
	h, ok := d.createTask(taskType)
	if !ok {
		d.log.WithField("task_type", taskType).Warn("unsupported task type")
		return models.Failed(models.KindUnknownTaskType, msgUnsupported, fmt.Sprintf("unsupported task type: %s", taskType))
	}

	id := d.begin(taskType, "execute", data, userID)
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("execution_id", id).Error(fmt.Sprintf("panic during execution: %v", r))
			result = models.Failed(models.KindInternal, msgInternal, fmt.Sprintf("panic: %v", r))
		}
		d.finish(ctx, id, result)
	}()

	result = tasks.SafeExecute(ctx, h, data)
	return result
}

// QueryData 查询指定类型的记录。
func (d *Dispatcher) QueryData(ctx context.Context, taskType models.TaskType, filters map[string]interface{}, userID string) models.TaskResult {
	return d.guard(taskType, "query", userID, func(h tasks.Handler) models.TaskResult {
		return h.Query(ctx, filters)
	})
}

// DeleteAllData 删除指定类型的全部记录。
func (d *Dispatcher) DeleteAllData(ctx context.Context, taskType models.TaskType, userID string) models.TaskResult {
	return d.guard(taskType, "delete_all", userID, func(h tasks.Handler) models.TaskResult {
		return h.DeleteAll(ctx)
	})
}

// UpdateTaskStatus 按名称模糊定位记录并更新状态、优先级或日期。
func (d *Dispatcher) UpdateTaskStatus(ctx context.Context, taskType models.TaskType, name, status, priority, date, userID string) models.TaskResult {
	return d.guard(taskType, "update", userID, func(h tasks.Handler) models.TaskResult {
		return h.UpdateByName(ctx, name, status, priority, date)
	})
}

// BatchExecuteTasks 并发执行多个任务，结果顺序与输入一致；单个任务失败不会中断整批。
func (d *Dispatcher) BatchExecuteTasks(ctx context.Context, reqs []TaskRequest, userID string) []models.TaskResult {
	results := make([]models.TaskResult, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req TaskRequest) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = models.Failed(models.KindInternal, msgInternal, fmt.Sprintf("panic: %v", r))
				}
			}()
			results[i] = d.ExecuteTask(ctx, req.Type, req.Data, userID)
		}(i, req)
	}
	wg.Wait()
	return results
}

// ValidationReport 是 ValidateTaskData 的结果。
type ValidationReport struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing_fields,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ValidateTaskData 在不写入存储的情况下检查数据是否能通过处理器校验。
func (d *Dispatcher) ValidateTaskData(taskType models.TaskType, data map[string]interface{}) (report ValidationReport) {
	h, ok := d.createTask(taskType)
	if !ok {
		return ValidationReport{Error: fmt.Sprintf("unsupported task type: %s", taskType)}
	}
	defer func() {
		if r := recover(); r != nil {
			report = ValidationReport{Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	input := make(map[string]interface{}, len(data))
	for k, v := range data {
		input[k] = v
	}
	report.Missing = tasks.MissingFields(h.Info(), input)
	report.Valid = h.Validate(input)
	return report
}

// GetAvailableTasks 返回所有已注册任务类型的描述。
func (d *Dispatcher) GetAvailableTasks() []tasks.Info {
	return d.registry.Infos()
}

func (d *Dispatcher) createTask(taskType models.TaskType) (h tasks.Handler, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("task_type", taskType).Error(fmt.Sprintf("handler constructor panicked: %v", r))
			h, ok = nil, false
		}
	}()
	return d.registry.CreateTask(taskType)
}

func (d *Dispatcher) guard(taskType models.TaskType, op, userID string, fn func(h tasks.Handler) models.TaskResult) (result models.TaskResult) {
	h, ok := d.createTask(taskType)
	if !ok {
		return models.Failed(models.KindUnknownTaskType, msgUnsupported, fmt.Sprintf("unsupported task type: %s", taskType))
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.WithPayload(map[string]interface{}{
				"task_type": taskType,
				"operation": op,
				"user_id":   userID,
			}).Error(fmt.Sprintf("panic during %s: %v", op, r))
			result = models.Failed(models.KindInternal, msgInternal, fmt.Sprintf("panic: %v", r))
		}
	}()
	return fn(h)
}

func (d *Dispatcher) begin(taskType models.TaskType, op string, data map[string]interface{}, userID string) string {
	now := d.now()
	id := fmt.Sprintf("%s_%s_%d_%s", userID, taskType, now.UnixNano(), uuid.NewString()[:8])

	input := make(map[string]interface{}, len(data))
	for k, v := range data {
		input[k] = v
	}

	d.mu.Lock()
	d.history[id] = &models.ExecutionRecord{
		ExecutionID: id,
		TaskType:    taskType,
		Operation:   op,
		UserID:      userID,
		InputData:   input,
		StartTime:   now,
		Status:      models.ExecutionRunning,
	}
	d.mu.Unlock()
	return id
}

func (d *Dispatcher) finish(ctx context.Context, id string, result models.TaskResult) {
	end := d.now()
	success := result.Success

	d.mu.Lock()
	rec, ok := d.history[id]
	if !ok {
		// 已被 CleanupOldHistory 清理。
		d.mu.Unlock()
		return
	}
	rec.EndTime = &end
	rec.Status = models.ExecutionCompleted
	rec.Success = &success
	rec.ResultData = result.Data
	rec.Message = result.Message
	rec.Error = result.Error
	snapshot := *rec
	d.mu.Unlock()

	d.log.WithPayload(map[string]interface{}{
		"execution_id": id,
		"task_type":    snapshot.TaskType,
		"success":      success,
		"duration_ms":  end.Sub(snapshot.StartTime).Milliseconds(),
	}).Info("task execution completed")

	if d.sink != nil {
		if err := d.sink.PublishExecution(ctx, snapshot); err != nil {
			d.log.WithError(err).WithField("execution_id", id).Warn("publish execution record failed")
		}
	}
}
