package models

import "time"

// ErrorKind 是处理层对外暴露的错误分类。
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindClassification  ErrorKind = "classification_failure"
	KindExtraction      ErrorKind = "extraction_failure"
	KindUnknownTaskType ErrorKind = "unknown_task_type"
	KindValidation      ErrorKind = "validation_failure"
	KindStore           ErrorKind = "store_failure"
	KindAmbiguousTarget ErrorKind = "ambiguous_target"
	KindNotFound        ErrorKind = "not_found"
	KindInternal        ErrorKind = "internal_error"
)

// TaskResult 是所有任务操作的统一返回值。
// Success=false 是处理层唯一的失败信号，处理层不会向外返回 error。
type TaskResult struct {
	Success   bool                   `json:"success"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Message   string                 `json:"message"`
	Error     string                 `json:"error,omitempty"`
	Kind      ErrorKind              `json:"kind,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Succeeded 构造一个成功结果。
func Succeeded(message string, data map[string]interface{}) TaskResult {
	if data == nil {
		data = map[string]interface{}{}
	}
	return TaskResult{Success: true, Data: data, Message: message, Timestamp: time.Now()}
}

// Failed 构造一个失败结果。
func Failed(kind ErrorKind, message, errText string) TaskResult {
	return TaskResult{
		Success:   false,
		Data:      map[string]interface{}{},
		Message:   message,
		Error:     errText,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// Int 读取 Data 中的整数字段，不存在时返回 0。
func (r TaskResult) Int(key string) int {
	switch v := r.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Records 读取 Data 中的记录列表。
func (r TaskResult) Records(key string) []map[string]interface{} {
	if recs, ok := r.Data[key].([]map[string]interface{}); ok {
		return recs
	}
	return nil
}
