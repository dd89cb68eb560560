package models

import "time"

// ExecutionStatus 定义了一次任务执行的状态。
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
)

// ExecutionRecord 是调度器对一次任务执行的记录。
// 创建时状态为 running，完成时只修改一次。
type ExecutionRecord struct {
	ExecutionID string                 `json:"execution_id" bson:"_id"`
	TaskType    TaskType               `json:"task_type" bson:"task_type"`
	Operation   string                 `json:"operation" bson:"operation"`
	UserID      string                 `json:"user_id" bson:"user_id"`
	InputData   map[string]interface{} `json:"input_data,omitempty" bson:"input_data"`
	StartTime   time.Time              `json:"start_time" bson:"start_time"`
	EndTime     *time.Time             `json:"end_time,omitempty" bson:"end_time"`
	Status      ExecutionStatus        `json:"status" bson:"status"`
	Success     *bool                  `json:"success,omitempty" bson:"success"`
	ResultData  map[string]interface{} `json:"result_data,omitempty" bson:"result_data"`
	Message     string                 `json:"message,omitempty" bson:"message"`
	Error       string                 `json:"error,omitempty" bson:"error"`
}
