package models

// IntentKind 是消息被分类后的动作。
type IntentKind string

const (
	IntentChat   IntentKind = "chat"
	IntentCreate IntentKind = "create"
	IntentQuery  IntentKind = "query"
	IntentDelete IntentKind = "delete"
	IntentUpdate IntentKind = "update"
)

// TaskType 是任务处理器的类型标识，同时也是注册表的键。
type TaskType string

const (
	TaskNone         TaskType = ""
	TaskAccounting   TaskType = "accounting"
	TaskSubscription TaskType = "subscription"
	TaskTodo         TaskType = "todo"
)

// Intent 是单条消息的分类结果，不做持久化。
type Intent struct {
	Kind            IntentKind             `json:"kind"`
	TaskType        TaskType               `json:"task_type"`
	Confidence      float64                `json:"confidence"`
	ExtractedFields map[string]interface{} `json:"extracted_fields,omitempty"`
	ReplyHint       string                 `json:"reply_hint,omitempty"`
}

// QueryIntent 是查询意图分析的结果。
type QueryIntent struct {
	TaskType TaskType               `json:"type"`
	Filters  map[string]interface{} `json:"filters"`
}

// DeleteIntent 是删除意图分析的结果。Target 为 "all" 或 "specific"。
type DeleteIntent struct {
	TaskType TaskType `json:"type"`
	Target   string   `json:"target"`
}

// UpdateIntent 是更新意图分析的结果。
type UpdateIntent struct {
	TaskType  TaskType `json:"type"`
	TaskName  string   `json:"task_name"`
	NewStatus string   `json:"new_status"`
	Priority  string   `json:"priority"`
	Date      string   `json:"date"`
}
