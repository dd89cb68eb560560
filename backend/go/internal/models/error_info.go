package models

// ErrorInfo 是写入日志的错误结构。
type ErrorInfo struct {
	Message string    `json:"message"`
	Type    string    `json:"type,omitempty"` // Go 错误的具体类型
	Kind    ErrorKind `json:"kind,omitempty"` // 业务错误分类
}
