package store

import (
	"context"
	"errors"
)

// 每条记录都会带上的系统字段。
const (
	FieldID      = "id"
	FieldCreated = "created_time"
	FieldEdited  = "edited_time"
	FieldURL     = "url"
)

// ErrNotFound 表示记录不存在或已被归档。
var ErrNotFound = errors.New("record not found")

// Record 是以领域字段名为键的属性表。
type Record map[string]interface{}

// ID 返回记录的 id，缺失时为空字符串。没有 id 的记录不能被更新或归档。
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// String 读取字符串字段。
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	}
	return ""
}

// Float 读取数值字段。
func (r Record) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Sort 是一个排序键。
type Sort struct {
	Property   string
	Descending bool
}

// Query 描述一次记录查询。Limit<=0 表示不限制。
type Query struct {
	Filter *Filter
	Sorts  []Sort
	Limit  int
}

// RecordStore 是外部文档数据库的抽象。
type RecordStore interface {
	// Create 写入一条新记录并返回其 id。
	Create(ctx context.Context, collection string, attrs Record) (string, error)
	// Query 返回匹配的未归档记录。
	Query(ctx context.Context, collection string, q Query) ([]Record, error)
	// Update 只写入 attrs 中给出的字段。
	Update(ctx context.Context, collection, id string, attrs Record) error
	// Archive 归档记录，归档后的记录不再出现在查询结果中。
	Archive(ctx context.Context, collection, id string) error
}
