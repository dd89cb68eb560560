package tasks

import (
	"Friday/backend/go/internal/config"
	"Friday/backend/go/internal/llm"
	"Friday/backend/go/internal/models"
	"Friday/backend/go/internal/store"
	"Friday/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// 面向用户的通用失败提示。
const (
	msgCheckInput   = "Some information is missing or invalid, please check your input and try again."
	msgRetryLater   = "The record store is unavailable right now, please try again later."
	msgInternal     = "Something went wrong while handling the task, please try again later."
	msgNothingToSet = "Please tell me the new status, priority or date to update."
)

// Info 描述一个任务类型，供注册表和意图管道使用。
type Info struct {
	Type        models.TaskType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Required    []string        `json:"required_fields"`
	Optional    []string        `json:"optional_fields"`
}

// Handler 是所有任务处理器的统一契约。
// 所有操作都通过 TaskResult 报告失败，不返回 error，也不应 panic。
type Handler interface {
	Info() Info
	// Validate 检查必填字段，并就地修正可以修正的枚举值。
	Validate(data map[string]interface{}) bool
	// FormatData 去掉空值，做数值转换并补齐默认值。
	FormatData(data map[string]interface{}) map[string]interface{}
	Execute(ctx context.Context, data map[string]interface{}) models.TaskResult
	// Query 把通用过滤条件翻译成存储谓词，多个条件取交集，未知的键会被忽略。
	Query(ctx context.Context, filters map[string]interface{}) models.TaskResult
	DeleteAll(ctx context.Context) models.TaskResult
	UpdateByName(ctx context.Context, name, status, priority, date string) models.TaskResult
}

// Deps 是处理器共享的依赖和策略参数。
type Deps struct {
	Store              store.RecordStore
	Oracle             llm.Completer
	Logger             *logger.Logger
	Now                func() time.Time
	Collections        config.CollectionsConfig
	TieBreakConfidence float64
	QueryLimit         int
	Currency           string
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logger.New("tasks")
	}
	def := config.Default()
	if d.Collections.Accounting == "" {
		d.Collections.Accounting = def.Store.Collections.Accounting
	}
	if d.Collections.Subscription == "" {
		d.Collections.Subscription = def.Store.Collections.Subscription
	}
	if d.Collections.Todo == "" {
		d.Collections.Todo = def.Store.Collections.Todo
	}
	if d.TieBreakConfidence <= 0 {
		d.TieBreakConfidence = def.Assistant.TieBreakConfidence
	}
	if d.QueryLimit <= 0 {
		d.QueryLimit = def.Assistant.QueryLimit
	}
	if d.Currency == "" {
		d.Currency = def.Assistant.DefaultCurrency
	}
	return d
}

// SafeExecute 依次执行 Validate → FormatData → Execute，并把 panic 转成失败结果。
func SafeExecute(ctx context.Context, h Handler, data map[string]interface{}) (result models.TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.Failed(models.KindInternal, msgInternal, fmt.Sprintf("panic: %v", r))
		}
	}()

	input := make(map[string]interface{}, len(data))
	for k, v := range data {
		input[k] = v
	}
	if !h.Validate(input) {
		missing := MissingFields(h.Info(), input)
		return models.Failed(models.KindValidation, msgCheckInput,
			fmt.Sprintf("validation failed for %s (missing: %s)", h.Info().Type, strings.Join(missing, ", ")))
	}
	return h.Execute(ctx, h.FormatData(input))
}

// MissingFields 返回 data 中缺失或为空的必填字段。
func MissingFields(info Info, data map[string]interface{}) []string {
	var missing []string
	for _, f := range info.Required {
		if isEmpty(data[f]) {
			missing = append(missing, f)
		}
	}
	return missing
}

// base 实现了各处理器共享的存储读写、批量删除和按名称更新。
type base struct {
	deps       Deps
	collection string
	titleField string
	label      string
	log        *logger.Logger
}

func newBase(deps Deps, collection, titleField, label string) base {
	return base{
		deps:       deps,
		collection: collection,
		titleField: titleField,
		label:      label,
		log:        deps.Logger.WithField("collection", collection),
	}
}

func (b *base) today() string {
	return b.deps.Now().Format(dateLayout)
}

func (b *base) dayOffset(days int) string {
	return b.deps.Now().AddDate(0, 0, days).Format(dateLayout)
}

func (b *base) create(ctx context.Context, attrs store.Record) (string, models.TaskResult, bool) {
	id, err := b.deps.Store.Create(ctx, b.collection, attrs)
	if err != nil {
		b.log.WithError(err).Error("create record failed")
		return "", models.Failed(models.KindStore, msgRetryLater, err.Error()), false
	}
	return id, models.TaskResult{}, true
}

func (b *base) find(ctx context.Context, filter *store.Filter, sorts []store.Sort, limit int) models.TaskResult {
	recs, err := b.deps.Store.Query(ctx, b.collection, store.Query{Filter: filter, Sorts: sorts, Limit: limit})
	if err != nil {
		b.log.WithError(err).WithField("filter", filter.String()).Error("query records failed")
		return models.Failed(models.KindStore, msgRetryLater, err.Error())
	}
	out := make([]map[string]interface{}, len(recs))
	for i, r := range recs {
		out[i] = map[string]interface{}(r)
	}
	return models.Succeeded(fmt.Sprintf("Found %d %s record(s)", len(out), b.label), map[string]interface{}{
		"records": out,
		"count":   len(out),
	})
}

// deleteAll 查询全部记录后逐条归档。部分失败仍视为成功，并在结果中给出 failed_count。
func (b *base) deleteAll(ctx context.Context) models.TaskResult {
	recs, err := b.deps.Store.Query(ctx, b.collection, store.Query{})
	if err != nil {
		b.log.WithError(err).Error("list records for delete failed")
		return models.Failed(models.KindStore, msgRetryLater, err.Error())
	}
	if len(recs) == 0 {
		return models.Succeeded(fmt.Sprintf("There are no %s records to delete", b.label), map[string]interface{}{
			"deleted_count": 0,
			"failed_count":  0,
		})
	}

	deleted, failed := 0, 0
	for _, rec := range recs {
		id := rec.ID()
		if id == "" {
			continue
		}
		if err := b.deps.Store.Archive(ctx, b.collection, id); err != nil {
			failed++
			b.log.WithError(err).WithField("record_id", id).Warn("archive record failed")
			continue
		}
		deleted++
	}

	msg := fmt.Sprintf("Deleted %d %s record(s)", deleted, b.label)
	if failed > 0 {
		msg += fmt.Sprintf(", %d could not be deleted", failed)
	}
	return models.Succeeded(msg, map[string]interface{}{
		"deleted_count": deleted,
		"failed_count":  failed,
	})
}

// updateByName 通过模糊匹配定位记录，再只写入 changes 中的字段。
func (b *base) updateByName(ctx context.Context, name string, changes store.Record) models.TaskResult {
	if len(changes) == 0 {
		return models.Failed(models.KindValidation, msgNothingToSet, "nothing to update")
	}

	recs, err := b.deps.Store.Query(ctx, b.collection, store.Query{})
	if err != nil {
		b.log.WithError(err).Error("list records for update failed")
		return models.Failed(models.KindStore, msgRetryLater, err.Error())
	}

	resolver := &Resolver{
		Oracle:        b.deps.Oracle,
		MinConfidence: b.deps.TieBreakConfidence,
		TitleField:    b.titleField,
		Logger:        b.log,
	}
	target, err := resolver.Resolve(ctx, name, recs, describeChanges(changes))
	if err != nil {
		var amb *AmbiguousTargetError
		switch {
		case errors.As(err, &amb):
			return models.TaskResult{
				Success:   false,
				Data:      map[string]interface{}{"candidates": amb.Titles()},
				Message:   amb.Error(),
				Error:     "multiple matching records",
				Kind:      models.KindAmbiguousTarget,
				Timestamp: time.Now(),
			}
		case errors.Is(err, ErrTargetNotFound):
			return models.Failed(models.KindNotFound,
				fmt.Sprintf("No matching %s found for \"%s\".", b.label, name), err.Error())
		default:
			return models.Failed(models.KindInternal, msgInternal, err.Error())
		}
	}

	id := target.ID()
	if id == "" {
		return models.Failed(models.KindValidation, "The matching record has no id and cannot be updated.", "missing record id")
	}
	if err := b.deps.Store.Update(ctx, b.collection, id, changes); err != nil {
		b.log.WithError(err).WithField("record_id", id).Error("update record failed")
		if errors.Is(err, store.ErrNotFound) {
			return models.Failed(models.KindNotFound, fmt.Sprintf("No matching %s found for \"%s\".", b.label, name), err.Error())
		}
		return models.Failed(models.KindStore, msgRetryLater, err.Error())
	}

	title := target.String(b.titleField)
	summary := describeChanges(changes)
	return models.Succeeded(fmt.Sprintf("Updated \"%s\": %s", title, summary), map[string]interface{}{
		"id":      id,
		"title":   title,
		"updates": map[string]interface{}(changes),
	})
}

func describeChanges(changes store.Record) string {
	keys := []string{"status", "priority", "due_date", "next_billing_date", "date"}
	var parts []string
	for _, k := range keys {
		if v, ok := changes[k]; ok {
			parts = append(parts, fmt.Sprintf("%s → %v", strings.ReplaceAll(k, "_", " "), v))
		}
	}
	return strings.Join(parts, ", ")
}

// stripEmpty 返回去掉空值后的副本。
func stripEmpty(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if !isEmpty(v) {
			out[k] = v
		}
	}
	return out
}

func isEmpty(v interface{}) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	}
	return false
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// asFloat 接受数值或形如 "25.5"、"¥25" 的字符串。
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(n), "¥$€£"))
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

func asBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		ok, _ := strconv.ParseBool(b)
		return ok
	}
	return false
}

// normalizeDate 接受 "2006-01-02" 或 RFC3339，返回日期部分。
func normalizeDate(v interface{}) (string, bool) {
	s := asString(v)
	if s == "" {
		return "", false
	}
	if _, err := time.Parse(dateLayout, s); err == nil {
		return s, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(dateLayout), true
	}
	return "", false
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
