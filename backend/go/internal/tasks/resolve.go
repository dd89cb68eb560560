package tasks

import (
	"Friday/backend/go/internal/llm"
	"Friday/backend/go/internal/store"
	"Friday/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrTargetNotFound 表示没有任何记录的标题与给定名称互为子串。
var ErrTargetNotFound = errors.New("no matching task found")

// AmbiguousTargetError 表示有多个候选且无法可靠地选出一个。
type AmbiguousTargetError struct {
	Name       string
	Candidates []store.Record
	TitleField string
}

func (e *AmbiguousTargetError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "I found several records matching \"%s\", please tell me which one you mean:", e.Name)
	for i, c := range e.Candidates {
		status := c.String("status")
		if status == "" {
			status = "-"
		}
		due := c.String("due_date")
		if due == "" {
			due = c.String("next_billing_date")
		}
		if due == "" {
			due = c.String("date")
		}
		if due == "" {
			due = "-"
		}
		fmt.Fprintf(&sb, "\n%d. %s (%s, due: %s)", i+1, c.String(e.TitleField), status, due)
	}
	return sb.String()
}

// Titles 返回全部候选的标题，顺序与列表一致。
func (e *AmbiguousTargetError) Titles() []string {
	out := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		out[i] = c.String(e.TitleField)
	}
	return out
}

// MatchCandidates 返回标题与 name 互为子串（忽略大小写）的记录。空标题不参与匹配。
func MatchCandidates(name string, records []store.Record, titleField string) []store.Record {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}
	var out []store.Record
	for _, rec := range records {
		title := strings.ToLower(strings.TrimSpace(rec.String(titleField)))
		if title == "" {
			continue
		}
		if strings.Contains(title, needle) || strings.Contains(needle, title) {
			out = append(out, rec)
		}
	}
	return out
}

// Resolver 按名称定位单条记录：先做确定性的子串匹配，多个候选时再请模型裁决。
// 模型的选择只有在置信度不低于 MinConfidence 且下标有效时才会被采用。
type Resolver struct {
	Oracle        llm.Completer
	MinConfidence float64
	TitleField    string
	Logger        *logger.Logger
}

// Resolve 返回唯一的目标记录，或 ErrTargetNotFound / *AmbiguousTargetError。
func (r *Resolver) Resolve(ctx context.Context, name string, records []store.Record, intent string) (store.Record, error) {
	candidates := MatchCandidates(name, records, r.TitleField)
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrTargetNotFound, name)
	case 1:
		return candidates[0], nil
	}

	ambiguous := &AmbiguousTargetError{Name: name, Candidates: candidates, TitleField: r.TitleField}
	if r.Oracle == nil {
		return nil, ambiguous
	}

	idx, confidence, reason, err := r.tieBreak(ctx, name, candidates, intent)
	if err != nil {
		r.logger().WithError(err).Warn("tie-break failed")
		return nil, ambiguous
	}
	r.logger().WithPayload(map[string]interface{}{
		"selected_index": idx,
		"confidence":     confidence,
		"reason":         reason,
		"candidates":     len(candidates),
	}).Info("tie-break answered")

	if idx < 0 || idx >= len(candidates) || confidence < r.MinConfidence {
		return nil, ambiguous
	}
	return candidates[idx], nil
}

type tieBreakCandidate struct {
	Index       int    `json:"index"`
	Title       string `json:"title"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

const tieBreakPrompt = `Pick the record the user most likely wants to update.

Name mentioned by the user: %s
Requested change: %s

Candidates:
%s

Consider title similarity first, then the current status (for example, do not pick an already finished task to mark it finished again), priority, category and due date.

Reply with JSON only:
{"selected_index": <index from the list>, "confidence": <0.0-1.0>, "reason": "<short reason>"}
If you cannot decide, reply {"selected_index": -1, "confidence": 0.0, "reason": "undecided"}.`

func (r *Resolver) tieBreak(ctx context.Context, name string, candidates []store.Record, intent string) (int, float64, string, error) {
	list := make([]tieBreakCandidate, len(candidates))
	for i, c := range candidates {
		due := c.String("due_date")
		if due == "" {
			due = c.String("next_billing_date")
		}
		list[i] = tieBreakCandidate{
			Index:       i,
			Title:       c.String(r.TitleField),
			Status:      c.String("status"),
			Priority:    c.String("priority"),
			DueDate:     due,
			Category:    c.String("category"),
			Description: c.String("description"),
		}
	}
	listJSON, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return -1, 0, "", err
	}
	if intent == "" {
		intent = "none"
	}

	text, err := r.Oracle.Complete(ctx, fmt.Sprintf(tieBreakPrompt, name, intent, listJSON))
	if err != nil {
		return -1, 0, "", err
	}
	res, ok := llm.JSONIsland(text)
	if !ok {
		return -1, 0, "", fmt.Errorf("tie-break response is not JSON: %.80q", text)
	}
	idx := res.Get("selected_index")
	if !idx.Exists() {
		return -1, 0, "", fmt.Errorf("tie-break response has no selected_index")
	}
	return int(idx.Int()), res.Get("confidence").Float(), res.Get("reason").String(), nil
}

func (r *Resolver) logger() *logger.Logger {
	if r.Logger == nil {
		return logger.Discard()
	}
	return r.Logger
}
