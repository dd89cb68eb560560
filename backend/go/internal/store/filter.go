package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Op 是过滤谓词的比较方式。
type Op string

const (
	OpEquals     Op = "equals"
	OpNotEquals  Op = "does_not_equal"
	OpBefore     Op = "before"
	OpAfter      Op = "after"
	OpOnOrBefore Op = "on_or_before"
	OpOnOrAfter  Op = "on_or_after"
	OpAnd        Op = "and"
)

// Filter 是一棵谓词树。叶子节点比较 Property 和 Value，OpAnd 节点要求 And 中全部成立。
type Filter struct {
	Property string
	Op       Op
	Value    interface{}
	And      []*Filter
}

func Eq(property string, value interface{}) *Filter {
	return &Filter{Property: property, Op: OpEquals, Value: value}
}

func NotEq(property string, value interface{}) *Filter {
	return &Filter{Property: property, Op: OpNotEquals, Value: value}
}

func Before(property, date string) *Filter {
	return &Filter{Property: property, Op: OpBefore, Value: date}
}

func After(property, date string) *Filter {
	return &Filter{Property: property, Op: OpAfter, Value: date}
}

func OnOrBefore(property, date string) *Filter {
	return &Filter{Property: property, Op: OpOnOrBefore, Value: date}
}

func OnOrAfter(property, date string) *Filter {
	return &Filter{Property: property, Op: OpOnOrAfter, Value: date}
}

// And 组合多个谓词。nil 会被忽略；没有谓词时返回 nil，只有一个时直接返回它。
func And(filters ...*Filter) *Filter {
	var parts []*Filter
	for _, f := range filters {
		if f != nil {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return &Filter{Op: OpAnd, And: parts}
}

// Match 判断记录是否满足谓词树。nil 过滤器匹配所有记录。
func (f *Filter) Match(rec Record) bool {
	if f == nil {
		return true
	}
	if f.Op == OpAnd {
		for _, sub := range f.And {
			if !sub.Match(rec) {
				return false
			}
		}
		return true
	}

	actual, present := rec[f.Property]
	switch f.Op {
	case OpEquals:
		return present && compareValues(actual, f.Value) == 0
	case OpNotEquals:
		return !present || compareValues(actual, f.Value) != 0
	}

	// 日期比较：缺失或空值不参与比较。
	if !present || toString(actual) == "" {
		return false
	}
	c := compareValues(actual, f.Value)
	switch f.Op {
	case OpBefore:
		return c < 0
	case OpAfter:
		return c > 0
	case OpOnOrBefore:
		return c <= 0
	case OpOnOrAfter:
		return c >= 0
	}
	return false
}

// String 以紧凑形式描述谓词树，用于日志。
func (f *Filter) String() string {
	if f == nil {
		return "<all>"
	}
	if f.Op == OpAnd {
		parts := make([]string, len(f.And))
		for i, sub := range f.And {
			parts[i] = sub.String()
		}
		return "(" + strings.Join(parts, " and ") + ")"
	}
	return fmt.Sprintf("%s %s %v", f.Property, f.Op, f.Value)
}

// compareValues 对数值按数值比较，其余按字符串比较。
// 日期统一以 "2006-01-02" 或 RFC3339 字符串保存，因此日期部分的字典序就是时间序。
func compareValues(a, b interface{}) int {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	as, bs := toString(a), toString(b)
	if isDate(bs) && len(as) > 10 {
		as = as[:10]
	}
	return strings.Compare(as, bs)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	}
	return fmt.Sprint(v)
}

func isDate(s string) bool {
	return len(s) == 10 && s[4] == '-' && s[7] == '-'
}
