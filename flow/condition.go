package flow

import (
	"fmt"
	"strings"

	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/util"
)

// EvalConditions combines the step's conditions per its match policy.
// No conditions means the step always runs. Unknown operators and missing
// fields evaluate false; condition evaluation never raises.
func EvalConditions(conditions []model.Condition, match model.MatchPolicy, data map[string]any) bool {
	if len(conditions) == 0 {
		return true
	}
	if match == "" {
		match = model.MATCH_ALL
	}
	for _, c := range conditions {
		result := evalCondition(c, data)
		if match == model.MATCH_ANY && result {
			return true
		}
		if match == model.MATCH_ALL && !result {
			return false
		}
	}
	return match == model.MATCH_ALL
}

func evalCondition(c model.Condition, data map[string]any) bool {
	value, ok := util.Lookup(data, c.Field)
	if !ok {
		return false
	}
	switch c.Operator {
	case "equals":
		return equal(value, c.Value)
	case "not_equals":
		return !equal(value, c.Value)
	case "contains":
		return contains(value, c.Value)
	case "greater_than":
		left, lok := toFloat(value)
		right, rok := toFloat(c.Value)
		return lok && rok && left > right
	case "less_than":
		left, lok := toFloat(value)
		right, rok := toFloat(c.Value)
		return lok && rok && left < right
	case "in":
		list, ok := c.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if equal(value, item) {
				return true
			}
		}
		return false
	}
	return false
}

// equal compares after numeric normalization so 80 and 80.0 match across
// json decoding.
func equal(a any, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func contains(haystack any, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, fmt.Sprintf("%v", needle))
	case []any:
		for _, item := range h {
			if equal(item, needle) {
				return true
			}
		}
	case map[string]any:
		_, ok := h[fmt.Sprintf("%v", needle)]
		return ok
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
