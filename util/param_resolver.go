package util

import (
	"strings"

	"github.com/oliveagle/jsonpath"
)

// ResolveParams resolves a step input template against the execution data
// bag. String values prefixed with "$" are jsonpath lookups; nested maps
// resolve recursively; everything else passes through untouched.
func ResolveParams(data map[string]any, params map[string]any) map[string]any {
	output := make(map[string]any)
	resolveParams(data, params, output)
	return output
}

func resolveParams(data map[string]any, params map[string]any, output map[string]any) {
	for k, v := range params {
		switch tv := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			output[k] = out
			resolveParams(data, tv, out)
		case string:
			if strings.HasPrefix(tv, "$") {
				value, err := jsonpath.JsonPathLookup(data, tv)
				if err == nil {
					output[k] = value
				} else {
					output[k] = nil
				}
			} else {
				output[k] = tv
			}
		default:
			output[k] = v
		}
	}
}

// Lookup resolves a single field reference against the data bag. A
// "$"-prefixed reference is a jsonpath expression, anything else is a
// direct top-level key.
func Lookup(data map[string]any, field string) (any, bool) {
	if strings.HasPrefix(field, "$") {
		value, err := jsonpath.JsonPathLookup(data, field)
		if err != nil {
			return nil, false
		}
		return value, true
	}
	value, ok := data[field]
	return value, ok
}
