package flow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
	"github.com/warden-io/warden/util"
)

// TransformFunc is one named operation from the fixed transform library.
// Workflow authors select operations by name; there is no free-form code
// evaluation in transform steps.
type TransformFunc func(data map[string]any, input map[string]any) (map[string]any, error)

var transforms = map[string]TransformFunc{
	"set":      transformSet,
	"pick":     transformPick,
	"rename":   transformRename,
	"merge":    transformMerge,
	"template": transformTemplate,
}

func LookupTransform(name string) (TransformFunc, bool) {
	fn, ok := transforms[strings.ToLower(name)]
	return fn, ok
}

// set resolves the input template against the context and returns it as
// the step output.
func transformSet(data map[string]any, input map[string]any) (map[string]any, error) {
	return util.ResolveParams(data, input), nil
}

// pick copies the named fields out of the context.
func transformPick(data map[string]any, input map[string]any) (map[string]any, error) {
	fields, ok := input["fields"].([]any)
	if !ok {
		return nil, fmt.Errorf("pick requires a fields list")
	}
	output := make(map[string]any)
	for _, f := range fields {
		field := fmt.Sprintf("%v", f)
		if value, ok := util.Lookup(data, field); ok {
			output[strings.TrimPrefix(field, "$.")] = value
		}
	}
	return output, nil
}

func transformRename(data map[string]any, input map[string]any) (map[string]any, error) {
	from, fok := input["from"].(string)
	to, tok := input["to"].(string)
	if !fok || !tok {
		return nil, fmt.Errorf("rename requires from and to")
	}
	value, ok := util.Lookup(data, from)
	if !ok {
		return map[string]any{}, nil
	}
	return map[string]any{to: value}, nil
}

// merge flattens the listed context paths (each must resolve to a map)
// into one output map, later sources winning.
func transformMerge(data map[string]any, input map[string]any) (map[string]any, error) {
	sources, ok := input["sources"].([]any)
	if !ok {
		return nil, fmt.Errorf("merge requires a sources list")
	}
	output := make(map[string]any)
	for _, s := range sources {
		value, ok := util.Lookup(data, fmt.Sprintf("%v", s))
		if !ok {
			continue
		}
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("merge source %v is not a map", s)
		}
		for k, v := range m {
			output[k] = v
		}
	}
	return output, nil
}

var templateRef = regexp.MustCompile(`\{(\$[^}]*)\}`)

// template renders a string with {$.path} placeholders resolved against
// the context, under the key named by "key".
func transformTemplate(data map[string]any, input map[string]any) (map[string]any, error) {
	key, kok := input["key"].(string)
	tpl, tok := input["template"].(string)
	if !kok || !tok {
		return nil, fmt.Errorf("template requires key and template")
	}
	rendered := templateRef.ReplaceAllStringFunc(tpl, func(ref string) string {
		path := strings.TrimSuffix(strings.TrimPrefix(ref, "{"), "}")
		value, err := jsonpath.JsonPathLookup(data, path)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%v", value)
	})
	return map[string]any{key: rendered}, nil
}
