package flow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransforms(t *testing.T) {
	data := map[string]any{
		"name": "ada",
		"fetch": map[string]any{
			"output": map[string]any{"email": "ada@example.com", "plan": "pro"},
		},
		"enrich": map[string]any{
			"output": map[string]any{"plan": "enterprise", "region": "eu"},
		},
	}
	for scenario, fn := range map[string]func(t *testing.T){
		"test set resolves references": func(t *testing.T) {
			fn, ok := LookupTransform("set")
			require.True(t, ok)
			out, err := fn(data, map[string]any{"to": "$.fetch.output.email", "greeting": "hello"})
			require.NoError(t, err)
			require.Equal(t, "ada@example.com", out["to"])
			require.Equal(t, "hello", out["greeting"])
		},
		"test pick copies named fields": func(t *testing.T) {
			fn, _ := LookupTransform("pick")
			out, err := fn(data, map[string]any{"fields": []any{"name", "$.fetch.output.plan"}})
			require.NoError(t, err)
			require.Equal(t, "ada", out["name"])
			require.Equal(t, "pro", out["fetch.output.plan"])
		},
		"test pick without fields errors": func(t *testing.T) {
			fn, _ := LookupTransform("pick")
			_, err := fn(data, map[string]any{})
			require.Error(t, err)
		},
		"test rename moves a value": func(t *testing.T) {
			fn, _ := LookupTransform("rename")
			out, err := fn(data, map[string]any{"from": "$.fetch.output.email", "to": "contact"})
			require.NoError(t, err)
			require.Equal(t, "ada@example.com", out["contact"])
		},
		"test merge later source wins": func(t *testing.T) {
			fn, _ := LookupTransform("merge")
			out, err := fn(data, map[string]any{"sources": []any{"$.fetch.output", "$.enrich.output"}})
			require.NoError(t, err)
			require.Equal(t, "enterprise", out["plan"])
			require.Equal(t, "ada@example.com", out["email"])
			require.Equal(t, "eu", out["region"])
		},
		"test merge non map source errors": func(t *testing.T) {
			fn, _ := LookupTransform("merge")
			_, err := fn(data, map[string]any{"sources": []any{"name"}})
			require.Error(t, err)
		},
		"test template renders placeholders": func(t *testing.T) {
			fn, _ := LookupTransform("template")
			out, err := fn(data, map[string]any{
				"key":      "body",
				"template": "hi {$.name}, your plan is {$.fetch.output.plan}",
			})
			require.NoError(t, err)
			require.Equal(t, "hi ada, your plan is pro", out["body"])
		},
		"test unknown transform not found": func(t *testing.T) {
			_, ok := LookupTransform("eval")
			require.False(t, ok)
		},
	} {
		t.Run(scenario, fn)
	}
}
