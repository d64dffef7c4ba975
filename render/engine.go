package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/cavendo/go-dispatch/core"
)

// Engine renders payload templates. Placeholders are {{ expression }}
// blocks evaluated against the event payload, everything else passes
// through verbatim. Expressions run sandboxed: they see the payload fields
// and nothing else, no environment access, no dynamic data loading.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Render substitutes every placeholder in the template. A placeholder that
// fails to compile or evaluate fails the whole render, a half-rendered
// payload must never reach a destination.
func (e *Engine) Render(template string, data map[string]any) (string, error) {
	var out strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return "", fmt.Errorf("render: unterminated placeholder in template")
		}
		end += start

		out.WriteString(rest[:start])
		expression := strings.TrimSpace(rest[start+2 : end])
		rest = rest[end+2:]

		if expression == "" {
			return "", fmt.Errorf("render: empty template placeholder")
		}
		value, err := e.eval(expression, data)
		if err != nil {
			return "", err
		}
		out.WriteString(stringify(value))
	}
}

func (e *Engine) eval(expression string, data map[string]any) (any, error) {
	env := make(map[string]any, len(data)+1)
	for key, value := range data {
		env[key] = value
	}
	// The dynamic lookup helper from earlier template generations is
	// deliberately absent. Referencing it fails the render instead of
	// silently returning nothing.
	env["lookup"] = func(...any) (any, error) {
		return nil, fmt.Errorf("lookup is not available in payload templates")
	}

	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("render: template expression %q: %w", expression, err)
	}
	value, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("render: template expression %q: %w", expression, err)
	}
	return value, nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	default:
		return fmt.Sprint(v)
	}
}

var _ core.TemplateRenderer = (*Engine)(nil)
