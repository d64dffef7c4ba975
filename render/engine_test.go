package render

import (
	"strings"
	"testing"
)

func TestEngine_RenderSubstitutesPlaceholders(t *testing.T) {
	engine := NewEngine()

	out, err := engine.Render(`{"text": "task {{ taskId }} finished by {{ agent.name }}"}`, map[string]any{
		"taskId": "t-1",
		"agent":  map[string]any{"name": "builder"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != `{"text": "task t-1 finished by builder"}` {
		t.Fatalf("unexpected render output %q", out)
	}
}

func TestEngine_RenderExpressions(t *testing.T) {
	engine := NewEngine()

	out, err := engine.Render(`{{ count * 2 }} items, ok={{ count > 1 }}`, map[string]any{"count": 3})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "6 items, ok=true" {
		t.Fatalf("unexpected render output %q", out)
	}
}

func TestEngine_RenderPassthroughWithoutPlaceholders(t *testing.T) {
	engine := NewEngine()

	template := `{"static": true}`
	out, err := engine.Render(template, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != template {
		t.Fatalf("template without placeholders must pass through, got %q", out)
	}
}

func TestEngine_RenderFailuresAbortWholeRender(t *testing.T) {
	engine := NewEngine()
	data := map[string]any{"taskId": "t-1"}

	cases := []string{
		`before {{ taskId`,
		`{{ }}`,
		`{{ nonsense( }}`,
	}
	for _, template := range cases {
		if _, err := engine.Render(template, data); err == nil {
			t.Fatalf("expected render failure for %q", template)
		}
	}
}

func TestEngine_LookupHelperIsDisabled(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Render(`{{ lookup("tasks", taskId) }}`, map[string]any{"taskId": "t-1"})
	if err == nil {
		t.Fatalf("expected lookup to be rejected")
	}
	if !strings.Contains(err.Error(), "lookup is not available") {
		t.Fatalf("expected lookup rejection detail, got %v", err)
	}
}

func TestEngine_StringifyValues(t *testing.T) {
	engine := NewEngine()

	out, err := engine.Render(`{{ missing }}|{{ obj }}|{{ list }}`, map[string]any{
		"missing": nil,
		"obj":     map[string]any{"a": 1},
		"list":    []any{"x", "y"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != `|{"a":1}|["x","y"]` {
		t.Fatalf("unexpected stringification %q", out)
	}
}
