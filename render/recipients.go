package render

import (
	"strings"
)

// ResolveRecipients turns configured recipient entries into concrete email
// addresses. Entries containing template placeholders are rendered against
// the payload, literals are trimmed and kept as-is. Rendered entries that
// come out empty or without an "@" are dropped along with a warning, a bad
// template must not silently address the wrong mailbox.
func ResolveRecipients(engine *Engine, entries []string, data map[string]any) ([]string, []string) {
	var (
		recipients []string
		warnings   []string
	)
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "{{") {
			recipients = append(recipients, entry)
			continue
		}
		rendered, err := engine.Render(entry, data)
		if err != nil {
			warnings = append(warnings, "recipient template failed: "+err.Error())
			continue
		}
		rendered = strings.TrimSpace(rendered)
		if rendered == "" || !strings.Contains(rendered, "@") {
			warnings = append(warnings, "recipient template produced no usable address: "+entry)
			continue
		}
		recipients = append(recipients, rendered)
	}
	return recipients, warnings
}
