package render

import (
	"fmt"
	"strings"

	"github.com/cavendo/go-dispatch/core"
)

// forbiddenSegments are path segments that could graft onto object internals
// in a receiving runtime. Any mapping entry touching one is dropped.
var forbiddenSegments = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// Mapper copies values between dotted paths over the event payload. Each
// mapping entry is keyed by the destination path and carries the source
// path to read. Top-level fields that no mapping entry touches pass
// through unchanged.
type Mapper struct{}

func NewMapper() *Mapper {
	return &Mapper{}
}

// Apply runs the mapping and returns the resulting payload plus a warning
// per skipped entry. Entries with forbidden path segments, or source paths
// that do not resolve, are skipped rather than failing the dispatch.
func (m *Mapper) Apply(payload map[string]any, mapping map[string]string) (map[string]any, []string) {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = value
	}
	var warnings []string
	for destPath, sourcePath := range mapping {
		if seg := firstForbiddenSegment(destPath); seg != "" {
			warnings = append(warnings, fmt.Sprintf("mapping destination %q rejected: forbidden segment %q", destPath, seg))
			continue
		}
		if seg := firstForbiddenSegment(sourcePath); seg != "" {
			warnings = append(warnings, fmt.Sprintf("mapping source %q rejected: forbidden segment %q", sourcePath, seg))
			continue
		}
		value, ok := getPath(payload, sourcePath)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("mapping source %q not present in payload", sourcePath))
			continue
		}
		if !setPath(out, destPath, value) {
			warnings = append(warnings, fmt.Sprintf("mapping destination %q collides with a non-object value", destPath))
		}
	}
	return out, warnings
}

func firstForbiddenSegment(path string) string {
	for _, segment := range strings.Split(path, ".") {
		if _, forbidden := forbiddenSegments[segment]; forbidden {
			return segment
		}
	}
	return ""
}

func getPath(payload map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var current any = payload
	for _, segment := range segments {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setPath(payload map[string]any, path string, value any) bool {
	segments := strings.Split(path, ".")
	node := payload
	for _, segment := range segments[:len(segments)-1] {
		next, exists := node[segment]
		if !exists {
			child := map[string]any{}
			node[segment] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return false
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
	return true
}

var _ core.FieldMapper = (*Mapper)(nil)
