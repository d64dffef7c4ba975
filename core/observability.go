package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// tagAllowlist names the context fields that are low-cardinality enough to
// become metric tags. Everything else stays in the structured log only.
var tagAllowlist = []string{"route_id", "project_id", "event_type", "destination", "agent_id"}

const (
	levelInfo  = "info"
	levelWarn  = "warn"
	levelError = "error"
)

// observeOperation records one counter increment, one duration sample, and
// one log line for a completed service operation. Callers defer it with the
// operation start time so the duration covers the whole call.
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	elapsed := time.Since(startedAt)

	contextFields := cloneFields(fields)
	contextFields["operation"] = operation
	contextFields["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		contextFields["status"] = "failure"
		contextFields["error"] = err.Error()
	} else {
		contextFields["status"] = "success"
	}

	if s.metricsRecorder != nil {
		tags := operationTags(operation, contextFields)
		s.metricsRecorder.IncCounter(ctx, counterName(operation), 1, tags)
		s.metricsRecorder.ObserveHistogram(ctx, histogramName(operation), float64(elapsed.Milliseconds()), cloneTags(tags))
	}

	if err != nil {
		s.logError(ctx, operation+" failed", contextFields)
		return
	}
	s.emit(ctx, levelInfo, operation+" succeeded", contextFields)
}

// operationTags builds the metric tag set: operation and status always,
// plus whichever allowlisted fields carry a value.
func operationTags(operation string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    fmt.Sprint(fields["status"]),
	}
	for _, key := range tagAllowlist {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if value := strings.TrimSpace(fmt.Sprint(raw)); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}
	return tags
}

func (s *Service) logWarn(ctx context.Context, message string, fields map[string]any) {
	s.emit(ctx, levelWarn, message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.emit(ctx, levelError, message, fields)
}

func (s *Service) emit(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := logArgs(fields)
	switch level {
	case levelError:
		logger.Error(message, args...)
	case levelWarn:
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

// logArgs flattens a field map into key/value pairs, sorted by key so log
// lines are stable across runs.
func logArgs(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, 2*len(keys))
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

var operationNameReplacer = strings.NewReplacer(" ", "_", "-", "_")

func normalizeOperation(operation string) string {
	return operationNameReplacer.Replace(strings.TrimSpace(strings.ToLower(operation)))
}
