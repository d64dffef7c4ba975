package core

import "context"

// metricNamespace prefixes every counter and histogram the engine emits.
const metricNamespace = "dispatch"

func counterName(operation string) string {
	return metricNamespace + "." + operation + ".total"
}

func histogramName(operation string) string {
	return metricNamespace + "." + operation + ".duration_ms"
}

// NopMetricsRecorder drops every measurement. It is the default so the
// engine never branches on a nil recorder.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
