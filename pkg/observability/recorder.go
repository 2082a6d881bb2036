package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics records the pipeline's operational signals. Implementations
// must be safe for concurrent use; a nil or zero-value recorder is a no-op.
type Metrics interface {
	RecordPipelineRun(ctx context.Context, status string, duration time.Duration)
	RecordStage(ctx context.Context, stage string, duration time.Duration, err error)
	RecordToolCall(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

type PrometheusMetrics struct {
	pipelineDuration metric.Float64Histogram
	pipelineRuns     metric.Int64Counter

	stageDuration metric.Float64Histogram
	stageErrors   metric.Int64Counter

	toolDuration metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter

	httpDuration metric.Float64Histogram
	httpRequests metric.Int64Counter
}

func (m *PrometheusMetrics) RecordPipelineRun(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.pipelineDuration == nil || m.pipelineRuns == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("status", status),
	}

	m.pipelineDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.pipelineRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *PrometheusMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	if m == nil || m.stageDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("stage", stage),
	}

	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil && m.stageErrors != nil {
		m.stageErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordToolCall(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil || m.toolCalls == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool", tool),
	}

	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil && m.toolErrors != nil {
		m.toolErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil || m.llmInputTokens == nil || m.llmOutputTokens == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.llmInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	m.llmOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))

	if err != nil && m.llmErrors != nil {
		m.llmErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpDuration == nil || m.httpRequests == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", statusCode),
	}

	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
