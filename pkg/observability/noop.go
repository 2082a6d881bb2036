package observability

import (
	"context"
	"time"
)

// NoopMetrics is a metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordPipelineRun(_ context.Context, _ string, _ time.Duration)       {}
func (NoopMetrics) RecordStage(_ context.Context, _ string, _ time.Duration, _ error)    {}
func (NoopMetrics) RecordToolCall(_ context.Context, _ string, _ time.Duration, _ error) {}
func (NoopMetrics) RecordLLMCall(_ context.Context, _ string, _ time.Duration, _, _ int, _ error) {
}
func (NoopMetrics) RecordHTTPRequest(_ context.Context, _, _ string, _ int, _ time.Duration) {}

var _ Metrics = NoopMetrics{}
var _ Metrics = (*PrometheusMetrics)(nil)
