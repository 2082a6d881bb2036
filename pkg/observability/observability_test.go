package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usegrapevine/grapevine/pkg/config"
)

func TestPrometheusMetricsNilSafe(t *testing.T) {
	ctx := context.Background()

	// A zero-value recorder has no instruments; every method must be a no-op.
	metrics := &PrometheusMetrics{}

	metrics.RecordPipelineRun(ctx, "COMPLETE", 100*time.Millisecond)
	metrics.RecordStage(ctx, "planning", 50*time.Millisecond, nil)
	metrics.RecordToolCall(ctx, "find_people_by_skill", 30*time.Millisecond, nil)
	metrics.RecordLLMCall(ctx, "gpt-4o-mini", 500*time.Millisecond, 100, 50, nil)
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/query", 200, 700*time.Millisecond)
}

func TestInitMetricsDisabled(t *testing.T) {
	metrics, err := InitMetrics(context.Background(), config.MetricsConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, metrics, "disabled metrics still need a recorder")

	metrics.RecordPipelineRun(context.Background(), "ERROR", time.Second)
}

func TestNoopMetrics(t *testing.T) {
	ctx := context.Background()
	var metrics Metrics = NoopMetrics{}

	metrics.RecordPipelineRun(ctx, "COMPLETE", 100*time.Millisecond)
	metrics.RecordStage(ctx, "synthesis", 50*time.Millisecond, nil)
	metrics.RecordToolCall(ctx, "get_person_complete_profile", 25*time.Millisecond, nil)
	metrics.RecordLLMCall(ctx, "test-model", 300*time.Millisecond, 10, 5, nil)
	metrics.RecordHTTPRequest(ctx, "GET", "/healthz", 200, time.Millisecond)
}

func TestGlobalMetrics(t *testing.T) {
	prev := GetGlobalMetrics()
	defer SetGlobalMetrics(prev)

	SetGlobalMetrics(NoopMetrics{})

	retrieved := GetGlobalMetrics()
	require.NotNil(t, retrieved)

	retrieved.RecordPipelineRun(context.Background(), "COMPLETE", 100*time.Millisecond)
}

func TestInitGlobalTracerDisabled(t *testing.T) {
	cfg := config.TracingConfig{Enabled: false}

	tp, err := InitGlobalTracer(context.Background(), cfg)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "test_span")
	span.End()
}

func TestManagerDisabledConfig(t *testing.T) {
	mgr := NewManager(config.ObservabilityConfig{})

	require.NoError(t, mgr.Initialize(context.Background()))
	defer func() { _ = mgr.Shutdown(context.Background()) }()

	assert.NotNil(t, mgr.GetMetrics(), "expected metrics recorder after Initialize")

	_, span := mgr.GetTracer("test").Start(context.Background(), "test_span")
	span.End()
}

func TestDisabledMetricsHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	DisabledMetricsHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
