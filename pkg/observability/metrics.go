package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/usegrapevine/grapevine/pkg/config"
)

// InitMetrics builds the Prometheus-backed metrics recorder. When metrics
// are disabled it returns an empty recorder whose methods do nothing.
func InitMetrics(ctx context.Context, cfg config.MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("grapevine")

	pipelineDuration, err := meter.Float64Histogram(
		"grapevine_pipeline_duration_seconds",
		metric.WithDescription("End-to-end pipeline run duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline duration histogram: %w", err)
	}

	pipelineRuns, err := meter.Int64Counter(
		"grapevine_pipeline_runs_total",
		metric.WithDescription("Total pipeline runs by final status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline runs counter: %w", err)
	}

	stageDuration, err := meter.Float64Histogram(
		"grapevine_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage duration histogram: %w", err)
	}

	stageErrors, err := meter.Int64Counter(
		"grapevine_stage_errors_total",
		metric.WithDescription("Total pipeline stage errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage errors counter: %w", err)
	}

	toolDuration, err := meter.Float64Histogram(
		"grapevine_tool_call_duration_seconds",
		metric.WithDescription("Graph tool call duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	toolCalls, err := meter.Int64Counter(
		"grapevine_tool_calls_total",
		metric.WithDescription("Total graph tool calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	toolErrors, err := meter.Int64Counter(
		"grapevine_tool_errors_total",
		metric.WithDescription("Total graph tool call errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	llmDuration, err := meter.Float64Histogram(
		"grapevine_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	llmInputTokens, err := meter.Int64Counter(
		"grapevine_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	llmOutputTokens, err := meter.Int64Counter(
		"grapevine_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from the LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	llmErrors, err := meter.Int64Counter(
		"grapevine_llm_errors_total",
		metric.WithDescription("Total LLM request errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		"grapevine_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	httpRequests, err := meter.Int64Counter(
		"grapevine_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	return &PrometheusMetrics{
		pipelineDuration: pipelineDuration,
		pipelineRuns:     pipelineRuns,
		stageDuration:    stageDuration,
		stageErrors:      stageErrors,
		toolDuration:     toolDuration,
		toolCalls:        toolCalls,
		toolErrors:       toolErrors,
		llmDuration:      llmDuration,
		llmInputTokens:   llmInputTokens,
		llmOutputTokens:  llmOutputTokens,
		llmErrors:        llmErrors,
		httpDuration:     httpDuration,
		httpRequests:     httpRequests,
	}, nil
}

// MetricsHandler serves everything the Prometheus exporter registered.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// DisabledMetricsHandler answers 503 when metrics collection is off.
func DisabledMetricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}
