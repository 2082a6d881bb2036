package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/usegrapevine/grapevine/pkg/config"
)

// Manager owns the tracer provider and metrics recorder for one process.
type Manager struct {
	tracerProvider trace.TracerProvider
	metrics        Metrics
	config         config.ObservabilityConfig
	mu             sync.RWMutex
}

func NewManager(cfg config.ObservabilityConfig) *Manager {
	return &Manager{
		config: cfg,
	}
}

// Initialize sets up tracing and metrics and installs the global recorder.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := InitGlobalTracer(ctx, m.config.Tracing)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	metrics, err := InitMetrics(ctx, m.config.Metrics)
	if err != nil {
		return err
	}
	m.metrics = metrics

	SetGlobalMetrics(m.metrics)

	return nil
}

func (m *Manager) GetTracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Shutdown flushes the tracer provider if one was installed.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if spt, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		return spt.Shutdown(ctx)
	}
	return nil
}
