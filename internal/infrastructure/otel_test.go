package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpxreport/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNewOTelConfig(t *testing.T) {
	cfg := NewOTelConfig(config.TelemetryConfig{
		Environment:    "test",
		TraceExporter:  "stdout",
		MetricExporter: "none",
		EnableTracing:  true,
		SampleRatio:    0.5,
	})

	assert.Equal(t, config.AppName, cfg.ServiceName)
	assert.Equal(t, config.AppVersion, cfg.ServiceVersion)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "stdout", cfg.TraceExporter)
	assert.True(t, cfg.EnableTracing)
	assert.False(t, cfg.EnableMetrics)
	assert.Equal(t, 0.5, cfg.SampleRatio)
}

func TestInitializeOTel(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *OTelConfig
		wantTracer  bool
		wantMetrics bool
		wantErr     bool
	}{
		{
			name:        "defaults",
			cfg:         nil,
			wantMetrics: true,
		},
		{
			name: "everything disabled",
			cfg:  &OTelConfig{ServiceName: "t", TraceExporter: "none", MetricExporter: "none"},
		},
		{
			name:        "prometheus metrics",
			cfg:         &OTelConfig{ServiceName: "t", EnableMetrics: true, MetricExporter: "prometheus"},
			wantMetrics: true,
		},
		{
			name:       "stdout tracing",
			cfg:        &OTelConfig{ServiceName: "t", EnableTracing: true, TraceExporter: "stdout", SampleRatio: 1},
			wantTracer: true,
		},
		{
			name:    "unknown trace exporter",
			cfg:     &OTelConfig{ServiceName: "t", EnableTracing: true, TraceExporter: "jaeger"},
			wantErr: true,
		},
		{
			name:    "unknown metric exporter",
			cfg:     &OTelConfig{ServiceName: "t", EnableMetrics: true, MetricExporter: "statsd"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.cfg, quietLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer providers.Shutdown(context.Background())

			assert.NotNil(t, providers.Tracer)
			assert.NotNil(t, providers.Meter)
			assert.Equal(t, tt.wantTracer, providers.TracerProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.MeterProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.PrometheusHTTP != nil)
		})
	}
}

func TestPipelineMetrics_ExposedOnPrometheusHandler(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    "t",
		EnableMetrics:  true,
		MetricExporter: "prometheus",
	}, quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreatePipelineMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordRun(ctx, 2*time.Second, nil)
	metrics.RecordRun(ctx, time.Second, errors.New("source down"))
	metrics.RecordStep(ctx, "load", 10*time.Millisecond, nil)
	metrics.RecordRecords(ctx, 10, 7, 1)
	metrics.RecordFiles(ctx, "xlsx", 1)
	metrics.RecordRequest(ctx, http.MethodGet, "/api/health", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "report_runs_total")
	assert.Contains(t, body, `status="failure"`)
	assert.Contains(t, body, "records_loaded_total")
	assert.Contains(t, body, "rows_skipped_total")
	assert.Contains(t, body, "report_step_duration_seconds")
	assert.Contains(t, body, "http_requests_total")
}

func TestPipelineMetrics_NilReceiver(t *testing.T) {
	var metrics *PipelineMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.RecordRun(ctx, time.Second, nil)
		metrics.RecordStep(ctx, "load", time.Second, nil)
		metrics.RecordRecords(ctx, 1, 1, 0)
		metrics.RecordFiles(ctx, "csv", 10)
		metrics.RecordRequest(ctx, http.MethodGet, "/", http.StatusOK, time.Second)
	})
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))

	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:   "t",
		EnableTracing: true,
		TraceExporter: "stdout",
		SampleRatio:   1,
	}, quietLogger())
	require.NoError(t, err)

	ctx, span := providers.Tracer.Start(context.Background(), "generate")
	assert.Equal(t, span.SpanContext().TraceID().String(), TraceIDFromContext(ctx))

	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{name: "span only", ctx: ctx, want: span.SpanContext().TraceID().String()},
		{name: "explicit trace id wins", ctx: WithTraceID(ctx, "req-1"), want: "req-1"},
		{name: "neither", ctx: context.Background()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewLogger(config.LoggingConfig{Level: "info"}, &buf).InfoContext(tt.ctx, "logged")

			entries := decodeLines(t, buf.Bytes())
			require.Len(t, entries, 1)
			if tt.want == "" {
				assert.NotContains(t, entries[0], "trace_id")
				return
			}
			assert.Equal(t, tt.want, entries[0]["trace_id"])
		})
	}

	AddSpanEvent(ctx, "loaded")
	RecordError(ctx, errors.New("boom"))
	span.End()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(shutdownCtx))
}
