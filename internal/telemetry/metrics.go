package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	PrometheusPort int     `mapstructure:"prometheus_port"`
	PushgatewayURL string  `mapstructure:"pushgateway_url"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate"`
}

// Telemetry manages OpenTelemetry instrumentation. A disabled instance is
// valid and turns every call into a no-op.
type Telemetry struct {
	config         TelemetryConfig
	logger         *zap.Logger
	registry       *prometheus.Registry
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	server         *http.Server
	mu             sync.Mutex

	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(config TelemetryConfig, logger *zap.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !config.Enabled {
		return &Telemetry{config: config, logger: logger}, nil
	}

	if config.ServiceName == "" {
		config.ServiceName = "countryseed"
	}

	t := &Telemetry{
		config:     config,
		logger:     logger,
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(t.config.ServiceName),
			semconv.ServiceVersion(t.config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := t.initTracing(res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := t.initMetrics(res); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

func (t *Telemetry) initTracing(res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if t.config.JaegerEndpoint != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(t.config.JaegerEndpoint)))
		if err != nil {
			return fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}

		sampleRate := t.config.SampleRate
		if sampleRate == 0 {
			sampleRate = 1.0
		}
		// A one-shot run exits right after Stop, so spans are exported
		// synchronously rather than batched.
		opts = append(opts,
			sdktrace.WithSyncer(exporter),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRate)),
		)
	}

	t.tracerProvider = sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(t.tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.tracer = t.tracerProvider.Tracer(t.config.ServiceName)

	return nil
}

func (t *Telemetry) initMetrics(res *resource.Resource) error {
	t.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(t.registry))
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(t.meterProvider)

	t.meter = t.meterProvider.Meter(t.config.ServiceName)

	return nil
}

// Start serves /metrics when a Prometheus port is configured.
func (t *Telemetry) Start(ctx context.Context) error {
	if !t.config.Enabled || t.config.PrometheusPort <= 0 {
		return nil
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", t.config.PrometheusPort))
	if err != nil {
		return fmt.Errorf("failed to listen for Prometheus: %w", err)
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	t.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := t.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Warn("Prometheus server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop pushes metrics to the Pushgateway when configured, then shuts the
// providers down.
func (t *Telemetry) Stop(ctx context.Context) error {
	if !t.config.Enabled {
		return nil
	}

	var errs []error

	if t.meterProvider != nil {
		if err := t.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush meter provider: %w", err))
		}
	}

	if t.config.PushgatewayURL != "" {
		if err := t.Push(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown Prometheus server: %w", err))
		}
	}

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Push sends the current registry contents to the Pushgateway.
func (t *Telemetry) Push(ctx context.Context) error {
	if !t.config.Enabled || t.config.PushgatewayURL == "" {
		return nil
	}

	err := push.New(t.config.PushgatewayURL, t.config.ServiceName).
		Gatherer(t.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

// Registry returns the Prometheus registry backing the exporter. It is nil
// when telemetry is disabled.
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// StartSpan starts a new span
func (t *Telemetry) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !t.config.Enabled || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, opts...)
}

// AddCounter adds n to a counter metric
func (t *Telemetry) AddCounter(ctx context.Context, name string, n int64, attrs ...attribute.KeyValue) error {
	if !t.config.Enabled {
		return nil
	}

	t.mu.Lock()
	counter, exists := t.counters[name]
	if !exists {
		var err error
		counter, err = t.meter.Int64Counter(name)
		if err != nil {
			t.mu.Unlock()
			return fmt.Errorf("failed to create counter %s: %w", name, err)
		}
		t.counters[name] = counter
	}
	t.mu.Unlock()

	counter.Add(ctx, n, metric.WithAttributes(attrs...))
	return nil
}

// IncrementCounter increments a counter metric
func (t *Telemetry) IncrementCounter(ctx context.Context, name string, attrs ...attribute.KeyValue) error {
	return t.AddCounter(ctx, name, 1, attrs...)
}

// RecordHistogram records a value in a histogram
func (t *Telemetry) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) error {
	if !t.config.Enabled {
		return nil
	}

	t.mu.Lock()
	histogram, exists := t.histograms[name]
	if !exists {
		var err error
		histogram, err = t.meter.Float64Histogram(name)
		if err != nil {
			t.mu.Unlock()
			return fmt.Errorf("failed to create histogram %s: %w", name, err)
		}
		t.histograms[name] = histogram
	}
	t.mu.Unlock()

	histogram.Record(ctx, value, metric.WithAttributes(attrs...))
	return nil
}

// RecordDuration records the duration of an operation
func (t *Telemetry) RecordDuration(ctx context.Context, name string, start time.Time, attrs ...attribute.KeyValue) error {
	return t.RecordHistogram(ctx, name+"_duration_seconds", time.Since(start).Seconds(), attrs...)
}

var globalTelemetry *Telemetry

// InitGlobalTelemetry initializes the global telemetry instance
func InitGlobalTelemetry(config TelemetryConfig, logger *zap.Logger) error {
	telemetry, err := NewTelemetry(config, logger)
	if err != nil {
		return err
	}
	globalTelemetry = telemetry
	return nil
}

// GetGlobalTelemetry returns the global telemetry instance
func GetGlobalTelemetry() *Telemetry {
	return globalTelemetry
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if globalTelemetry != nil {
		return globalTelemetry.StartSpan(ctx, name, opts...)
	}
	return ctx, trace.SpanFromContext(ctx)
}

func AddCounter(ctx context.Context, name string, n int64, attrs ...attribute.KeyValue) error {
	if globalTelemetry != nil {
		return globalTelemetry.AddCounter(ctx, name, n, attrs...)
	}
	return nil
}

func RecordDuration(ctx context.Context, name string, start time.Time, attrs ...attribute.KeyValue) error {
	if globalTelemetry != nil {
		return globalTelemetry.RecordDuration(ctx, name, start, attrs...)
	}
	return nil
}
