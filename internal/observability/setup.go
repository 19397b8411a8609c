package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/teamlens/teamlens/internal/config"
)

type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
	promExporter   *prometheus.Exporter
	promHandler    http.Handler
	shutdownFuncs  []func(context.Context) error

	httpRequestCounter *promreg.CounterVec
	httpRequestLatency *promreg.HistogramVec
	upstreamLatency    *promreg.HistogramVec
	filterMutations    *promreg.CounterVec
	staleFetchCounter  *promreg.CounterVec
	exportCounter      *promreg.CounterVec
}

func Setup(ctx context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	if !cfg.EnableOTLP && !cfg.EnableMetrics {
		return nil, nil
	}

	provider := &Provider{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("teamlens"),
		),
	)
	if err != nil {
		return nil, err
	}

	if cfg.EnableOTLP {
		rawEndpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		endpoint := rawEndpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		opts := []otlptracegrpc.Option{}
		switch {
		case strings.HasPrefix(endpoint, "http://"):
			endpoint = strings.TrimPrefix(endpoint, "http://")
			opts = append(opts, otlptracegrpc.WithInsecure())
		case strings.HasPrefix(endpoint, "https://"):
			endpoint = strings.TrimPrefix(endpoint, "https://")
		default:
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))

		client := otlptracegrpc.NewClient(opts...)
		exporter, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		provider.tracerProvider = tp
		provider.shutdownFuncs = append(provider.shutdownFuncs, tp.Shutdown)
	}

	if cfg.EnableMetrics {
		registry := promreg.NewRegistry()
		promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, err
		}
		mp := metric.NewMeterProvider(
			metric.WithReader(promExporter),
			metric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		provider.meterProvider = mp
		provider.promExporter = promExporter
		provider.promHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
		provider.shutdownFuncs = append(provider.shutdownFuncs, mp.Shutdown)

		httpRequests := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "teamlens",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed.",
			},
			[]string{"method", "route", "status"},
		)
		latencyBuckets := []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10}
		httpLatency := promreg.NewHistogramVec(
			promreg.HistogramOpts{
				Namespace: "teamlens",
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   latencyBuckets,
			},
			[]string{"method", "route", "status"},
		)
		upstreamLatency := promreg.NewHistogramVec(
			promreg.HistogramOpts{
				Namespace: "teamlens",
				Name:      "upstream_request_duration_seconds",
				Help:      "Duration of analytics backend requests.",
				Buckets:   latencyBuckets,
			},
			[]string{"endpoint", "status"},
		)
		filterMutations := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "teamlens",
				Name:      "filter_mutations_total",
				Help:      "Filter state mutations by field and outcome.",
			},
			[]string{"field", "outcome"},
		)
		staleFetches := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "teamlens",
				Name:      "stale_fetches_total",
				Help:      "View fetches discarded because the filter changed mid-flight.",
			},
			[]string{"view"},
		)
		exports := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "teamlens",
				Name:      "exports_total",
				Help:      "Export requests by mode and format.",
			},
			[]string{"mode", "format"},
		)
		for _, c := range []promreg.Collector{httpRequests, httpLatency, upstreamLatency, filterMutations, staleFetches, exports} {
			if err := registry.Register(c); err != nil {
				return nil, err
			}
		}
		provider.httpRequestCounter = httpRequests
		provider.httpRequestLatency = httpLatency
		provider.upstreamLatency = upstreamLatency
		provider.filterMutations = filterMutations
		provider.staleFetchCounter = staleFetches
		provider.exportCounter = exports
	}

	return provider, nil
}

func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil || p.promHandler == nil {
		return nil
	}
	return p.promHandler
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracerProvider
}

func (p *Provider) RecordHTTPRequest(_ context.Context, method, route string, status int, duration time.Duration) {
	if p == nil {
		return
	}

	statusLabel := strconv.Itoa(status)

	if p.httpRequestCounter != nil {
		p.httpRequestCounter.WithLabelValues(method, route, statusLabel).Inc()
	}

	if p.httpRequestLatency != nil {
		p.httpRequestLatency.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
	}
}

func (p *Provider) RecordUpstreamRequest(endpoint string, status int, duration time.Duration) {
	if p == nil || p.upstreamLatency == nil {
		return
	}
	p.upstreamLatency.WithLabelValues(endpoint, strconv.Itoa(status)).Observe(duration.Seconds())
}

func (p *Provider) RecordFilterMutation(field, outcome string) {
	if p == nil || p.filterMutations == nil {
		return
	}
	p.filterMutations.WithLabelValues(field, outcome).Inc()
}

func (p *Provider) RecordStaleFetch(view string) {
	if p == nil || p.staleFetchCounter == nil {
		return
	}
	p.staleFetchCounter.WithLabelValues(view).Inc()
}

func (p *Provider) RecordExport(mode, format string) {
	if p == nil || p.exportCounter == nil {
		return
	}
	p.exportCounter.WithLabelValues(mode, format).Inc()
}
