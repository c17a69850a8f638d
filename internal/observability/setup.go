package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/storyreel/backend/internal/catalog"
	"github.com/storyreel/backend/internal/config"
)

type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
	promExporter   *prometheus.Exporter
	promHandler    http.Handler
	shutdownFuncs  []func(context.Context) error

	httpRequestCounter *promreg.CounterVec
	httpRequestLatency *promreg.HistogramVec
	creditsSpent       *promreg.CounterVec
	realCost           *promreg.CounterVec
	generationLatency  *promreg.HistogramVec
}

func Setup(ctx context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	if !cfg.EnableOTLP && !cfg.EnableMetrics {
		return nil, nil
	}

	provider := &Provider{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("storyreel-backend"),
		),
	)
	if err != nil {
		return nil, err
	}

	if cfg.EnableOTLP {
		endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
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
				Namespace: "storyreel",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed.",
			},
			[]string{"method", "route", "status"},
		)
		latencyBuckets := []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30, 60}
		httpLatency := promreg.NewHistogramVec(
			promreg.HistogramOpts{
				Namespace: "storyreel",
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   latencyBuckets,
			},
			[]string{"method", "route", "status"},
		)
		creditsSpent := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "storyreel",
				Name:      "credits_spent_total",
				Help:      "Total credits deducted from user balances.",
			},
			[]string{"action", "provider"},
		)
		realCost := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "storyreel",
				Name:      "real_cost_usd_total",
				Help:      "Total upstream provider cost in USD.",
			},
			[]string{"action", "provider"},
		)
		generationLatency := promreg.NewHistogramVec(
			promreg.HistogramOpts{
				Namespace: "storyreel",
				Name:      "generation_duration_seconds",
				Help:      "Duration of upstream generation requests.",
				Buckets:   latencyBuckets,
			},
			[]string{"operation", "provider", "status"},
		)
		for _, collector := range []promreg.Collector{httpRequests, httpLatency, creditsSpent, realCost, generationLatency} {
			if err := registry.Register(collector); err != nil {
				return nil, err
			}
		}
		provider.httpRequestCounter = httpRequests
		provider.httpRequestLatency = httpLatency
		provider.creditsSpent = creditsSpent
		provider.realCost = realCost
		provider.generationLatency = generationLatency
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

// RecordSpend feeds the ledger-side counters after a successful deduction or
// cost attribution.
func (p *Provider) RecordSpend(actionType catalog.ActionType, provider catalog.Provider, amount int64, realCost decimal.Decimal) {
	if p == nil {
		return
	}
	if p.creditsSpent != nil && amount > 0 {
		p.creditsSpent.WithLabelValues(actionType.String(), provider.String()).Add(float64(amount))
	}
	if p.realCost != nil && realCost.IsPositive() {
		p.realCost.WithLabelValues(actionType.String(), provider.String()).Add(realCost.InexactFloat64())
	}
}

// RecordGeneration tracks upstream generation latency per operation.
func (p *Provider) RecordGeneration(operation catalog.Operation, provider catalog.Provider, status string, duration time.Duration) {
	if p == nil || p.generationLatency == nil {
		return
	}
	p.generationLatency.WithLabelValues(operation.String(), provider.String(), status).Observe(duration.Seconds())
}
