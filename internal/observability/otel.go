package observability

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Instruments agrupa los providers de OpenTelemetry del proceso.
type Instruments struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Settings sale de config.Config; Init no lee el entorno.
type Settings struct {
	ServiceName string
	Environment string
	// OTLPEndpoint vacío: no se exporta por OTLP.
	OTLPEndpoint string
	// Stdout exporta spans y métricas a stderr cuando no hay endpoint.
	// Apagado por defecto para no mezclarlos con los logs de zap.
	Stdout bool
	// MetricInterval es el período de export de métricas (0 = default del SDK).
	MetricInterval time.Duration
}

// Init configura tracing y métricas. Devuelve una función de shutdown que
// se debe llamar al salir para hacer flush de spans y métricas pendientes.
func Init(ctx context.Context, settings Settings) (*Instruments, func(context.Context) error, error) {
	environment := settings.Environment
	if environment == "" {
		environment = "local"
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", settings.ServiceName),
			attribute.String("deployment.environment", environment),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	spanExporter, err := newSpanExporter(ctx, settings)
	if err != nil {
		return nil, nil, err
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if spanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter))
	}
	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := newMetricExporter(ctx, settings)
	if err != nil {
		return nil, nil, errors.Join(err, tracerProvider.Shutdown(ctx))
	}

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if metricExporter != nil {
		var readerOpts []sdkmetric.PeriodicReaderOption
		if settings.MetricInterval > 0 {
			readerOpts = append(readerOpts, sdkmetric.WithInterval(settings.MetricInterval))
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, readerOpts...)))
	}
	meterProvider := sdkmetric.NewMeterProvider(meterOpts...)
	otel.SetMeterProvider(meterProvider)

	shutdown := func(ctx context.Context) error {
		return errors.Join(meterProvider.Shutdown(ctx), tracerProvider.Shutdown(ctx))
	}

	return &Instruments{TracerProvider: tracerProvider, MeterProvider: meterProvider}, shutdown, nil
}

// Tracer devuelve un tracer del provider configurado, o no-op.
func (i *Instruments) Tracer(name string) trace.Tracer {
	if i == nil || i.TracerProvider == nil {
		return nooptrace.NewTracerProvider().Tracer(name)
	}
	return i.TracerProvider.Tracer(name)
}

// Meter devuelve un meter del provider configurado, o no-op.
func (i *Instruments) Meter(name string) metric.Meter {
	if i == nil || i.MeterProvider == nil {
		return metricnoop.NewMeterProvider().Meter(name)
	}
	return i.MeterProvider.Meter(name)
}

// Sin endpoint ni Stdout devuelve nil: los spans se crean pero no salen
// del proceso.
func newSpanExporter(ctx context.Context, settings Settings) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(settings.OTLPEndpoint)
	if endpoint == "" {
		if settings.Stdout {
			return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		}
		return nil, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(signalURL(endpoint, "/v1/traces")))
	if err == nil {
		return exporter, nil
	}
	if !settings.Stdout {
		return nil, err
	}
	zap.L().Warn("failed to initialize OTLP trace exporter, falling back to stdout", zap.Error(err))
	return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
}

// Mismo criterio que newSpanExporter.
func newMetricExporter(ctx context.Context, settings Settings) (sdkmetric.Exporter, error) {
	endpoint := strings.TrimSpace(settings.OTLPEndpoint)
	if endpoint == "" {
		if settings.Stdout {
			return stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		}
		return nil, nil
	}

	exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(signalURL(endpoint, "/v1/metrics")))
	if err == nil {
		return exporter, nil
	}
	if !settings.Stdout {
		return nil, err
	}
	zap.L().Warn("failed to initialize OTLP metric exporter, falling back to stdout", zap.Error(err))
	return stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
}

// OTEL_EXPORTER_OTLP_ENDPOINT es la base; cada señal agrega su path.
func signalURL(endpoint, signalPath string) string {
	return strings.TrimRight(endpoint, "/") + signalPath
}
