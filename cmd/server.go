package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/config"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/handlers"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/logging"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/observability"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/service"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/translate"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/warehouse"
)

// Convertir niveles de Zap a severidad de GCP Cloud Logging
func zapLevelToGCPSeverity(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString("DEBUG")
	case zapcore.InfoLevel:
		enc.AppendString("INFO")
	case zapcore.WarnLevel:
		enc.AppendString("WARNING")
	case zapcore.ErrorLevel:
		enc.AppendString("ERROR")
	case zapcore.DPanicLevel, zapcore.PanicLevel:
		enc.AppendString("CRITICAL")
	case zapcore.FatalLevel:
		enc.AppendString("EMERGENCY")
	default:
		enc.AppendString("DEFAULT")
	}
}

func newLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	// Configurar para Cloud Logging (JSON estructurado)
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.LevelKey = "severity"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeLevel = zapLevelToGCPSeverity
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build()
}

// MAIN: carga configuración, inicializa dependencias y levanta el servidor
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Reemplazar logger global
	zap.ReplaceGlobals(logger)

	for _, w := range cfg.Warnings {
		zap.L().Warn(w)
	}

	instruments, shutdownTelemetry, err := observability.Init(context.Background(), observability.Settings{
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Stdout:       cfg.TelemetryStdout,
	})
	if err != nil {
		zap.L().Error("Failed to initialize telemetry, continuing without it", zap.Error(err))
		instruments = nil
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// Inicializar dependencias
	translator, err := translate.New(translate.Options{
		Policy:   cfg.SKUPolicy,
		SKUTable: cfg.SKUTable,
		Idle:     cfg.Idle,
	})
	if err != nil {
		zap.L().Error("Failed to build translator", zap.Error(err))
		os.Exit(1)
	}

	warehouseClient, err := warehouse.NewClient(warehouse.ClientConfig{
		BaseURL:         cfg.WarehouseBaseURL,
		Token:           cfg.WarehouseToken,
		Timeout:         cfg.WarehouseTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
	})
	if err != nil {
		zap.L().Error("Failed to start warehouse client", zap.Error(err))
		os.Exit(1)
	}

	relay := service.NewRelayService(cfg.ShopifyWebhookSecret, translator, warehouseClient,
		service.WithTracer(instruments.Tracer("relay")),
		service.WithMeter(instruments.Meter("relay")),
	)

	// HTTP ROUTES
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HealthHandler(cfg.ServiceName))
	mux.Handle("/api/webhooks/shopify/orders-create", withLogging(cfg.GCPProject, handlers.NewOrdersCreateHandler(relay)))
	mux.Handle("/api/cdclick/webhook", withLogging(cfg.GCPProject, handlers.NewNotificationHandler(cfg.WarehouseToken)))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// Debe cubrir el timeout de CDClick más el procesamiento propio
		WriteTimeout: cfg.WarehouseTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// GRACEFUL SHUTDOWN
	idle := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		<-sigChan

		zap.L().Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Shutdown espera a que terminen las entregas en curso
		if err := server.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("Graceful shutdown failed", zap.Error(err))
		}
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			zap.L().Warn("Telemetry shutdown failed", zap.Error(err))
		}
		close(idle)
	}()

	zap.L().Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("warehouse_endpoint", warehouseClient.Endpoint()),
		zap.String("sku_policy", string(translator.Policy())),
		zap.Bool("idle", cfg.Idle),
		zap.String("environment", cfg.Environment),
		zap.Bool("otlp_export", cfg.OTLPEndpoint != ""),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zap.L().Error("Server stopped unexpectedly", zap.Error(err))
		os.Exit(1)
	}

	<-idle
	zap.L().Info("Server exited")
}

// MIDDLEWARE: Logging con Trace ID compatible con GCP.
// Sin projectID no se agrega el campo de trace de Cloud Logging.
func withLogging(projectID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := traceIDFromHeader(r.Header.Get("X-Cloud-Trace-Context"))
		if traceID == "" {
			traceID = uuid.NewString()
		}

		// Guardar traceID en contexto
		ctx := logging.WithTraceID(r.Context(), traceID)

		logFields := []zap.Field{
			zap.String("httpRequest.requestMethod", r.Method),
			zap.String("httpRequest.requestUrl", r.URL.Path),
			zap.String("httpRequest.remoteIp", r.RemoteAddr),
			zap.String("httpRequest.userAgent", r.UserAgent()),
		}
		if projectID != "" {
			logFields = append(logFields, zap.String("logging.googleapis.com/trace", fmt.Sprintf("projects/%s/traces/%s", projectID, traceID)))
		}

		zap.L().Info("Request started", logFields...)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		duration := time.Since(start)

		completedFields := []zap.Field{
			zap.String("httpRequest.requestMethod", r.Method),
			zap.String("httpRequest.requestUrl", r.URL.Path),
			zap.Int("httpRequest.status", rec.status),
			zap.Int64("httpRequest.latency.milliseconds", duration.Milliseconds()),
			zap.Float64("httpRequest.latency.seconds", duration.Seconds()),
		}
		if projectID != "" {
			completedFields = append(completedFields, zap.String("logging.googleapis.com/trace", fmt.Sprintf("projects/%s/traces/%s", projectID, traceID)))
		}

		zap.L().Info("Request completed", completedFields...)
	})
}

// Formato: TRACE_ID/SPAN_ID;o=TRACE_TRUE. Solo necesitamos TRACE_ID
func traceIDFromHeader(header string) string {
	if slashIdx := strings.IndexByte(header, '/'); slashIdx != -1 {
		return header[:slashIdx]
	}
	return header
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
