package service

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	apperrors "github.com/juancollazo-ch/shopify-cdclick-relay/internal/errors"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/logging"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/models"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/models/serviceresponse"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/signature"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/translate"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/warehouse"
)

const instrumentationName = "github.com/juancollazo-ch/shopify-cdclick-relay/internal/service"

// Translator convierte la orden de Shopify al esquema de CDClick.
type Translator interface {
	Translate(order models.InboundOrder) (models.WarehouseOrder, error)
}

// Deliverer hace un único intento de entrega y lo clasifica.
type Deliverer interface {
	Deliver(ctx context.Context, order models.WarehouseOrder) warehouse.Result
}

// RelayService ejecuta autenticación -> decodificación -> traducción -> entrega.
// No guarda estado mutable entre requests; es seguro para uso concurrente.
type RelayService struct {
	secret     string
	translator Translator
	deliverer  Deliverer

	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

type Option func(*RelayService)

// WithTracer inyecta el tracer.
func WithTracer(tr trace.Tracer) Option {
	return func(s *RelayService) {
		if tr != nil {
			s.tracer = tr
		}
	}
}

// WithMeter inyecta el meter del contador de resultados.
func WithMeter(m metric.Meter) Option {
	return func(s *RelayService) {
		if m == nil {
			return
		}
		counter, err := m.Int64Counter("relay.orders",
			metric.WithDescription("Order webhooks by pipeline outcome"))
		if err != nil {
			zap.L().Warn("failed to create relay.orders counter", zap.Error(err))
			return
		}
		s.outcomes = counter
	}
}

func NewRelayService(secret string, translator Translator, deliverer Deliverer, opts ...Option) *RelayService {
	s := &RelayService{
		secret:     secret,
		translator: translator,
		deliverer:  deliverer,
		tracer:     nooptrace.NewTracerProvider().Tracer(instrumentationName),
	}
	WithMeter(metricnoop.NewMeterProvider().Meter(instrumentationName))(s)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ---------------------------------------------------------
// MÉTODO PRINCIPAL
// ---------------------------------------------------------
// HandleOrderCreated procesa un webhook orders/create. raw debe ser el body
// exactamente como llegó. Todo camino termina en un RelayResult.
func (s *RelayService) HandleOrderCreated(ctx context.Context, raw []byte, hmacHeader string) (result serviceresponse.RelayResult) {
	ctx, span := s.tracer.Start(ctx, "RelayService.HandleOrderCreated")
	defer func() {
		span.SetAttributes(
			attribute.Int("relay.status_code", result.StatusCode),
			attribute.String("relay.outcome", result.Outcome),
			attribute.String("relay.custom_id", result.CustomID),
		)
		if result.StatusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, result.Message)
		}
		span.End()
		s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeLabel(result))))
	}()

	logger := logging.L(ctx)

	// 1) Autenticar antes de parsear nada
	if !signature.Verify(s.secret, raw, hmacHeader) {
		appErr := apperrors.ErrAuth("hmac verification failed", nil)
		logger.Warn("order webhook rejected: bad hmac", zap.Int("body_bytes", len(raw)))
		return fromError(appErr)
	}

	// 2) Decodificar una sola vez en el borde
	order, err := models.DecodeInboundOrder(raw)
	if errors.Is(err, models.ErrOrderShape) {
		// JSON válido pero con otra forma: reintentar no lo arregla.
		appErr := apperrors.ErrMapping("body does not match the order schema", err)
		logger.Error("mapping error", zap.Error(err))
		return fromError(appErr)
	}
	if err != nil {
		appErr := apperrors.ErrFormat("body is not a valid order document", err)
		logger.Warn("order webhook rejected: invalid json", zap.Error(err))
		return fromError(appErr)
	}

	customID := translate.CustomID(order)
	logger = logger.With(zap.String("custom_id", customID), zap.String("order_id", order.ID.String()))

	// Guard: sin line items no hay nada que enviar (no es error, Shopify no debe reintentar)
	if len(order.LineItems) == 0 {
		logger.Info("order skipped: no line items")
		return serviceresponse.RelayResult{
			StatusCode: http.StatusOK,
			Message:    "no line items",
			CustomID:   customID,
			Outcome:    "skipped",
		}
	}

	// 3) Traducir
	_, tspan := s.tracer.Start(ctx, "translate")
	payload, err := s.translator.Translate(order)
	tspan.End()
	if err != nil {
		appErr := apperrors.ErrMapping(err.Error(), err)
		fields := []zap.Field{zap.Error(err)}
		var mErr *translate.MappingError
		if errors.As(err, &mErr) {
			fields = append(fields, zap.String("sku", mErr.SKU), zap.String("line_item_id", mErr.LineItemID))
		}
		logger.Error("mapping error", fields...)

		res := fromError(appErr)
		res.CustomID = customID
		return res
	}

	// 4) Entregar. La desconexión de Shopify no cancela la entrega: CDClick
	// puede estar procesándola ya. El timeout del cliente la acota.
	dctx, dspan := s.tracer.Start(context.WithoutCancel(ctx), "deliver")
	delivery := s.deliverer.Deliver(dctx, payload)
	dspan.SetAttributes(
		attribute.String("warehouse.outcome", delivery.Outcome.String()),
		attribute.Int("warehouse.status_code", delivery.StatusCode),
	)
	dspan.End()

	return s.fromDelivery(logger, customID, delivery)
}

func (s *RelayService) fromDelivery(logger *zap.Logger, customID string, d warehouse.Result) serviceresponse.RelayResult {
	res := serviceresponse.RelayResult{
		CustomID:        customID,
		Outcome:         d.Outcome.String(),
		WarehouseStatus: d.StatusCode,
		Attempted:       true,
	}

	switch d.Outcome {
	case warehouse.OutcomeDelivered:
		logger.Info("order delivered to warehouse", zap.Int("warehouse_status", d.StatusCode))
		res.StatusCode = http.StatusOK
		res.Message = "ok"

	case warehouse.OutcomeUnavailable:
		message := "warehouse error"
		if d.Err != nil {
			message = "warehouse network error"
		}
		res.Err = apperrors.ErrDeliveryUnavailable(message, d.StatusCode, d.Err).WithDetails(d.Reason)
		res.StatusCode = res.Err.StatusCode
		res.Message = message
		logger.Error("warehouse unavailable, asking Shopify to retry",
			zap.Int("warehouse_status", d.StatusCode),
			zap.String("reason", d.Reason),
			zap.ByteString("warehouse_body", d.Body),
		)

	default:
		// 4xx o validación: reintentar el mismo payload no cambia la respuesta.
		res.Err = apperrors.ErrDeliveryRejected(d.StatusCode, d.Reason)
		res.StatusCode = res.Err.StatusCode
		res.Message = res.Err.Message
		logger.Error("ALERT: warehouse rejected order permanently",
			zap.Int("warehouse_status", d.StatusCode),
			zap.String("reason", d.Reason),
			zap.ByteString("warehouse_body", d.Body),
		)
	}

	return res
}

func fromError(appErr *apperrors.AppError) serviceresponse.RelayResult {
	return serviceresponse.RelayResult{
		StatusCode: appErr.StatusCode,
		Message:    appErr.Message,
		Err:        appErr,
	}
}

func outcomeLabel(r serviceresponse.RelayResult) string {
	if r.Outcome != "" {
		return r.Outcome
	}
	if r.Err != nil {
		if kind := apperrors.KindOf(r.Err); kind != "" {
			return string(kind)
		}
	}
	return "unknown"
}
