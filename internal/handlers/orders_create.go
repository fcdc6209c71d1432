package handlers

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/juancollazo-ch/shopify-cdclick-relay/internal/errors"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/logging"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/models/serviceresponse"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/signature"
)

// Shopify limita los webhooks a unos pocos KB; 2 MiB deja margen de sobra.
const maxWebhookBody = 2 << 20

// OrderRelay es el pipeline que procesa el webhook orders/create.
type OrderRelay interface {
	HandleOrderCreated(ctx context.Context, raw []byte, hmacHeader string) serviceresponse.RelayResult
}

type OrdersCreateHandler struct {
	relay OrderRelay
}

func NewOrdersCreateHandler(relay OrderRelay) *OrdersCreateHandler {
	return &OrdersCreateHandler{relay: relay}
}

func (h *OrdersCreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	ctx := logging.WithRequestFields(r.Context(),
		r.Header.Get(logging.HeaderShopDomain),
		r.Header.Get(logging.HeaderWebhookID),
	)

	// El body se lee crudo: la firma depende de los bytes exactos.
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		appErr := apperrors.ErrTransport("request body could not be read", err)
		logging.L(ctx).Warn("order webhook body unreadable", zap.Error(appErr))
		writeText(w, appErr.StatusCode, appErr.Message)
		return
	}

	result := h.relay.HandleOrderCreated(ctx, raw, r.Header.Get(signature.HeaderHMAC))
	status := result.HTTPStatus()
	logging.L(ctx).Info("order webhook answered",
		zap.Int("status", status),
		zap.String("custom_id", result.CustomID),
		zap.String("outcome", result.Outcome),
		zap.Bool("retryable", result.Retryable()),
	)
	writeText(w, status, result.Message)
}

func methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", http.MethodPost)
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, message)
}
