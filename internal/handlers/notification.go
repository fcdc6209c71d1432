package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/logging"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/signature"
)

// NotificationHandler acusa recibo de las notificaciones de CDClick.
// Solo autentica con el token estático y loguea el payload.
type NotificationHandler struct {
	token string
}

func NewNotificationHandler(token string) *NotificationHandler {
	return &NotificationHandler{token: token}
}

func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	logger := logging.L(r.Context())

	got := r.Header.Get(signature.HeaderAPIKey)
	if !signature.TokenMatches(h.token, got) {
		logger.Warn("CDClick webhook: bad apikey", zap.Bool("apikey_present", got != ""))
		writeText(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		// Se acusa recibo igual: este endpoint siempre responde 200 si autentica.
		logger.Warn("CDClick webhook: body unreadable", zap.Error(err))
	}

	logger.Info("CDClick webhook payload", zap.ByteString("payload", body))
	writeText(w, http.StatusOK, "ok")
}
