// internal/models/serviceresponse/types.go
package serviceresponse

import apperrors "github.com/juancollazo-ch/shopify-cdclick-relay/internal/errors"

// RelayResult es lo que el pipeline devuelve al handler HTTP: el status y
// el texto que recibe Shopify, más el contexto para logs.
type RelayResult struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	CustomID   string `json:"custom_id,omitempty"`
	// Outcome: "delivered", "rejected", "unavailable", "skipped" o "" si no se intentó.
	Outcome string `json:"outcome,omitempty"`
	// WarehouseStatus es el status HTTP de CDClick, 0 si no hubo respuesta.
	WarehouseStatus int                 `json:"warehouse_status,omitempty"`
	Attempted       bool                `json:"attempted"`
	Err             *apperrors.AppError `json:"-"` // No se expone al cliente
}

// HTTPStatus es el status que recibe Shopify. Con error manda el del
// AppError.
func (r RelayResult) HTTPStatus() int {
	if r.Err != nil {
		return apperrors.GetStatusCode(r.Err)
	}
	return r.StatusCode
}

// Retryable indica si Shopify debe reintentar el webhook.
func (r RelayResult) Retryable() bool {
	return r.Err != nil && apperrors.IsRetryable(r.Err)
}
