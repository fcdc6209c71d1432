package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind clasifica el error según la taxonomía del relay.
type Kind string

const (
	KindTransport           Kind = "transport_error"
	KindAuth                Kind = "auth_error"
	KindFormat              Kind = "format_error"
	KindMapping             Kind = "mapping_error"
	KindDeliveryRejected    Kind = "delivery_rejected"
	KindDeliveryUnavailable Kind = "delivery_unavailable"
)

// AppError representa un error de aplicación con código HTTP y contexto
type AppError struct {
	Kind       Kind                   `json:"kind"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Internal   error                  `json:"-"` // No se expone al cliente
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"-"` // HTTP status code devuelto a Shopify
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// NewAppError crea un nuevo error de aplicación
func NewAppError(kind Kind, statusCode int, message string, internal error) *AppError {
	return &AppError{
		Kind:       kind,
		Message:    message,
		Internal:   internal,
		StatusCode: statusCode,
		Metadata:   make(map[string]interface{}),
		Retryable:  false,
	}
}

// WithDetails agrega detalles adicionales al error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithMetadata agrega metadata al error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithRetryable marca el error como reintentable
func (e *AppError) WithRetryable(retryable bool) *AppError {
	e.Retryable = retryable
	return e
}

// Errores del borde (4xx): nunca llegan al traductor.
var (
	ErrTransport = func(details string, err error) *AppError {
		return NewAppError(KindTransport, http.StatusBadRequest, "no body", err).
			WithDetails(details)
	}

	ErrAuth = func(details string, err error) *AppError {
		return NewAppError(KindAuth, http.StatusUnauthorized, "unauthorized", err).
			WithDetails(details)
	}

	ErrFormat = func(details string, err error) *AppError {
		return NewAppError(KindFormat, http.StatusBadRequest, "invalid json", err).
			WithDetails(details)
	}
)

// Errores de negocio: se responden con 200 para que Shopify no reintente.
var (
	ErrMapping = func(details string, err error) *AppError {
		return NewAppError(KindMapping, http.StatusOK, "mapping error", err).
			WithDetails(details)
	}

	ErrDeliveryRejected = func(warehouseStatus int, details string) *AppError {
		return NewAppError(KindDeliveryRejected, http.StatusOK, "received", nil).
			WithDetails(details).
			WithMetadata("warehouse_status_code", warehouseStatus)
	}
)

// ErrDeliveryUnavailable es el único error reintentable: el 500 hace que
// Shopify vuelva a enviar el webhook.
var ErrDeliveryUnavailable = func(message string, warehouseStatus int, err error) *AppError {
	return NewAppError(KindDeliveryUnavailable, http.StatusInternalServerError, message, err).
		WithMetadata("warehouse_status_code", warehouseStatus).
		WithRetryable(true)
}

// IsRetryable verifica si un error es reintentable
func IsRetryable(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode obtiene el código HTTP de un error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// KindOf devuelve la categoría del error, o "" si no es un AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
