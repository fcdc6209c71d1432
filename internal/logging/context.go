// internal/logging/context.go
package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/contextkeys"
)

// Headers que Shopify agrega a cada webhook.
const (
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
)

// FieldsFromContext extrae los campos de logging (trace_id, shop_domain,
// webhook_id) del contexto y los devuelve como un slice de zap.Field.
func FieldsFromContext(ctx context.Context) []zap.Field {
	fields := []zap.Field{}
	if ctx == nil {
		return fields
	}
	if tid, ok := ctx.Value(contextkeys.TraceIDKey).(string); ok && tid != "" {
		fields = append(fields, zap.String("trace_id", tid))
	}
	if shop, ok := ctx.Value(contextkeys.ShopDomainKey).(string); ok && shop != "" {
		fields = append(fields, zap.String("shop_domain", shop))
	}
	if wid, ok := ctx.Value(contextkeys.WebhookIDKey).(string); ok && wid != "" {
		fields = append(fields, zap.String("webhook_id", wid))
	}
	return fields
}

// WithTraceID guarda el trace id en el contexto.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, contextkeys.TraceIDKey, traceID)
}

// WithRequestFields añade shop_domain y webhook_id al contexto si están presentes.
func WithRequestFields(ctx context.Context, shopDomain, webhookID string) context.Context {
	if shopDomain != "" {
		ctx = context.WithValue(ctx, contextkeys.ShopDomainKey, shopDomain)
	}
	if webhookID != "" {
		ctx = context.WithValue(ctx, contextkeys.WebhookIDKey, webhookID)
	}
	return ctx
}

// L devuelve el logger global con los campos del contexto.
func L(ctx context.Context) *zap.Logger {
	return zap.L().With(FieldsFromContext(ctx)...)
}
