package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/juancollazo-ch/shopify-cdclick-relay/internal/errors"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/models/serviceresponse"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/service"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/signature"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/translate"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/warehouse"
)

const (
	testSecret = "shpss_handler_test"
	testToken  = "cdclick-token"
)

const orderBody = `{"id":820982911946154508,"name":"#1001","email":"jon@example.com",` +
	`"shipping_address":{"first_name":"Jon","address1":"12 Rue A","city":"Paris","zip":"75001","country_code":"FR"},` +
	`"line_items":[{"id":1,"sku":"1042","quantity":2}]}`

type fakeWarehouse struct {
	*httptest.Server
	calls atomic.Int32
}

func newFakeWarehouse(t *testing.T, status int, body string) *fakeWarehouse {
	t.Helper()
	fw := &fakeWarehouse{}
	fw.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fw.calls.Add(1)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(fw.Close)
	return fw
}

func newHandler(t *testing.T, baseURL string, timeout time.Duration) *OrdersCreateHandler {
	t.Helper()
	tr, err := translate.New(translate.Options{Policy: translate.SKUPolicyNumeric})
	require.NoError(t, err)

	client, err := warehouse.NewClient(warehouse.ClientConfig{BaseURL: baseURL, Token: testToken, Timeout: timeout})
	require.NoError(t, err)

	return NewOrdersCreateHandler(service.NewRelayService(testSecret, tr, client))
}

func signedRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/shopify/orders-create", strings.NewReader(body))
	req.Header.Set(signature.HeaderHMAC, signature.Sign(testSecret, []byte(body)))
	req.Header.Set("X-Shopify-Shop-Domain", "test.myshopify.com")
	return req
}

func TestOrdersCreate_ClassificationEndToEnd(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "delivered", status: 201, body: `{"success":true}`, wantStatus: 200, wantBody: "ok"},
		{name: "rejected", status: 422, body: `{"error":"bad sku"}`, wantStatus: 200, wantBody: "received"},
		{name: "unavailable", status: 503, body: `maintenance`, wantStatus: 500, wantBody: "warehouse error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := newFakeWarehouse(t, tt.status, tt.body)
			h := newHandler(t, fw.URL, time.Second)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, signedRequest(orderBody))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, int32(1), fw.calls.Load())
		})
	}
}

func TestOrdersCreate_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	rec := httptest.NewRecorder()
	newHandler(t, base, time.Second).ServeHTTP(rec, signedRequest(orderBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "warehouse network error", rec.Body.String())
}

func TestOrdersCreate_WarehouseTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	rec := httptest.NewRecorder()
	newHandler(t, srv.URL, 50*time.Millisecond).ServeHTTP(rec, signedRequest(orderBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOrdersCreate_TamperedSignature(t *testing.T) {
	fw := newFakeWarehouse(t, 201, `{"success":true}`)
	h := newHandler(t, fw.URL, time.Second)

	req := signedRequest(orderBody)
	tampered := strings.Replace(orderBody, `"quantity":2`, `"quantity":20`, 1)
	req.Body = httptestBody(tampered)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", rec.Body.String())
	assert.Zero(t, fw.calls.Load())
}

func TestOrdersCreate_ZeroLineItems(t *testing.T) {
	fw := newFakeWarehouse(t, 201, `{"success":true}`)
	h := newHandler(t, fw.URL, time.Second)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(`{"id":5,"name":"#1005","line_items":[]}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no line items", rec.Body.String())
	assert.Zero(t, fw.calls.Load())
}

func TestOrdersCreate_MappingError(t *testing.T) {
	fw := newFakeWarehouse(t, 201, `{"success":true}`)
	h := newHandler(t, fw.URL, time.Second)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(`{"id":5,"name":"#1005","line_items":[{"id":1,"sku":"HAT","quantity":1}]}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mapping error", rec.Body.String())
	assert.Zero(t, fw.calls.Load())
}

func TestOrdersCreate_MistypedFieldsAreMappingErrors(t *testing.T) {
	bodies := map[string]string{
		"fractional quantity": `{"id":5,"name":"#1005","line_items":[{"id":1,"sku":"1042","quantity":1.5}]}`,
		"boolean quantity":    `{"id":5,"name":"#1005","line_items":[{"id":1,"sku":"1042","quantity":true}]}`,
		"string address":      `{"id":5,"name":"#1005","shipping_address":"12 Rue A","line_items":[{"id":1,"sku":"1042","quantity":1}]}`,
		"string line items":   `{"id":5,"name":"#1005","line_items":"1042"}`,
		"array document":      `[{"id":5}]`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			fw := newFakeWarehouse(t, 201, `{"success":true}`)
			h := newHandler(t, fw.URL, time.Second)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, signedRequest(body))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "mapping error", rec.Body.String())
			assert.Zero(t, fw.calls.Load())
		})
	}
}

func TestOrdersCreate_LooselyTypedScalarsAreDelivered(t *testing.T) {
	fw := newFakeWarehouse(t, 201, `{"success":true}`)
	h := newHandler(t, fw.URL, time.Second)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(`{"id":5,"name":1005,"line_items":[{"id":1,"sku":1042,"quantity":"2"}]}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, int32(1), fw.calls.Load())
}

func TestOrdersCreate_LogsRetryableOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	for _, tc := range []struct {
		status    int
		body      string
		retryable bool
	}{
		{status: 503, body: `maintenance`, retryable: true},
		{status: 422, body: `{"error":"bad sku"}`, retryable: false},
	} {
		fw := newFakeWarehouse(t, tc.status, tc.body)
		rec := httptest.NewRecorder()
		newHandler(t, fw.URL, time.Second).ServeHTTP(rec, signedRequest(orderBody))

		entries := logs.TakeAll()
		var answered []observer.LoggedEntry
		for _, e := range entries {
			if e.Message == "order webhook answered" {
				answered = append(answered, e)
			}
		}
		require.Len(t, answered, 1)
		fields := answered[0].ContextMap()
		assert.Equal(t, tc.retryable, fields["retryable"])
		assert.Equal(t, int64(rec.Code), fields["status"])
		assert.Equal(t, "1001", fields["custom_id"])
	}
}

type stubRelay struct {
	result serviceresponse.RelayResult
}

func (s stubRelay) HandleOrderCreated(context.Context, []byte, string) serviceresponse.RelayResult {
	return s.result
}

func TestOrdersCreate_StatusComesFromAppError(t *testing.T) {
	appErr := apperrors.ErrDeliveryUnavailable("warehouse error", 503, nil)
	h := NewOrdersCreateHandler(stubRelay{result: serviceresponse.RelayResult{Message: "warehouse error", Err: appErr}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(orderBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "warehouse error", rec.Body.String())
}

func TestOrdersCreate_InvalidJSON(t *testing.T) {
	fw := newFakeWarehouse(t, 201, `{"success":true}`)
	h := newHandler(t, fw.URL, time.Second)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(`not json`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid json", rec.Body.String())
	assert.Zero(t, fw.calls.Load())
}

func TestOrdersCreate_MethodNotAllowed(t *testing.T) {
	h := newHandler(t, "http://127.0.0.1:1", time.Second)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/webhooks/shopify/orders-create", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "POST", rec.Header().Get("Allow"))
	}
}

func TestOrdersCreate_UnreadableBody(t *testing.T) {
	h := newHandler(t, "http://127.0.0.1:1", time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/shopify/orders-create", iotest.ErrReader(errors.New("client went away")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no body", rec.Body.String())
}

func TestOrdersCreate_OversizedBody(t *testing.T) {
	h := newHandler(t, "http://127.0.0.1:1", time.Second)

	big := bytes.Repeat([]byte("a"), maxWebhookBody+1)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/shopify/orders-create", bytes.NewReader(big))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func httptestBody(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}
