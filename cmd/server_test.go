package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/contextkeys"
)

func TestTraceIDFromHeader(t *testing.T) {
	assert.Equal(t, "105445aa7843bc8bf206b12000100000", traceIDFromHeader("105445aa7843bc8bf206b12000100000/1;o=1"))
	assert.Equal(t, "abc", traceIDFromHeader("abc"))
	assert.Equal(t, "", traceIDFromHeader(""))
}

func TestWithLogging_InjectsTraceIDAndKeepsStatus(t *testing.T) {
	var seen string
	h := withLogging("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(contextkeys.TraceIDKey).(string)
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/cdclick/webhook", nil)
	req.Header.Set("X-Cloud-Trace-Context", "trace-123/456;o=1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "trace-123", seen)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.NotEmpty(t, seen)
	assert.Len(t, seen, 36)
}

func TestWithLogging_GCPTraceField(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	completedFields := func(projectID string) map[string]interface{} {
		core, logs := observer.New(zap.InfoLevel)
		restore := zap.ReplaceGlobals(zap.New(core))
		defer restore()

		req := httptest.NewRequest(http.MethodPost, "/api/cdclick/webhook", nil)
		req.Header.Set("X-Cloud-Trace-Context", "trace-123/456;o=1")
		withLogging(projectID, ok).ServeHTTP(httptest.NewRecorder(), req)

		completed := logs.FilterMessage("Request completed").All()
		require.Len(t, completed, 1)
		return completed[0].ContextMap()
	}

	assert.Equal(t, "projects/relay-prod/traces/trace-123", completedFields("relay-prod")["logging.googleapis.com/trace"])
	assert.NotContains(t, completedFields(""), "logging.googleapis.com/trace")
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = newLogger("loud")
	require.Error(t, err)
}
