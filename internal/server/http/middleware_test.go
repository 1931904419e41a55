package httpserver

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRequestLogMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := &Server{logger: zerolog.New(&buf)}

	handler := correlationIDMiddleware(s.requestLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "corr-123", rec.Header().Get("X-Correlation-ID"))

	line := buf.String()
	assert.Contains(t, line, `"request_id":"corr-123"`)
	assert.Contains(t, line, `"method":"GET"`)
	assert.Contains(t, line, `"path":"/api/v1/papers"`)
	assert.Contains(t, line, `"status":418`)
}

func TestCorrelationIDGenerated(t *testing.T) {
	t.Parallel()

	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}
