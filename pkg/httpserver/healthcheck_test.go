package httpserver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/classboard/classboard/pkg/httpserver"
)

func TestHealthCheckHandler(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	probe := func(t *testing.T, h http.HandlerFunc) (int, string) {
		t.Helper()
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return rec.Code, rec.Body.String()
	}

	t.Run("liveness without dependencies", func(t *testing.T) {
		code, body := probe(t, httpserver.HealthCheckHandler(ctx, log))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ALIVE", body)
	})

	t.Run("readiness with healthy dependencies", func(t *testing.T) {
		ok := func(context.Context) error { return nil }
		code, body := probe(t, httpserver.HealthCheckHandler(ctx, log, ok, ok))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "READY", body)
	})

	t.Run("readiness with a failing dependency", func(t *testing.T) {
		ok := func(context.Context) error { return nil }
		bad := func(context.Context) error { return errors.New("connection refused") }
		code, body := probe(t, httpserver.HealthCheckHandler(ctx, log, ok, bad))
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, "NOT_READY", body)
	})
}
