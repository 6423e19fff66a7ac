package health

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"idregistry/pkg/testutil"
)

func TestHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("all checks pass", func(t *testing.T) {
		h := Handler(map[string]CheckFunc{"postgres": ok, "redis": ok}, time.Second, discard)
		rr := testutil.Serve(h, testutil.NewRequest(t, http.MethodGet, "/health"))

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.DecodeJSON[Response](t, rr)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, resp.Checks)
	})

	t.Run("failing check degrades without leaking the error", func(t *testing.T) {
		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		h := Handler(map[string]CheckFunc{
			"postgres": ok,
			"kafka":    func(context.Context) error { return errors.New("dial tcp 10.0.0.7:9092: connection refused") },
		}, time.Second, logger)
		rr := testutil.Serve(h, testutil.NewRequest(t, http.MethodGet, "/health"))

		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		assert.NotContains(t, rr.Body.String(), "10.0.0.7")
		resp := testutil.DecodeJSON[Response](t, rr)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "unavailable", resp.Checks["kafka"])
		assert.Equal(t, "ok", resp.Checks["postgres"])
		assert.Contains(t, logs.String(), "connection refused")
	})

	t.Run("no checks is healthy", func(t *testing.T) {
		rr := testutil.Serve(Handler(nil, time.Second, nil), testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("checks share the timeout", func(t *testing.T) {
		slow := func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
		h := Handler(map[string]CheckFunc{"slow": slow}, 10*time.Millisecond, discard)
		rr := testutil.Serve(h, testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	})
}
