// Package health serves the readiness endpoint over the configured backends.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"idregistry/pkg/platform/httputil"
	"idregistry/pkg/requestcontext"
)

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"
)

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Response is the body of the health endpoint. Check failures are reported
// as "unavailable"; the underlying error is only logged.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler runs every check concurrently under timeout and answers 200 when
// all pass, 503 otherwise.
func Handler(checks map[string]CheckFunc, timeout time.Duration, logger *slog.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results := make(map[string]string, len(names))
		var mu sync.Mutex
		var g errgroup.Group
		for _, name := range names {
			check := checks[name]
			g.Go(func() error {
				status := statusOK
				if err := check(ctx); err != nil {
					status = statusUnavailable
					if logger != nil {
						logger.WarnContext(ctx, "health check failed",
							"check", name,
							"error", err,
							"request_id", requestcontext.RequestID(ctx),
						)
					}
				}
				mu.Lock()
				results[name] = status
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		resp := Response{Status: statusOK, Checks: results}
		code := http.StatusOK
		for _, status := range results {
			if status != statusOK {
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				break
			}
		}
		httputil.WriteJSON(w, code, resp)
	}
}
