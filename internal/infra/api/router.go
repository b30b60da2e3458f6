package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	portuc "persona-research/internal/domain/ports/usecase"
	"persona-research/internal/infra/api/apiv1"
)

// Check is a named readiness check, e.g. a repository or cache ping.
type Check func(ctx context.Context) error

type Deps struct {
	Research       portuc.ResearchManager
	Status         portuc.StatusReporter
	Auth           *AuthManager
	Checks         map[string]Check
	RequestTimeout time.Duration
	Log            *zerolog.Logger
}

// NewRouter assembles the public HTTP surface: versioned job API, health,
// readiness and Prometheus metrics.
func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 15 * time.Second
	}
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(d.Log), Recover(d.Log), Timeout(d.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/ready", readyHandler(d.Checks))
	r.Handle("/metrics", promhttp.Handler())

	srv := apiv1.NewServer(d.Research, d.Status, d.Log)
	apiv1.RegisterAPIV1(r, srv, RequireAuth(d.Auth, d.Log))
	return r
}

func readyHandler(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var mu sync.Mutex
		var wg sync.WaitGroup
		out := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			wg.Add(1)
			go func(name string, check Check) {
				defer wg.Done()
				status := "ok"
				if err := check(ctx); err != nil {
					status = err.Error()
				}
				mu.Lock()
				defer mu.Unlock()
				out[name] = status
				if status != "ok" {
					healthy = false
				}
			}(name, check)
		}
		wg.Wait()

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, out)
	}
}
