//go:build !integration

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestAuthManager(t *testing.T) {
	t.Run("mint and parse", func(t *testing.T) {
		a := NewAuthManager("s3cret", time.Hour)
		tok, err := a.Mint("ops")
		if err != nil {
			t.Fatalf("Mint: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)

		claims, err := a.ParseFromRequest(req)
		if err != nil {
			t.Fatalf("ParseFromRequest: %v", err)
		}
		if claims.Subject != "ops" || claims.Role != "operator" {
			t.Fatalf("unexpected claims: %+v", claims)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, _ := NewAuthManager("one", time.Hour).Mint("ops")
		if _, err := NewAuthManager("two", time.Hour).Parse(tok); err == nil {
			t.Fatal("expected error for foreign signature")
		}
	})

	t.Run("expired", func(t *testing.T) {
		a := NewAuthManager("s3cret", time.Minute)
		a.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tok, _ := a.Mint("ops")
		a.now = time.Now
		if _, err := a.Parse(tok); err == nil {
			t.Fatal("expected error for expired token")
		}
	})

	t.Run("disabled without secret", func(t *testing.T) {
		if _, err := NewAuthManager("", 0).Mint("ops"); err == nil {
			t.Fatal("expected error without secret")
		}
	})
}

func TestRouter(t *testing.T) {
	nop := zerolog.Nop()
	auth := NewAuthManager("s3cret", time.Hour)
	h := NewRouter(Deps{
		Auth: auth,
		Checks: map[string]Check{
			"db":    func(ctx context.Context) error { return nil },
			"cache": func(ctx context.Context) error { return errors.New("down") },
		},
		Log: &nop,
	})

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK || rec.Header().Get(traceHeader) == "" {
			t.Fatalf("got %d, trace %q", rec.Code, rec.Header().Get(traceHeader))
		}
	})

	t.Run("trace id is propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(traceHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get(traceHeader) != "abc-123" {
			t.Fatalf("trace id not echoed: %q", rec.Header().Get(traceHeader))
		}
	})

	t.Run("ready reports failing checks", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), `"cache":"down"`) {
			t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})

	t.Run("protected route needs token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("unconfigured auth forbids", func(t *testing.T) {
		h := NewRouter(Deps{Log: &nop})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/x/debug", nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("want 403, got %d", rec.Code)
		}
	})
}

func TestRecover(t *testing.T) {
	nop := zerolog.Nop()
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }), Recover(&nop))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
}
