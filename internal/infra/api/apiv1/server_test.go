//go:build !integration

package apiv1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"persona-research/internal/domain"
	"persona-research/internal/domain/model"
	apiv1 "persona-research/internal/infra/api/apiv1"
)

//
// ---------------- use case mocks ----------------
//

type mockResearch struct {
	StartJobFunc func(ctx context.Context, in model.UserInputs) (string, error)
	GetJobFunc   func(ctx context.Context, id string) (*model.Job, error)
	ListJobsFunc func(ctx context.Context, limit int) ([]*model.Job, error)
}

func (m *mockResearch) StartJob(ctx context.Context, in model.UserInputs) (string, error) {
	return m.StartJobFunc(ctx, in)
}
func (m *mockResearch) GetJob(ctx context.Context, id string) (*model.Job, error) {
	return m.GetJobFunc(ctx, id)
}
func (m *mockResearch) ListJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	return m.ListJobsFunc(ctx, limit)
}

type mockStatus struct {
	JobStatusFunc func(ctx context.Context, id string) (*model.JobStatusView, error)
	DebugFunc     func(ctx context.Context, id string) (*model.JobStatusView, map[model.SourceKey]*model.CollectorResult, error)
}

func (m *mockStatus) JobStatus(ctx context.Context, id string) (*model.JobStatusView, error) {
	return m.JobStatusFunc(ctx, id)
}
func (m *mockStatus) Debug(ctx context.Context, id string) (*model.JobStatusView, map[model.SourceKey]*model.CollectorResult, error) {
	return m.DebugFunc(ctx, id)
}

//
// -------------------- test helpers --------------------
//

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// denyAll and allowAll stand in for the bearer-token middleware.
func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func allowAll(next http.Handler) http.Handler { return next }

func newRouter(res *mockResearch, st *mockStatus, auth func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	apiv1.RegisterAPIV1(r, apiv1.NewServer(res, st, newLogger()), auth)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

//
// -------------------- tests --------------------
//

func TestCreateJob(t *testing.T) {
	t.Run("accepts keyword string and amazonUrl alias", func(t *testing.T) {
		var got model.UserInputs
		res := &mockResearch{StartJobFunc: func(ctx context.Context, in model.UserInputs) (string, error) {
			got = in
			return "01JOB", nil
		}}
		r := newRouter(res, &mockStatus{}, allowAll)

		rec := do(t, r, http.MethodPost, "/api/v1/jobs",
			`{"websiteUrl":"groundingwell.com","amazonUrl":"https://shop.example/dp/1","keywords":"grounding sheets, earthing sheets"}`)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d: %s", rec.Code, rec.Body.String())
		}
		var body apiv1.CreateJobResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if body.JobID != "01JOB" || body.Status != model.JobStatusQueued {
			t.Fatalf("unexpected body: %+v", body)
		}
		if rec.Header().Get("Location") != "/api/v1/jobs/01JOB" {
			t.Fatalf("missing location header")
		}
		if got.MarketplaceURL != "https://shop.example/dp/1" {
			t.Fatalf("amazonUrl alias not mapped: %+v", got)
		}
		if len(got.Keywords) != 2 || got.Keywords[1] != "earthing sheets" {
			t.Fatalf("keywords not split: %v", got.Keywords)
		}
	})

	t.Run("accepts keyword array", func(t *testing.T) {
		var got model.UserInputs
		res := &mockResearch{StartJobFunc: func(ctx context.Context, in model.UserInputs) (string, error) {
			got = in
			return "x", nil
		}}
		r := newRouter(res, &mockStatus{}, allowAll)

		rec := do(t, r, http.MethodPost, "/api/v1/jobs", `{"websiteUrl":"a.example","keywords":["a","b"]}`)

		if rec.Code != http.StatusAccepted || len(got.Keywords) != 2 {
			t.Fatalf("got %d, keywords %v", rec.Code, got.Keywords)
		}
	})

	t.Run("validation error maps to 400", func(t *testing.T) {
		res := &mockResearch{StartJobFunc: func(ctx context.Context, in model.UserInputs) (string, error) {
			return "", domain.ErrInvalidArgument
		}}
		r := newRouter(res, &mockStatus{}, allowAll)

		rec := do(t, r, http.MethodPost, "/api/v1/jobs", `{"websiteUrl":""}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		r := newRouter(&mockResearch{}, &mockStatus{}, allowAll)
		rec := do(t, r, http.MethodPost, "/api/v1/jobs", `{"websiteUrl":`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("full queue maps to 503", func(t *testing.T) {
		res := &mockResearch{StartJobFunc: func(ctx context.Context, in model.UserInputs) (string, error) {
			return "", domain.ErrQueueFull
		}}
		r := newRouter(res, &mockStatus{}, allowAll)
		rec := do(t, r, http.MethodPost, "/api/v1/jobs", `{"websiteUrl":"a.example","keywords":"k"}`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("want 503, got %d", rec.Code)
		}
	})
}

func TestGetStatus(t *testing.T) {
	st := &mockStatus{JobStatusFunc: func(ctx context.Context, id string) (*model.JobStatusView, error) {
		if id != "j1" {
			return nil, domain.ErrNotFound
		}
		return &model.JobStatusView{JobID: "j1", Status: model.JobStatusProcessing, Sources: []model.SourceStatus{
			{Source: model.SourceMarketplace, Status: model.StatusNotStarted},
			{Source: model.SourceDiscussion, Status: model.StatusCompletedNoData},
		}}, nil
	}}
	r := newRouter(&mockResearch{}, st, allowAll)

	rec := do(t, r, http.MethodGet, "/api/v1/jobs/j1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var view model.JobStatusView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Sources) != 2 || view.Sources[1].Status != model.StatusCompletedNoData {
		t.Fatalf("unexpected view: %+v", view)
	}

	if rec := do(t, r, http.MethodGet, "/api/v1/jobs/nope/status", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	done := time.Now().UTC()
	res := &mockResearch{GetJobFunc: func(ctx context.Context, id string) (*model.Job, error) {
		return &model.Job{
			ID:          id,
			Status:      model.JobStatusCompleted,
			Persona:     &model.PersonaDocument{Content: "# Persona", Confidence: model.ConfidenceMedium},
			CompletedAt: &done,
		}, nil
	}}
	r := newRouter(res, &mockStatus{}, allowAll)

	rec := do(t, r, http.MethodGet, "/api/v1/jobs/j9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var dto apiv1.JobDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &dto)
	if dto.JobID != "j9" || dto.Persona == nil || dto.Persona.Confidence != model.ConfidenceMedium {
		t.Fatalf("unexpected job: %+v", dto)
	}
	if dto.Sources == nil {
		t.Fatal("dispatchedSources should encode as an empty list")
	}
}

func TestProtectedRoutes(t *testing.T) {
	res := &mockResearch{ListJobsFunc: func(ctx context.Context, limit int) ([]*model.Job, error) {
		return []*model.Job{{ID: "a"}, {ID: "b"}}, nil
	}}
	st := &mockStatus{DebugFunc: func(ctx context.Context, id string) (*model.JobStatusView, map[model.SourceKey]*model.CollectorResult, error) {
		return &model.JobStatusView{JobID: id}, map[model.SourceKey]*model.CollectorResult{
			model.SourceWebsite: {JobID: id, Source: model.SourceWebsite, Succeeded: true},
		}, nil
	}}

	t.Run("rejected without auth", func(t *testing.T) {
		r := newRouter(res, st, denyAll)
		for _, p := range []string{"/api/v1/jobs", "/api/v1/jobs/j1/debug"} {
			if rec := do(t, r, http.MethodGet, p, ""); rec.Code != http.StatusUnauthorized {
				t.Errorf("%s: want 401, got %d", p, rec.Code)
			}
		}
	})

	t.Run("public routes stay open", func(t *testing.T) {
		res := &mockResearch{StartJobFunc: func(ctx context.Context, in model.UserInputs) (string, error) { return "x", nil }}
		r := newRouter(res, st, denyAll)
		if rec := do(t, r, http.MethodPost, "/api/v1/jobs", `{"websiteUrl":"a.example","keywords":"k"}`); rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d", rec.Code)
		}
	})

	t.Run("list and debug with auth", func(t *testing.T) {
		r := newRouter(res, st, allowAll)

		rec := do(t, r, http.MethodGet, "/api/v1/jobs?limit=5", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("list: want 200, got %d", rec.Code)
		}
		var list struct {
			Items []apiv1.JobDTO `json:"items"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &list)
		if len(list.Items) != 2 {
			t.Fatalf("want 2 items, got %d", len(list.Items))
		}

		rec = do(t, r, http.MethodGet, "/api/v1/jobs/j1/debug", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("debug: want 200, got %d", rec.Code)
		}
		var dbg apiv1.DebugResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &dbg)
		if dbg.Results[model.SourceWebsite] == nil || dbg.Status.JobID != "j1" {
			t.Fatalf("unexpected debug body: %s", rec.Body.String())
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		r := newRouter(res, st, allowAll)
		if rec := do(t, r, http.MethodGet, "/api/v1/jobs?limit=abc", ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})
}
