// Package apiv1 serves the versioned research job API.
package apiv1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"persona-research/internal/domain"
	"persona-research/internal/domain/model"
	portuc "persona-research/internal/domain/ports/usecase"
	"persona-research/internal/infra/logging"
)

const maxBodyBytes = 64 << 10

type Server struct {
	research portuc.ResearchManager
	status   portuc.StatusReporter
	log      *zerolog.Logger
}

func NewServer(research portuc.ResearchManager, status portuc.StatusReporter, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{research: research, status: status, log: &l}
}

// RegisterAPIV1 mounts the job routes. Listing and debug views sit behind auth.
func RegisterAPIV1(r chi.Router, s *Server, auth func(http.Handler) http.Handler) {
	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Post("/", s.createJob)
		r.Get("/{id}", s.getJob)
		r.Get("/{id}/status", s.getStatus)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Get("/", s.listJobs)
			r.Get("/{id}/debug", s.getDebug)
		})
	})
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidArgument, err))
		return
	}

	id, err := s.research.StartJob(r.Context(), req.Inputs())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/jobs/"+id)
	writeJSON(w, http.StatusAccepted, CreateJobResponse{JobID: id, Status: model.JobStatusQueued})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.research.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(job))
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.status.JobStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidArgument))
			return
		}
		limit = n
	}
	jobs, err := s.research.ListJobs(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]JobDTO, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toJobDTO(j))
	}
	writeJSON(w, http.StatusOK, struct {
		Items []JobDTO `json:"items"`
	}{Items: items})
}

func (s *Server) getDebug(w http.ResponseWriter, r *http.Request) {
	view, raw, err := s.status.Debug(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DebugResponse{
		Status:      view,
		Results:     raw,
		GeneratedAt: time.Now().UTC(),
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code >= 500 {
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, code, ErrorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrMissingJobID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQueueFull), errors.Is(err, domain.ErrCacheUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
