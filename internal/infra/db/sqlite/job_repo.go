package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"persona-research/internal/domain"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

type JobRepo struct {
	db *sql.DB
}

func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *JobRepo) q(tx repository.Tx) (querier, error) {
	switch v := tx.(type) {
	case nil:
		return r.db, nil
	case *sql.Tx:
		return v, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

const jobColumns = `id, status, inputs, dispatched, persona, last_error, created_at, updated_at, completed_at`

func (r *JobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job.ID == "" {
		return domain.ErrMissingJobID
	}
	q, err := r.q(tx)
	if err != nil {
		return err
	}
	args, err := jobArgs(job)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
INSERT INTO research_jobs (`+jobColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
  status = excluded.status,
  inputs = excluded.inputs,
  dispatched = excluded.dispatched,
  persona = excluded.persona,
  last_error = excluded.last_error,
  updated_at = excluded.updated_at,
  completed_at = excluded.completed_at`, args...)
	return err
}

func (r *JobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	q, err := r.q(tx)
	if err != nil {
		return nil, err
	}
	row := q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM research_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

// CompareAndSwap relies on a single conditional UPDATE, which SQLite
// executes atomically.
func (r *JobRepo) CompareAndSwap(ctx context.Context, job *model.Job, from model.JobStatus) error {
	args, err := jobArgs(job)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE research_jobs SET
  status = ?, inputs = ?, dispatched = ?, persona = ?, last_error = ?, updated_at = ?, completed_at = ?
WHERE id = ? AND status = ?`,
		args[1], args[2], args[3], args[4], args[5], args[7], args[8], job.ID, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM research_jobs WHERE id = ?`, job.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: stored status %s, expected %s", domain.ErrInvalidTransition, current, from)
}

func (r *JobRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error) {
	q, err := r.q(tx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT `+jobColumns+` FROM research_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *JobRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// tsLayout is fixed width so text ordering matches time ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(tsLayout) }

func jobArgs(job *model.Job) ([]any, error) {
	inputs, err := json.Marshal(job.Inputs)
	if err != nil {
		return nil, err
	}
	ds := job.Dispatched
	if ds == nil {
		ds = []model.SourceKey{}
	}
	dispatched, err := json.Marshal(ds)
	if err != nil {
		return nil, err
	}
	var persona sql.NullString
	if job.Persona != nil {
		b, err := json.Marshal(job.Persona)
		if err != nil {
			return nil, err
		}
		persona = sql.NullString{String: string(b), Valid: true}
	}
	var completed sql.NullString
	if job.CompletedAt != nil {
		completed = sql.NullString{String: formatTime(*job.CompletedAt), Valid: true}
	}
	return []any{
		job.ID, string(job.Status), string(inputs), string(dispatched), persona, job.LastError,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt), completed,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*model.Job, error) {
	var (
		j                    model.Job
		status, inputs, ds   string
		persona, completed   sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&j.ID, &status, &inputs, &ds, &persona, &j.LastError, &createdAt, &updatedAt, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	j.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(inputs), &j.Inputs); err != nil {
		return nil, fmt.Errorf("%w: inputs: %v", domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal([]byte(ds), &j.Dispatched); err != nil {
		return nil, fmt.Errorf("%w: dispatched: %v", domain.ErrReadDatabaseRow, err)
	}
	if persona.Valid {
		j.Persona = new(model.PersonaDocument)
		if err := json.Unmarshal([]byte(persona.String), j.Persona); err != nil {
			return nil, fmt.Errorf("%w: persona: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	var err error
	if j.CreatedAt, err = time.Parse(tsLayout, createdAt); err != nil {
		return nil, fmt.Errorf("%w: created_at: %v", domain.ErrReadDatabaseRow, err)
	}
	if j.UpdatedAt, err = time.Parse(tsLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("%w: updated_at: %v", domain.ErrReadDatabaseRow, err)
	}
	if completed.Valid {
		t, err := time.Parse(tsLayout, completed.String)
		if err != nil {
			return nil, fmt.Errorf("%w: completed_at: %v", domain.ErrReadDatabaseRow, err)
		}
		j.CompletedAt = &t
	}
	return &j, nil
}
