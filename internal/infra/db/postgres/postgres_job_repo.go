package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"persona-research/internal/domain"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

const jobColumns = `id, status, inputs, dispatched, persona, last_error, created_at, updated_at, completed_at`

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job.ID == "" {
		return domain.ErrMissingJobID
	}
	inputs, dispatched, persona, err := encodeJob(job)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO research_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  inputs = EXCLUDED.inputs,
  dispatched = EXCLUDED.dispatched,
  persona = EXCLUDED.persona,
  last_error = EXCLUDED.last_error,
  updated_at = EXCLUDED.updated_at,
  completed_at = EXCLUDED.completed_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, string(job.Status), inputs, dispatched, persona, job.LastError,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM research_jobs WHERE id = $1`
	var row jobRow
	if err := scanOne(ctx, r.pool, tx, q, []interface{}{id}, row.dest()...); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return row.job()
}

// CompareAndSwap locks the row, checks the stored status and writes job in
// the same transaction.
func (r *jobRepo) CompareAndSwap(ctx context.Context, job *model.Job, from model.JobStatus) error {
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var current string
		err := scanOne(ctx, r.pool, tx, `SELECT status FROM research_jobs WHERE id = $1 FOR UPDATE`,
			[]interface{}{job.ID}, &current)
		if err != nil {
			return err
		}
		if model.JobStatus(current) != from {
			return fmt.Errorf("%w: stored status %s, expected %s", domain.ErrInvalidTransition, current, from)
		}
		return r.Save(ctx, tx, job)
	})
}

func (r *jobRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM research_jobs ORDER BY created_at DESC LIMIT $1`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		var row jobRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		j, err := row.job()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

type jobRow struct {
	id, status, lastError string
	inputs, dispatched    []byte
	persona               []byte
	createdAt, updatedAt  time.Time
	completedAt           *time.Time
}

func (r *jobRow) dest() []interface{} {
	return []interface{}{&r.id, &r.status, &r.inputs, &r.dispatched, &r.persona, &r.lastError, &r.createdAt, &r.updatedAt, &r.completedAt}
}

func (r *jobRow) job() (*model.Job, error) {
	j := &model.Job{
		ID:          r.id,
		Status:      model.JobStatus(r.status),
		LastError:   r.lastError,
		CreatedAt:   r.createdAt.UTC(),
		UpdatedAt:   r.updatedAt.UTC(),
		CompletedAt: r.completedAt,
	}
	if err := json.Unmarshal(r.inputs, &j.Inputs); err != nil {
		return nil, fmt.Errorf("%w: inputs: %v", domain.ErrReadDatabaseRow, err)
	}
	if len(r.dispatched) > 0 {
		if err := json.Unmarshal(r.dispatched, &j.Dispatched); err != nil {
			return nil, fmt.Errorf("%w: dispatched: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	if len(r.persona) > 0 && string(r.persona) != "null" {
		j.Persona = new(model.PersonaDocument)
		if err := json.Unmarshal(r.persona, j.Persona); err != nil {
			return nil, fmt.Errorf("%w: persona: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	return j, nil
}

func encodeJob(job *model.Job) (inputs, dispatched, persona []byte, err error) {
	if inputs, err = json.Marshal(job.Inputs); err != nil {
		return nil, nil, nil, err
	}
	ds := job.Dispatched
	if ds == nil {
		ds = []model.SourceKey{}
	}
	if dispatched, err = json.Marshal(ds); err != nil {
		return nil, nil, nil, err
	}
	if job.Persona != nil {
		if persona, err = json.Marshal(job.Persona); err != nil {
			return nil, nil, nil, err
		}
	}
	return inputs, dispatched, persona, nil
}
