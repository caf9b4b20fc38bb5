package queuecore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Engine implements the enqueue/dequeue/complete/fail state machine on top
// of a Store. All mutations it issues go through Store.withWriteTx, giving
// the atomic select-and-update dequeue needs.
type Engine struct {
	store *Store
	// now is overridable so tests can freeze the clock (spec.md §8's
	// end-to-end scenarios pin t0 and advance it explicitly).
	now func() int64
}

// NewEngine constructs an Engine backed by store, using the wall clock.
func NewEngine(store *Store) *Engine {
	return &Engine{store: store, now: nowMillis}
}

// EnqueueInput carries the producer-supplied fields of enqueue.
type EnqueueInput struct {
	ID          string
	Type        string
	Target      string
	CreatedAt   int64
	MaxAttempts *int
}

// Enqueue validates and inserts a new queued job.
func (e *Engine) Enqueue(in EnqueueInput) (Job, error) {
	if strings.TrimSpace(in.ID) == "" {
		return Job{}, ErrInvalidPayload
	}
	t := Type(in.Type)
	if !t.valid() {
		return Job{}, ErrInvalidPayload
	}
	if strings.TrimSpace(in.Target) == "" {
		return Job{}, ErrInvalidPayload
	}

	maxAttempts := defaultMaxAttempts
	if in.MaxAttempts != nil {
		maxAttempts = clampMaxAttempts(*in.MaxAttempts, true)
	}

	now := e.now()
	job := Job{
		ID:          in.ID,
		Type:        t,
		Target:      in.Target,
		CreatedAt:   in.CreatedAt,
		Status:      StatusQueued,
		UpdatedAt:   &now,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		SortAt:      now,
	}

	err := e.store.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO jobs (`+jobColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, NULL, NULL, NULL, ?)
		`, job.ID, string(job.Type), job.Target, job.CreatedAt, string(job.Status),
			*job.UpdatedAt, job.Attempts, job.MaxAttempts, job.SortAt)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Job{}, ErrConflict
		}
		return Job{}, err
	}
	return job, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// DequeueResult is what Dequeue returns.
type DequeueResult struct {
	Job        *Job
	LeaseUntil int64
}

// Dequeue atomically selects and leases the oldest eligible job: either a
// queued job whose nextRunAt has arrived, or a processing job whose lease
// has expired (reclaim). Reclaim does not increment attempts.
func (e *Engine) Dequeue() (DequeueResult, error) {
	now := e.now()
	leaseUntil := now + LeaseMS

	var result DequeueResult
	err := e.store.withWriteTx(func(tx *sql.Tx) error {
		row := tx.QueryRow(`
			SELECT `+jobColumns+`
			FROM jobs
			WHERE (status = 'queued' AND (next_run_at IS NULL OR next_run_at <= ?))
			   OR (status = 'processing' AND lease_until IS NOT NULL AND lease_until < ?)
			ORDER BY created_at ASC, id ASC
			LIMIT 1
		`, now, now)

		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			UPDATE jobs
			SET status = 'processing', lease_until = ?, updated_at = ?, sort_at = ?, next_run_at = NULL
			WHERE id = ?
		`, leaseUntil, now, now, job.ID)
		if err != nil {
			return err
		}

		job.Status = StatusProcessing
		job.LeaseUntil = &leaseUntil
		job.UpdatedAt = &now
		job.SortAt = now
		job.NextRunAt = nil
		result.Job = &job
		result.LeaseUntil = leaseUntil
		return nil
	})
	if err != nil {
		return DequeueResult{}, err
	}
	return result, nil
}

// Complete marks a job done. Idempotent by id: repeated calls overwrite the
// result; calls on an unknown id are a no-op (crash-safe acks, spec.md §4.2).
func (e *Engine) Complete(id string, result any) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("serialize result: %w", err)
	}
	now := e.now()
	s := string(encoded)

	return e.store.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE jobs
			SET status = 'done', result = ?, error = NULL, lease_until = NULL, next_run_at = NULL,
			    updated_at = ?, sort_at = ?
			WHERE id = ?
		`, s, now, now, id)
		return err
	})
}

// FailResult is what Fail returns.
type FailResult struct {
	Retried     bool
	Attempts    int
	MaxAttempts int
	NextRunAt   *int64
}

// backoffSchedule maps nextAttempts to a delay in milliseconds (spec.md §4.2).
func backoffSchedule(nextAttempts int) int64 {
	switch nextAttempts {
	case 1:
		return 10_000
	case 2:
		return 60_000
	default:
		return 300_000
	}
}

// Fail records a dispatch failure, retrying with backoff or moving the job
// to failed once maxAttempts is exhausted.
func (e *Engine) Fail(id string, message string) (FailResult, error) {
	now := e.now()
	var result FailResult

	err := e.store.withWriteTx(func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id)
		var attempts, maxAttempts int
		if err := row.Scan(&attempts, &maxAttempts); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		nextAttempts := attempts + 1
		result.Attempts = nextAttempts
		result.MaxAttempts = maxAttempts

		if nextAttempts < maxAttempts {
			delay := backoffSchedule(nextAttempts)
			nextRunAt := now + delay
			_, err := tx.Exec(`
				UPDATE jobs
				SET status = 'queued', attempts = ?, next_run_at = ?, lease_until = NULL,
				    error = ?, updated_at = ?, sort_at = ?
				WHERE id = ?
			`, nextAttempts, nextRunAt, message, now, now, id)
			if err != nil {
				return err
			}
			result.Retried = true
			result.NextRunAt = &nextRunAt
			return nil
		}

		_, err := tx.Exec(`
			UPDATE jobs
			SET status = 'failed', attempts = ?, lease_until = NULL, next_run_at = NULL,
			    error = ?, updated_at = ?, sort_at = ?
			WHERE id = ?
		`, nextAttempts, message, now, now, id)
		if err != nil {
			return err
		}
		result.Retried = false
		return nil
	})
	if err != nil {
		return FailResult{}, err
	}
	return result, nil
}

// Requeue resets a failed job back to queued without touching attempts
// (SPEC_FULL.md §4 supplement; mirrors the teacher's `dlq retry` command).
func (e *Engine) Requeue(id string) (Job, error) {
	now := e.now()
	var job Job

	err := e.store.withWriteTx(func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
		j, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if j.Status != StatusFailed {
			return ErrInvalidState
		}

		_, err = tx.Exec(`
			UPDATE jobs
			SET status = 'queued', error = NULL, next_run_at = NULL, lease_until = NULL,
			    updated_at = ?, sort_at = ?
			WHERE id = ?
		`, now, now, id)
		if err != nil {
			return err
		}

		j.Status = StatusQueued
		j.Error = nil
		j.NextRunAt = nil
		j.LeaseUntil = nil
		j.UpdatedAt = &now
		j.SortAt = now
		job = j
		return nil
	})
	if err != nil {
		return Job{}, err
	}
	return job, nil
}
