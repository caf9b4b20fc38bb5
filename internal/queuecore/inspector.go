package queuecore

import (
	"database/sql"
	"errors"
)

// Inspector answers read-only questions about the queue: single-job lookup,
// aggregate stats, and cursor-paginated listing.
type Inspector struct {
	store *Store
}

// NewInspector constructs an Inspector backed by store.
func NewInspector(store *Store) *Inspector {
	return &Inspector{store: store}
}

// Get returns the job with the given id, or ErrNotFound.
func (i *Inspector) Get(id string) (Job, error) {
	row := i.store.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	return job, nil
}

// Stats is the per-status job count snapshot.
type Stats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Stats aggregates job counts by status.
func (i *Inspector) Stats() (Stats, error) {
	rows, err := i.store.db.Query(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	var s Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch Status(status) {
		case StatusQueued:
			s.Queued = count
		case StatusProcessing:
			s.Processing = count
		case StatusDone:
			s.Done = count
		case StatusFailed:
			s.Failed = count
		}
		s.Total += count
	}
	return s, rows.Err()
}

// ListPage is one page of List's results.
type ListPage struct {
	Jobs       []Job
	NextCursor string
}

// ListOptions filters and paginates List. Set Limit to NoLimitSpecified to
// mean "caller supplied no limit" so that an explicit limit of 0 (clamped to
// 1) is distinguishable from an omitted one (defaulted to defaultListLimit).
type ListOptions struct {
	Status *Status
	Limit  int
	Cursor string
}

// NoLimitSpecified is the ListOptions.Limit sentinel meaning "use the
// default", distinct from an explicit limit of 0.
const NoLimitSpecified = -1

const (
	defaultListLimit = 50
	minListLimit     = 1
	maxListLimit     = 200
)

// List returns jobs newest-first (sortAt DESC, id DESC), optionally filtered
// by status, using keyset pagination via an opaque cursor (spec.md §4.3).
func (i *Inspector) List(opts ListOptions) (ListPage, error) {
	limit := opts.Limit
	switch {
	case limit == NoLimitSpecified:
		limit = defaultListLimit
	case limit < minListLimit:
		limit = minListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	var args []any

	if opts.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*opts.Status))
	}

	if c, ok := decodeCursor(opts.Cursor); ok {
		query += ` AND (sort_at < ? OR (sort_at = ? AND id < ?))`
		args = append(args, c.SortAt, c.SortAt, c.ID)
	}

	query += ` ORDER BY sort_at DESC, id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := i.store.db.Query(query, args...)
	if err != nil {
		return ListPage{}, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return ListPage{}, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return ListPage{}, err
	}

	page := ListPage{Jobs: jobs}
	if len(jobs) > limit {
		last := jobs[limit-1]
		page.Jobs = jobs[:limit]
		next, err := encodeCursor(cursor{SortAt: last.SortAt, ID: last.ID})
		if err != nil {
			return ListPage{}, err
		}
		page.NextCursor = next
	}
	return page, nil
}

// Purge deletes jobs in a terminal state (done or failed) older than
// olderThan, returning the number of rows removed (SPEC_FULL.md §6.3,
// grounded in the teacher's retention story).
func (i *Inspector) Purge(olderThan int64) (int64, error) {
	var affected int64
	err := i.store.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			DELETE FROM jobs
			WHERE status IN ('done', 'failed') AND updated_at < ?
		`, olderThan)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}
