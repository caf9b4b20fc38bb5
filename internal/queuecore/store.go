package queuecore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions matches the teacher's data-directory permissions.
const DefaultDirPermissions = 0755

// Store is the durable, transactional table of jobs. All mutating operations
// go through mu, giving the single-writer discipline the engine's atomic
// select-and-update requires (spec.md §5, §9). Reads run unlocked against the
// same WAL-mode connection and see a snapshot at least as recent as issuance.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates (or reuses) the SQLite-backed store at <dataDir>/jobs.db and
// runs schema migrations.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "jobs.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type migration struct {
	version int
	apply   func(*sql.Tx) error
}

var migrations = []migration{
	{
		version: 1,
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS jobs (
					id TEXT PRIMARY KEY,
					type TEXT NOT NULL,
					target TEXT NOT NULL,
					created_at INTEGER NOT NULL,
					status TEXT NOT NULL,
					updated_at INTEGER
				)`)
			return err
		},
	},
	{
		// Additive columns, applied best-effort per §9's design note: SQLite
		// has no ADD COLUMN IF NOT EXISTS, so duplicate-column errors from a
		// prior partial run are swallowed.
		version: 2,
		apply: func(tx *sql.Tx) error {
			cols := []string{
				"lease_until INTEGER",
				"attempts INTEGER NOT NULL DEFAULT 0",
				"max_attempts INTEGER NOT NULL DEFAULT 3",
				"next_run_at INTEGER",
				"result TEXT",
				"error TEXT",
				"sort_at INTEGER",
			}
			for _, col := range cols {
				if _, err := tx.Exec("ALTER TABLE jobs ADD COLUMN " + col); err != nil {
					if !isDuplicateColumn(err) {
						return err
					}
				}
			}
			return nil
		},
	},
	{
		// One-shot backfill: sortAt = coalesce(updatedAt, createdAt) for any
		// row that predates the sort_at column (spec.md §4.1).
		version: 3,
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				UPDATE jobs
				SET sort_at = COALESCE(updated_at, created_at)
				WHERE sort_at IS NULL
			`)
			return err
		},
	},
	{
		version: 4,
		apply: func(tx *sql.Tx) error {
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_jobs_status_sort ON jobs(status, sort_at DESC, id DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_jobs_sort ON jobs(sort_at DESC, id DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_jobs_nextrun_status ON jobs(next_run_at, status)`,
				`CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at, id)`,
			}
			for _, stmt := range stmts {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to read migrations table: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version, applied_at) VALUES (?, ?)`, m.version, nowMillis()); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		slog.Debug("queuecore: applied migration", "version", m.version)
	}
	return nil
}

// withWriteTx serializes all mutating operations through a single mutex,
// running fn inside one SQLite transaction (the single-writer discipline
// dequeue's atomic select-and-update depends on).
func (s *Store) withWriteTx(fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

const jobColumns = `id, type, target, created_at, status, updated_at, lease_until, attempts, max_attempts, next_run_at, result, error, sort_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var jobType, status string
	var updatedAt, leaseUntil, nextRunAt sql.NullInt64
	var result, jobErr sql.NullString

	err := row.Scan(
		&j.ID, &jobType, &j.Target, &j.CreatedAt, &status,
		&updatedAt, &leaseUntil, &j.Attempts, &j.MaxAttempts, &nextRunAt,
		&result, &jobErr, &j.SortAt,
	)
	if err != nil {
		return Job{}, err
	}

	j.Type = Type(jobType)
	j.Status = Status(status)
	if updatedAt.Valid {
		v := updatedAt.Int64
		j.UpdatedAt = &v
	}
	if leaseUntil.Valid {
		v := leaseUntil.Int64
		j.LeaseUntil = &v
	}
	if nextRunAt.Valid {
		v := nextRunAt.Int64
		j.NextRunAt = &v
	}
	if result.Valid {
		v := result.String
		j.Result = &v
	}
	if jobErr.Valid {
		v := jobErr.String
		j.Error = &v
	}
	return j, nil
}
