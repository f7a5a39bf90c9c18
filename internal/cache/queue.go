package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/studiometa/productive-tools-sub004/internal/sqlutil"
)

// DefaultDrainMax is the number of jobs a drain processes when no limit is given.
const DefaultDrainMax = 50

// Job asks for one cached query to be re-fetched.
type Job struct {
	CacheKey string            `json:"cache_key"`
	Endpoint string            `json:"endpoint"`
	Params   map[string]string `json:"params,omitempty"`
	QueuedAt time.Time         `json:"queued_at"`

	generation int64
}

// DrainResult summarises one Drain call.
type DrainResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Queue is the persisted FIFO of pending refreshes for one tenant. Enqueue is
// cheap and local; the remote API is only called from Drain.
type Queue struct {
	store *Store
}

// NewQueue returns the refresh queue backed by store.
func NewQueue(store *Store) *Queue {
	return &Queue{store: store}
}

// Enqueue records that cacheKey needs a refresh. An existing job for the same
// key has its endpoint, params and queued_at replaced rather than duplicated,
// and its generation bumped.
func (q *Queue) Enqueue(ctx context.Context, cacheKey, endpoint string, params map[string]string) error {
	if !q.store.Available() {
		return nil
	}
	paramsJSON, err := marshalParams(params)
	if err != nil {
		return err
	}
	_, err = q.store.db.ExecContext(ctx, `
		INSERT INTO refresh_queue (cache_key, endpoint, params, queued_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			endpoint = excluded.endpoint,
			params = excluded.params,
			queued_at = excluded.queued_at,
			generation = refresh_queue.generation + 1`,
		cacheKey, endpoint, paramsJSON, q.store.nowMillis())
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", cacheKey, err)
	}
	return nil
}

// Count returns the number of pending jobs.
func (q *Queue) Count(ctx context.Context) int {
	if !q.store.Available() {
		return 0
	}
	var n int
	if err := q.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refresh_queue`).Scan(&n); err != nil {
		q.store.miss("queue_count", err)
		return 0
	}
	return n
}

// List returns up to limit pending jobs in drain order (all when limit <= 0).
func (q *Queue) List(ctx context.Context, limit int) []Job {
	if !q.store.Available() {
		return nil
	}
	jobs, err := q.pending(ctx, limit)
	if err != nil {
		q.store.miss("queue_list", err)
		return nil
	}
	return jobs
}

// Clear removes every pending job and returns how many were removed.
func (q *Queue) Clear(ctx context.Context) (int, error) {
	if !q.store.Available() {
		return 0, nil
	}
	res, err := q.store.db.ExecContext(ctx, `DELETE FROM refresh_queue`)
	if err != nil {
		return 0, fmt.Errorf("clear refresh queue: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (q *Queue) pending(ctx context.Context, limit int) ([]Job, error) {
	query := `SELECT cache_key, endpoint, params, queued_at, generation FROM refresh_queue ORDER BY queued_at ASC, rowid ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := q.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlutil.ScanRows(rows, func(rows *sql.Rows) (Job, error) {
		var (
			j          Job
			paramsJSON string
			queuedAt   int64
		)
		if err := rows.Scan(&j.CacheKey, &j.Endpoint, &paramsJSON, &queuedAt, &j.generation); err != nil {
			return Job{}, err
		}
		if err := json.Unmarshal([]byte(paramsJSON), &j.Params); err != nil {
			return Job{}, fmt.Errorf("decode params for %s: %w", j.CacheKey, err)
		}
		j.QueuedAt = time.UnixMilli(queuedAt)
		return j, nil
	})
}

// Drain processes up to maxJobs pending jobs in FIFO order. Each job is
// re-fetched through fetcher and the result written to the query cache. Jobs
// are removed whether or not the fetch succeeded; failures are logged and
// counted, never retried. Jobs beyond maxJobs stay queued and are reported as
// skipped.
func (q *Queue) Drain(ctx context.Context, fetcher Fetcher, maxJobs int) (DrainResult, error) {
	var result DrainResult
	if !q.store.Available() {
		return result, nil
	}
	if maxJobs <= 0 {
		maxJobs = DefaultDrainMax
	}

	if q.store.dir != "" {
		lock, err := acquireDrainLock(q.store.dir)
		if err != nil {
			return result, err
		}
		defer lock.Release()
	}

	before := q.Count(ctx)
	jobs, err := q.pending(ctx, maxJobs)
	if err != nil {
		return result, fmt.Errorf("read refresh queue: %w", err)
	}

	logger := q.store.logger
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		result.Processed++

		value, err := fetcher.Fetch(ctx, job.Endpoint, job.Params)
		if err == nil {
			err = q.store.PutQuery(ctx, job.CacheKey, job.Endpoint, job.Params, value)
		}
		if err != nil {
			result.Failed++
			logger.Warn("refresh failed, dropping job",
				zap.String("cache_key", job.CacheKey),
				zap.String("endpoint", job.Endpoint),
				zap.Error(err))
		} else {
			result.Succeeded++
		}

		// A job re-enqueued while its fetch was in flight has a higher
		// generation and survives this delete.
		if _, err := q.store.db.ExecContext(context.WithoutCancel(ctx),
			`DELETE FROM refresh_queue WHERE cache_key = ? AND generation = ?`,
			job.CacheKey, job.generation); err != nil {
			return result, fmt.Errorf("dequeue %s: %w", job.CacheKey, err)
		}
	}

	if skipped := before - result.Processed; skipped > 0 {
		result.Skipped = skipped
	}

	logger.Debug("refresh queue drained",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}
