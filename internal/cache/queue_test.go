package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingFetcher struct {
	calls []string
	fail  map[string]bool
}

func (f *recordingFetcher) Fetch(_ context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	key := CacheKey(endpoint, params)
	f.calls = append(f.calls, key)
	if f.fail[key] {
		return nil, errors.New("503 service unavailable")
	}
	return json.RawMessage(`{"data":[],"key":"` + key + `"}`), nil
}

func TestEnqueueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	q := NewQueue(s)

	require.NoError(t, q.Enqueue(ctx, "projects", "projects", map[string]string{"page": "1"}))
	require.NoError(t, q.Enqueue(ctx, "projects", "projects", map[string]string{"page": "2"}))
	assert.Equal(t, 1, q.Count(ctx))

	jobs := q.List(ctx, 0)
	require.Len(t, jobs, 1)
	assert.Equal(t, map[string]string{"page": "2"}, jobs[0].Params, "params are refreshed in place")
}

func TestEnqueueBumpsQueuedAt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	q := NewQueue(s)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	require.NoError(t, q.Enqueue(ctx, "a", "projects", nil))
	s.now = func() time.Time { return base.Add(time.Second) }
	require.NoError(t, q.Enqueue(ctx, "b", "people", nil))
	s.now = func() time.Time { return base.Add(2 * time.Second) }
	require.NoError(t, q.Enqueue(ctx, "a", "projects", nil))

	jobs := q.List(ctx, 0)
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].CacheKey)
	assert.Equal(t, "a", jobs[1].CacheKey)
	assert.Equal(t, base.Add(2*time.Second).UnixMilli(), jobs[1].QueuedAt.UnixMilli())
}

func TestDrain(t *testing.T) {
	ctx := context.Background()

	t.Run("processes in FIFO order and leaves the rest queued", func(t *testing.T) {
		s := newTestStore(t)
		q := NewQueue(s)
		for _, key := range []string{"a", "b", "c"} {
			require.NoError(t, q.Enqueue(ctx, key, key, nil))
		}

		f := &recordingFetcher{}
		res, err := q.Drain(ctx, f, 2)
		require.NoError(t, err)

		assert.Equal(t, DrainResult{Processed: 2, Succeeded: 2, Skipped: 1}, res)
		assert.Equal(t, []string{"a", "b"}, f.calls)
		remaining := q.List(ctx, 0)
		require.Len(t, remaining, 1)
		assert.Equal(t, "c", remaining[0].CacheKey)
	})

	t.Run("writes results back to the query cache", func(t *testing.T) {
		s := newTestStore(t)
		q := NewQueue(s)
		params := map[string]string{"filter[query]": "acme"}
		key := CacheKey("companies", params)
		require.NoError(t, q.Enqueue(ctx, key, "companies", params))

		_, err := q.Drain(ctx, &recordingFetcher{}, 10)
		require.NoError(t, err)

		entry, ok := s.GetQuery(ctx, key)
		require.True(t, ok)
		assert.Equal(t, "companies", entry.Endpoint)
		assert.Equal(t, params, entry.Params)
		assert.Contains(t, string(entry.Value), key)
	})

	t.Run("failed jobs are dropped and counted", func(t *testing.T) {
		s := newTestStore(t)
		q := NewQueue(s)
		require.NoError(t, q.Enqueue(ctx, "a", "a", nil))
		require.NoError(t, q.Enqueue(ctx, "b", "b", nil))

		res, err := q.Drain(ctx, &recordingFetcher{fail: map[string]bool{"a": true}}, 5)
		require.NoError(t, err)
		assert.Equal(t, DrainResult{Processed: 2, Succeeded: 1, Failed: 1}, res)
		assert.Zero(t, q.Count(ctx))

		_, ok := s.GetQuery(ctx, "a")
		assert.False(t, ok)
	})

	t.Run("never processes more than the limit", func(t *testing.T) {
		s := newTestStore(t)
		q := NewQueue(s)
		for _, key := range []string{"a", "b", "c", "d", "e"} {
			require.NoError(t, q.Enqueue(ctx, key, key, nil))
		}
		for _, n := range []int{1, 3} {
			before := q.Count(ctx)
			f := &recordingFetcher{}
			res, err := q.Drain(ctx, f, n)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(f.calls), n)
			assert.Equal(t, max(0, before-n), res.Skipped)
		}
		assert.Equal(t, 1, q.Count(ctx))
	})

	t.Run("empty queue", func(t *testing.T) {
		q := NewQueue(newTestStore(t))
		res, err := q.Drain(ctx, &recordingFetcher{}, 10)
		require.NoError(t, err)
		assert.Equal(t, DrainResult{}, res)
	})
}

// reenqueueFetcher re-enqueues every job it fetches, as a concurrent reader
// would when it finds the entry stale mid-drain.
type reenqueueFetcher struct {
	queue *Queue
}

func (f *reenqueueFetcher) Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	if err := f.queue.Enqueue(ctx, CacheKey(endpoint, params), endpoint, params); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"data":[]}`), nil
}

func TestDrainKeepsJobReenqueuedDuringFetch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	q := NewQueue(s)
	frozen := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	key := CacheKey("projects", nil)
	require.NoError(t, q.Enqueue(ctx, key, "projects", nil))

	res, err := q.Drain(ctx, &reenqueueFetcher{queue: q}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)

	jobs := q.List(ctx, 0)
	require.Len(t, jobs, 1, "re-enqueued job must survive even with an identical queued_at")
	assert.Equal(t, key, jobs[0].CacheKey)
	assert.Equal(t, frozen.UnixMilli(), jobs[0].QueuedAt.UnixMilli())

	res, err = q.Drain(ctx, &recordingFetcher{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Zero(t, q.Count(ctx))
}

func TestDrainLock(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "acme", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	lock, err := acquireDrainLock(dir)
	require.NoError(t, err)

	q := NewQueue(s)
	require.NoError(t, q.Enqueue(context.Background(), "a", "a", nil))
	_, err = q.Drain(context.Background(), &recordingFetcher{}, 1)
	assert.ErrorIs(t, err, ErrDrainLocked)
	assert.Equal(t, 1, q.Count(context.Background()))

	require.NoError(t, lock.Release())
	res, err := q.Drain(context.Background(), &recordingFetcher{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
}

func TestQueueClear(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(newTestStore(t))
	require.NoError(t, q.Enqueue(ctx, "a", "a", nil))
	require.NoError(t, q.Enqueue(ctx, "b", "b", nil))

	n, err := q.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, q.Count(ctx))
}
