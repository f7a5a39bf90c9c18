package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultQueryTTL is how long a cached query result is served without a refresh.
const DefaultQueryTTL = 5 * time.Minute

// Fetcher performs a read against the remote API.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	return f(ctx, endpoint, params)
}

// CacheKey builds the key identifying one remote query. Params are encoded in
// sorted order so equal queries produce equal keys.
func CacheKey(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	v := make(url.Values, len(params))
	for k, val := range params {
		v.Set(k, val)
	}
	return endpoint + "?" + v.Encode()
}

// QueryEntry is one cached query result.
type QueryEntry struct {
	Key      string
	Endpoint string
	Params   map[string]string
	Value    json.RawMessage
	StoredAt time.Time
}

// GetQuery returns the cached result for key.
func (s *Store) GetQuery(ctx context.Context, key string) (QueryEntry, bool) {
	if !s.Available() {
		return QueryEntry{}, false
	}
	var (
		e          QueryEntry
		paramsJSON string
		value      string
		storedAt   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT cache_key, endpoint, params, value, stored_at FROM query_cache WHERE cache_key = ?`, key,
	).Scan(&e.Key, &e.Endpoint, &paramsJSON, &value, &storedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			s.miss("get_query", err)
		}
		return QueryEntry{}, false
	}
	if err := json.Unmarshal([]byte(paramsJSON), &e.Params); err != nil {
		s.miss("get_query", err)
		return QueryEntry{}, false
	}
	e.Value = json.RawMessage(value)
	e.StoredAt = time.UnixMilli(storedAt)
	return e, true
}

// PutQuery stores value as the result of the query identified by key.
func (s *Store) PutQuery(ctx context.Context, key, endpoint string, params map[string]string, value json.RawMessage) error {
	if !s.Available() {
		return nil
	}
	paramsJSON, err := marshalParams(params)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_cache (cache_key, endpoint, params, value, stored_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			endpoint = excluded.endpoint,
			params = excluded.params,
			value = excluded.value,
			stored_at = excluded.stored_at`,
		key, endpoint, paramsJSON, string(value), s.nowMillis())
	if err != nil {
		return fmt.Errorf("store query %s: %w", key, err)
	}
	return nil
}

// ClearQueries removes every cached query result.
func (s *Store) ClearQueries(ctx context.Context) (int, error) {
	if !s.Available() {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM query_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear query cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func marshalParams(params map[string]string) (string, error) {
	if params == nil {
		params = map[string]string{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return string(b), nil
}

// Cached is the outcome of a CachedFetcher read.
type Cached struct {
	Value     json.RawMessage `json:"value"`
	FromCache bool            `json:"from_cache"`
	Stale     bool            `json:"stale"`
	StoredAt  time.Time       `json:"stored_at"`
}

// CachedFetcher serves remote reads from the query cache. A stale hit is
// returned as-is and a refresh is queued for the next drain; only a miss
// reaches the remote API inline.
type CachedFetcher struct {
	store   *Store
	queue   *Queue
	fetcher Fetcher
	ttl     time.Duration
}

// NewCachedFetcher wires a query cache in front of fetcher.
func NewCachedFetcher(store *Store, queue *Queue, fetcher Fetcher, ttl time.Duration) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultQueryTTL
	}
	return &CachedFetcher{store: store, queue: queue, fetcher: fetcher, ttl: ttl}
}

// Get returns the result of endpoint+params.
func (c *CachedFetcher) Get(ctx context.Context, endpoint string, params map[string]string) (Cached, error) {
	key := CacheKey(endpoint, params)

	if entry, ok := c.store.GetQuery(ctx, key); ok {
		stale := c.store.now().Sub(entry.StoredAt) > c.ttl
		if stale {
			if err := c.queue.Enqueue(ctx, key, endpoint, params); err != nil {
				c.store.logger.Warn("failed to queue refresh", zap.String("cache_key", key), zap.Error(err))
			}
		}
		return Cached{Value: entry.Value, FromCache: true, Stale: stale, StoredAt: entry.StoredAt}, nil
	}

	value, err := c.fetcher.Fetch(ctx, endpoint, params)
	if err != nil {
		return Cached{}, err
	}
	if err := c.store.PutQuery(ctx, key, endpoint, params, value); err != nil {
		c.store.logger.Warn("failed to cache query result", zap.String("cache_key", key), zap.Error(err))
	}
	return Cached{Value: value, StoredAt: c.store.now()}, nil
}
