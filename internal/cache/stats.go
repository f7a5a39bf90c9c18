package cache

import (
	"context"
	"time"
)

// KindStats describes the mirror of one kind.
type KindStats struct {
	Kind       Kind       `json:"kind"`
	Records    int        `json:"records"`
	LastSynced *time.Time `json:"last_synced,omitempty"`
}

// Stats describes the whole tenant cache.
type Stats struct {
	Tenant        string      `json:"tenant"`
	Available     bool        `json:"available"`
	Kinds         []KindStats `json:"kinds"`
	QueuedJobs    int         `json:"queued_jobs"`
	CachedQueries int         `json:"cached_queries"`
}

// Stats returns record counts and sync times per kind plus queue and
// query-cache sizes.
func (s *Store) Stats(ctx context.Context) Stats {
	st := Stats{Tenant: s.tenant, Available: s.Available()}
	if !st.Available {
		return st
	}

	for _, k := range Kinds {
		ks := KindStats{Kind: k}
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+k.table()).Scan(&ks.Records); err != nil {
			s.miss("stats", err)
		}
		if last, ok := s.LastSynced(ctx, k); ok {
			ks.LastSynced = &last
		}
		st.Kinds = append(st.Kinds, ks)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_cache`).Scan(&st.CachedQueries); err != nil {
		s.miss("stats", err)
	}
	st.QueuedJobs = NewQueue(s).Count(ctx)
	return st
}
