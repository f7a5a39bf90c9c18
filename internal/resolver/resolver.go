// Package resolver turns human-friendly references (an email, a project
// number, a name) into Productive entity ids, using the local reference cache
// first and the remote API when the cache cannot answer.
package resolver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
)

const (
	// DefaultTTL is how long a synced kind is trusted without asking the API.
	DefaultTTL = 24 * time.Hour
	// DefaultSuggestionLimit caps "did you mean" lists.
	DefaultSuggestionLimit = 5

	warmTimeout = 10 * time.Second
	maxParallel = 4
)

// Source says where candidates came from.
type Source string

const (
	SourceID     Source = "id"
	SourceCache  Source = "cache"
	SourceRemote Source = "remote"
)

// Searcher is the remote search the resolver falls back to.
type Searcher interface {
	Search(ctx context.Context, kind cache.Kind, query, ownerID string) ([]cache.Record, error)
}

// Candidate is one possible match for a query.
type Candidate struct {
	ID    string     `json:"id"`
	Kind  cache.Kind `json:"kind,omitempty"`
	Label string     `json:"label,omitempty"`
	Query string     `json:"query"`
	Exact bool       `json:"exact"`
}

// Result is the ordered outcome of a resolution: exact matches first, then
// partial matches in store or API order.
type Result struct {
	Query      string      `json:"query"`
	Kind       cache.Kind  `json:"kind,omitempty"`
	Source     Source      `json:"source"`
	Candidates []Candidate `json:"candidates"`
	// Ambiguous is set when several candidates were returned and the caller
	// did not ask for the first one.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// Options tunes a single resolution.
type Options struct {
	// ExpectedKind is the kind the caller needs. It wins over detection.
	ExpectedKind cache.Kind
	// OwnerID scopes the search to children of one parent (e.g. services of a project).
	OwnerID string
	// PreferFirst returns only the best candidate instead of all of them.
	PreferFirst bool
	// DefaultKinds are searched when no kind is given or detected.
	DefaultKinds []cache.Kind
	// Limit caps the candidates per kind.
	Limit int
}

// Config holds resolver tuning.
type Config struct {
	// TTL is how long a kind's mirror is trusted before falling back to the API.
	TTL time.Duration
	// SuggestionLimit caps suggestions attached to NoMatch errors.
	SuggestionLimit int
}

// Resolver resolves queries for one tenant.
type Resolver struct {
	store  *cache.Store
	remote Searcher
	logger *zap.Logger

	ttl             time.Duration
	suggestionLimit int

	warming sync.WaitGroup
}

// New creates a Resolver backed by store, falling back to remote.
func New(store *cache.Store, remote Searcher, logger *zap.Logger, cfg Config) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = DefaultSuggestionLimit
	}
	return &Resolver{
		store:           store,
		remote:          remote,
		logger:          logger,
		ttl:             cfg.TTL,
		suggestionLimit: cfg.SuggestionLimit,
	}
}

// Resolve returns the candidates matching query. Several candidates are not
// an error; use ResolveOne when exactly one value is needed.
//
// Records fetched from the API are written back to the cache in the
// background. That write is best-effort and never affects the result.
func (r *Resolver) Resolve(ctx context.Context, query string, opts Options) (Result, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Result{}, ErrEmptyQuery
	}

	if IsNumericID(q) {
		return Result{
			Query:      q,
			Kind:       opts.ExpectedKind,
			Source:     SourceID,
			Candidates: []Candidate{{ID: q, Kind: opts.ExpectedKind, Query: q, Exact: true}},
		}, nil
	}

	kind := opts.ExpectedKind
	if d, ok := Detect(q); ok && (kind == "" || kind == d.Kind) {
		kind = d.Kind
	}

	var (
		candidates []Candidate
		source     Source
		err        error
		kinds      []cache.Kind
	)
	switch {
	case kind != "":
		kinds = []cache.Kind{kind}
		candidates, source, err = r.lookup(ctx, kind, q, opts)
	case len(opts.DefaultKinds) > 0:
		kinds = opts.DefaultKinds
		candidates, source, err = r.lookupAcross(ctx, opts.DefaultKinds, q, opts)
	default:
		return Result{}, &ResolveError{Code: NoKindDetected, Query: q}
	}
	if err != nil {
		return Result{}, &ResolveError{Code: CollaboratorUnavailable, Query: q, ExpectedKind: kind, Err: err}
	}

	rank(candidates)

	if len(candidates) == 0 {
		return Result{}, &ResolveError{
			Code:         NoMatch,
			Query:        q,
			ExpectedKind: kind,
			Suggestions:  r.suggest(ctx, kinds, q, opts.OwnerID),
		}
	}

	if opts.PreferFirst {
		candidates = candidates[:1]
	}

	return Result{
		Query:      q,
		Kind:       kind,
		Source:     source,
		Candidates: candidates,
		Ambiguous:  len(candidates) > 1,
	}, nil
}

// ResolveOne resolves query to a single candidate. A lone exact match wins
// over partial ones; otherwise more than one candidate is an Ambiguous error
// unless opts.PreferFirst is set.
func (r *Resolver) ResolveOne(ctx context.Context, query string, opts Options) (Candidate, error) {
	res, err := r.Resolve(ctx, query, opts)
	if err != nil {
		return Candidate{}, err
	}
	return res.Single()
}

// Single narrows a result to one candidate with the same rules as ResolveOne.
func (res Result) Single() (Candidate, error) {
	if len(res.Candidates) == 1 {
		return res.Candidates[0], nil
	}

	var exact []Candidate
	for _, c := range res.Candidates {
		if c.Exact {
			exact = append(exact, c)
		}
	}
	if len(exact) == 1 {
		return exact[0], nil
	}

	ambiguous := res.Candidates
	if len(exact) > 1 {
		ambiguous = exact
	}
	return Candidate{}, &ResolveError{
		Code:         Ambiguous,
		Query:        res.Query,
		ExpectedKind: res.Kind,
		Candidates:   ambiguous,
	}
}

// Outcome is the result of one query of a ResolveMany call.
type Outcome struct {
	Query  string `json:"query"`
	Result Result `json:"result"`
	Err    error  `json:"-"`
}

// ResolveMany resolves several queries concurrently. Outcomes are returned in
// input order; a failure of one query does not affect the others.
func (r *Resolver) ResolveMany(ctx context.Context, queries []string, opts Options) []Outcome {
	out := make([]Outcome, len(queries))
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, q := range queries {
		g.Go(func() error {
			res, err := r.Resolve(ctx, q, opts)
			out[i] = Outcome{Query: q, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Wait blocks until background cache writes have finished.
func (r *Resolver) Wait() {
	r.warming.Wait()
}

func (r *Resolver) lookup(ctx context.Context, kind cache.Kind, q string, opts Options) ([]Candidate, Source, error) {
	if r.store.IsFresh(ctx, kind, r.ttl) {
		records := r.store.Search(ctx, kind, q, cache.SearchOptions{OwnerID: opts.OwnerID, Limit: opts.Limit})
		if len(records) > 0 {
			return toCandidates(records, kind, q), SourceCache, nil
		}
	}

	records, err := r.remote.Search(ctx, kind, q, opts.OwnerID)
	if err != nil {
		return nil, "", err
	}
	r.warm(kind, records)

	if opts.OwnerID != "" {
		scoped := records[:0:0]
		for _, rec := range records {
			if rec.OwnerID == opts.OwnerID {
				scoped = append(scoped, rec)
			}
		}
		records = scoped
	}
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	return toCandidates(records, kind, q), SourceRemote, nil
}

// lookupAcross searches every kind concurrently and concatenates the results
// in kinds order.
func (r *Resolver) lookupAcross(ctx context.Context, kinds []cache.Kind, q string, opts Options) ([]Candidate, Source, error) {
	perKind := make([][]Candidate, len(kinds))
	sources := make([]Source, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, k := range kinds {
		g.Go(func() error {
			found, src, err := r.lookup(gctx, k, q, opts)
			if err != nil {
				return err
			}
			perKind[i] = found
			sources[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	var all []Candidate
	source := SourceCache
	for i := range kinds {
		all = append(all, perKind[i]...)
		if sources[i] == SourceRemote {
			source = SourceRemote
		}
	}
	return all, source, nil
}

func (r *Resolver) suggest(ctx context.Context, kinds []cache.Kind, q, ownerID string) []Candidate {
	var out []Candidate
	for _, k := range kinds {
		remaining := r.suggestionLimit - len(out)
		if remaining <= 0 {
			break
		}
		for _, rec := range r.store.Suggest(ctx, k, q, cache.SearchOptions{OwnerID: ownerID, Limit: remaining}) {
			out = append(out, Candidate{ID: rec.ID, Kind: k, Label: rec.Label, Query: q})
		}
	}
	return out
}

// warm upserts API results into the cache without blocking the caller.
func (r *Resolver) warm(kind cache.Kind, records []cache.Record) {
	if len(records) == 0 || !r.store.Available() {
		return
	}
	batch := make([]cache.Record, len(records))
	copy(batch, records)

	r.warming.Add(1)
	go func() {
		defer r.warming.Done()
		ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
		defer cancel()
		if err := r.store.Upsert(ctx, kind, batch); err != nil {
			r.logger.Warn("failed to warm cache", zap.String("kind", kind.String()), zap.Int("records", len(batch)), zap.Error(err))
		}
	}()
}

func toCandidates(records []cache.Record, kind cache.Kind, q string) []Candidate {
	out := make([]Candidate, len(records))
	for i, rec := range records {
		out[i] = Candidate{ID: rec.ID, Kind: kind, Label: rec.Label, Query: q, Exact: rec.MatchesExactly(q)}
	}
	return out
}

// rank moves exact candidates ahead of partial ones, keeping relative order.
func rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Exact && !candidates[j].Exact
	})
}
