// Package testutil provides an in-process stand-in for the Productive API.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
)

// FakeAPI implements the remote search, list and fetch calls over in-memory
// records. It is safe for concurrent use.
type FakeAPI struct {
	mu      sync.Mutex
	records map[cache.Kind][]cache.Record
	docs    map[string]json.RawMessage

	// Err, when set, is returned by every call.
	Err error

	searches []SearchCall
	fetches  []string
}

// SearchCall records one Search invocation.
type SearchCall struct {
	Kind    cache.Kind
	Query   string
	OwnerID string
}

// NewFakeAPI returns an empty FakeAPI.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		records: make(map[cache.Kind][]cache.Record),
		docs:    make(map[string]json.RawMessage),
	}
}

// Add registers remote records for kind.
func (f *FakeAPI) Add(kind cache.Kind, records ...cache.Record) *FakeAPI {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		r.Kind = kind
		f.records[kind] = append(f.records[kind], r)
	}
	return f
}

// SetDocument registers the document returned by Fetch for endpoint+params.
func (f *FakeAPI) SetDocument(endpoint string, params map[string]string, doc string) *FakeAPI {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[cache.CacheKey(endpoint, params)] = json.RawMessage(doc)
	return f
}

// Search returns records whose label or search fields contain query.
func (f *FakeAPI) Search(_ context.Context, kind cache.Kind, query, ownerID string) ([]cache.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, SearchCall{Kind: kind, Query: query, OwnerID: ownerID})
	if f.Err != nil {
		return nil, f.Err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var out []cache.Record
	for _, r := range f.records[kind] {
		if ownerID != "" && r.OwnerID != ownerID {
			continue
		}
		if containsFold(r, q) {
			out = append(out, r)
		}
	}
	return out, nil
}

// List returns every record of kind.
func (f *FakeAPI) List(_ context.Context, kind cache.Kind) ([]cache.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]cache.Record(nil), f.records[kind]...), nil
}

// Fetch returns the document registered for endpoint+params.
func (f *FakeAPI) Fetch(_ context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := cache.CacheKey(endpoint, params)
	f.fetches = append(f.fetches, key)
	if f.Err != nil {
		return nil, f.Err
	}
	doc, ok := f.docs[key]
	if !ok {
		return nil, fmt.Errorf("404 not found: %s", key)
	}
	return doc, nil
}

// Searches returns the Search calls made so far.
func (f *FakeAPI) Searches() []SearchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SearchCall(nil), f.searches...)
}

// Fetches returns the cache keys passed to Fetch so far.
func (f *FakeAPI) Fetches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetches...)
}

func containsFold(r cache.Record, q string) bool {
	if strings.Contains(strings.ToLower(r.Label), q) {
		return true
	}
	for _, field := range r.SearchFields {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
