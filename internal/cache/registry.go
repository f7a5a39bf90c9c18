package cache

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry owns one Store per tenant. It is created by the process entry
// point and handed to whatever needs a store; stores are opened lazily and
// closed together.
type Registry struct {
	dir    string
	logger *zap.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry returns a registry keeping tenant databases under dir.
func NewRegistry(dir string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{dir: dir, logger: logger, stores: make(map[string]*Store)}
}

// Open returns the store for tenant, opening it on first use. If the database
// cannot be opened the failure is logged and an always-miss store is returned,
// so callers fall back to the remote API.
func (r *Registry) Open(tenant string) *Store {
	tenant = strings.TrimSpace(tenant)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[tenant]; ok {
		return s
	}

	s, err := r.open(tenant)
	if err != nil {
		r.logger.Warn("cache unavailable, continuing without it", zap.String("tenant", tenant), zap.Error(err))
		s = Unavailable(tenant, r.logger)
	}
	r.stores[tenant] = s
	return s
}

func (r *Registry) open(tenant string) (*Store, error) {
	if tenant == "" {
		return nil, fmt.Errorf("tenant is required")
	}
	if strings.ContainsAny(tenant, `/\`) || tenant == "." || tenant == ".." {
		return nil, fmt.Errorf("invalid tenant %q", tenant)
	}
	if r.dir == "" {
		return nil, fmt.Errorf("no cache directory configured")
	}
	return Open(filepath.Join(r.dir, tenant), tenant, r.logger)
}

// Close closes every store opened through the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for tenant, s := range r.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close cache for %s: %w", tenant, err)
		}
		delete(r.stores, tenant)
	}
	return firstErr
}
