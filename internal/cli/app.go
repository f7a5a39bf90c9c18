package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
	"github.com/studiometa/productive-tools-sub004/internal/config"
	"github.com/studiometa/productive-tools-sub004/internal/productive"
	"github.com/studiometa/productive-tools-sub004/internal/resolver"
)

// remoteAPI is what commands need from the Productive API.
type remoteAPI interface {
	Search(ctx context.Context, kind cache.Kind, query, ownerID string) ([]cache.Record, error)
	List(ctx context.Context, kind cache.Kind) ([]cache.Record, error)
	Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error)
}

// newRemote builds the API client for org. Tests replace it.
var newRemote = func(org config.Org, logger *zap.Logger) remoteAPI {
	return productive.New(org.BaseURL, org.Token, org.ID, logger, nil)
}

// app is everything a tenant-scoped command works with, built once per run.
type app struct {
	org      config.Org
	registry *cache.Registry
	store    *cache.Store
	queue    *cache.Queue
	remote   remoteAPI
	resolver *resolver.Resolver
	fetcher  *cache.CachedFetcher
	drainMax int
}

// session owns the app of one Execute run. The app is built on first use and
// closed when the run ends.
type session struct {
	app *app
}

type sessionKey struct{}

func withSession(ctx context.Context, s *session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// sessionFrom reads the session from the root command. Subcommands keep the
// context of the first run they took part in, the root is reset every run.
func sessionFrom(cmd *cobra.Command) (*session, error) {
	if ctx := cmd.Root().Context(); ctx != nil {
		if s, ok := ctx.Value(sessionKey{}).(*session); ok {
			return s, nil
		}
	}
	return nil, errors.New("command run outside Execute")
}

// getApp resolves the selected organization and opens its cache.
func getApp(cmd *cobra.Command) (*app, error) {
	s, err := sessionFrom(cmd)
	if err != nil {
		return nil, err
	}
	if s.app != nil {
		return s.app, nil
	}

	c := getConfig()
	org, err := c.ResolveOrg(config.SelectOrg(orgFlag, state), env)
	if err != nil {
		return nil, err
	}
	ttl, err := c.Cache.TTLDuration()
	if err != nil {
		return nil, err
	}
	queryTTL, err := c.Cache.QueryTTLDuration()
	if err != nil {
		return nil, err
	}

	registry := cache.NewRegistry(c.CacheDir(env), logger)
	store := registry.Open(org.ID)
	queue := cache.NewQueue(store)
	remote := newRemote(org, logger)

	s.app = &app{
		org:      org,
		registry: registry,
		store:    store,
		queue:    queue,
		remote:   remote,
		resolver: resolver.New(store, remote, logger, resolver.Config{TTL: ttl}),
		fetcher:  cache.NewCachedFetcher(store, queue, remote, queryTTL),
		drainMax: c.Cache.DrainMax,
	}
	return s.app, nil
}

// close waits for background cache writes and closes the cache.
func (s *session) close() {
	if s == nil || s.app == nil {
		return
	}
	s.app.resolver.Wait()
	if err := s.app.registry.Close(); err != nil {
		logger.Warn("failed to close cache", zap.Error(err))
	}
	s.app = nil
}

// requireApp is getApp with the error already reported in the active output mode.
func requireApp(cmd *cobra.Command) (*app, error) {
	a, err := getApp(cmd)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, config.ErrNoOrg) {
		return nil, handleError(ErrOrgNotSelected, err,
			"Set PRODUCTIVE_ORG_ID and PRODUCTIVE_API_TOKEN, or add an organization with 'productive org add'")
	}
	return nil, handleError(ErrConfigInvalid, err, "Run 'productive org list' to see configured organizations")
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s (%s ago)", t.Local().Format("2006-01-02 15:04"), time.Since(*t).Round(time.Second))
}
