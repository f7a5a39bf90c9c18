package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/studiometa/productive-tools-sub004/internal/atomicfile"
)

type persistedConfig struct {
	DefaultOrg *string                 `toml:"default_org,omitempty"`
	StateFile  *string                 `toml:"state_file,omitempty"`
	Orgs       map[string]persistedOrg `toml:"orgs,omitempty"`
	Cache      *persistedCacheSettings `toml:"cache,omitempty"`
}

type persistedOrg struct {
	ID      string  `toml:"id"`
	Token   *string `toml:"token,omitempty"`
	BaseURL *string `toml:"base_url,omitempty"`
}

type persistedCacheSettings struct {
	Dir      *string `toml:"dir,omitempty"`
	TTL      *string `toml:"ttl,omitempty"`
	QueryTTL *string `toml:"query_ttl,omitempty"`
	DrainMax *int    `toml:"drain_max,omitempty"`
}

func nonEmptyPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// SaveTo writes the config to path atomically, omitting empty settings.
// The file holds API tokens so it is written owner-only.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	out := persistedConfig{
		DefaultOrg: nonEmptyPtr(cfg.DefaultOrg),
		StateFile:  nonEmptyPtr(cfg.StateFile),
	}
	if len(cfg.Orgs) > 0 {
		out.Orgs = make(map[string]persistedOrg, len(cfg.Orgs))
		for name, org := range cfg.Orgs {
			out.Orgs[name] = persistedOrg{
				ID:      strings.TrimSpace(org.ID),
				Token:   nonEmptyPtr(org.Token),
				BaseURL: nonEmptyPtr(org.BaseURL),
			}
		}
	}

	cache := persistedCacheSettings{
		Dir:      nonEmptyPtr(cfg.Cache.Dir),
		TTL:      nonEmptyPtr(cfg.Cache.TTL),
		QueryTTL: nonEmptyPtr(cfg.Cache.QueryTTL),
	}
	if cfg.Cache.DrainMax > 0 {
		n := cfg.Cache.DrainMax
		cache.DrainMax = &n
	}
	if cache != (persistedCacheSettings{}) {
		out.Cache = &cache
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}

	return nil
}
