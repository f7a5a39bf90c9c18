// Package config handles the productive CLI configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrNoOrg is returned when no organization can be selected.
var ErrNoOrg = errors.New("no organization configured")

// Config represents the global configuration file.
type Config struct {
	// DefaultOrg is the organization used when none is selected.
	DefaultOrg string `toml:"default_org"`

	// StateFile overrides the location of state.toml.
	StateFile string `toml:"state_file"`

	// Orgs maps organization names to their credentials.
	Orgs map[string]OrgConfig `toml:"orgs"`

	// Cache tunes the local reference cache.
	Cache CacheConfig `toml:"cache"`
}

// OrgConfig holds the credentials of one Productive organization.
type OrgConfig struct {
	ID      string `toml:"id"`
	Token   string `toml:"token"`
	BaseURL string `toml:"base_url"`
}

// CacheConfig tunes the local reference cache. Durations use Go syntax ("24h").
type CacheConfig struct {
	Dir      string `toml:"dir"`
	TTL      string `toml:"ttl"`
	QueryTTL string `toml:"query_ttl"`
	DrainMax int    `toml:"drain_max"`
}

// Org is a fully resolved organization.
type Org struct {
	Name    string
	ID      string
	Token   string
	BaseURL string
}

// TTLDuration returns the reference TTL, or 0 when unset.
func (c CacheConfig) TTLDuration() (time.Duration, error) {
	return parseDuration("cache.ttl", c.TTL)
}

// QueryTTLDuration returns the query cache TTL, or 0 when unset.
func (c CacheConfig) QueryTTLDuration() (time.Duration, error) {
	return parseDuration("cache.query_ttl", c.QueryTTL)
}

func parseDuration(field, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", field, value)
	}
	return d, nil
}

// OrgNames returns the configured organization names, sorted.
func (c *Config) OrgNames() []string {
	names := make([]string, 0, len(c.Orgs))
	for name := range c.Orgs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveOrg returns the organization called name (the default one if name is
// empty), with env values layered on top. With no configured organization,
// env alone can describe one.
func (c *Config) ResolveOrg(name string, env Env) (Org, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = c.DefaultOrg
	}

	var org Org
	if name != "" {
		oc, ok := c.Orgs[name]
		if !ok {
			return Org{}, fmt.Errorf("organization '%s' not found in config", name)
		}
		org = Org{Name: name, ID: oc.ID, Token: oc.Token, BaseURL: oc.BaseURL}
	} else {
		org.Name = "env"
	}

	if env.OrgID != "" {
		org.ID = env.OrgID
	}
	if env.Token != "" {
		org.Token = env.Token
	}
	if env.BaseURL != "" {
		org.BaseURL = env.BaseURL
	}

	if org.ID == "" {
		if name == "" {
			return Org{}, ErrNoOrg
		}
		return Org{}, fmt.Errorf("organization '%s' has no id", name)
	}
	return org, nil
}

// CacheDir returns the cache root: env, then config, then the user cache dir.
func (c *Config) CacheDir(env Env) string {
	if env.CacheDir != "" {
		return env.CacheDir
	}
	if dir := strings.TrimSpace(c.Cache.Dir); dir != "" {
		return expandHome(dir)
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "productive")
	}
	return filepath.Join(".", ".productive-cache")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Load loads the configuration from the default location.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom loads the configuration from a specific path.
// A missing file yields an empty config.
func LoadFrom(path string) (*Config, error) {
	var cfg Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// DefaultPath returns the default config file path.
// Checks ~/.config/productive/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "productive", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "productive", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}
