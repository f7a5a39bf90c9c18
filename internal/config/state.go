package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/studiometa/productive-tools-sub004/internal/atomicfile"
)

// StateVersion is the schema version written to state.toml.
const StateVersion = 1

// State is what the CLI remembers between runs on this machine.
type State struct {
	Version   int    `toml:"version"`
	ActiveOrg string `toml:"active_org,omitempty"`
}

func (s State) normalized() State {
	if s.Version == 0 {
		s.Version = StateVersion
	}
	s.ActiveOrg = strings.TrimSpace(s.ActiveOrg)
	return s
}

// ResolveConfigPath returns explicit when set, DefaultPath otherwise.
func ResolveConfigPath(explicit string) string {
	if strings.TrimSpace(explicit) == "" {
		return DefaultPath()
	}
	return explicit
}

// ResolveStatePath picks the state.toml location. An explicit path wins, then
// cfg.StateFile (relative paths are taken from the config directory), then
// state.toml next to the config file.
func ResolveStatePath(explicit, configPath string, cfg *Config) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}

	dir := filepath.Dir(ResolveConfigPath(configPath))
	var fromConfig string
	if cfg != nil {
		fromConfig = strings.TrimSpace(cfg.StateFile)
	}
	switch {
	case fromConfig == "":
		return filepath.Join(dir, "state.toml")
	case strings.HasPrefix(filepath.ToSlash(fromConfig), "/"):
		// Slash-rooted values are absolute on every OS.
		return filepath.Clean(filepath.FromSlash(fromConfig))
	default:
		return filepath.Join(dir, filepath.FromSlash(fromConfig))
	}
}

// LoadState reads state.toml. A missing file is an empty state.
func LoadState(path string) (*State, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("state path is required")
	}

	var s State
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s = State{}.normalized()
			return &s, nil
		}
		return nil, fmt.Errorf("failed to parse state %s: %w", path, err)
	}
	s = s.normalized()
	return &s, nil
}

// SaveState writes state to path, creating its directory.
func SaveState(path string, state *State) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("state path is required")
	}
	var s State
	if state != nil {
		s = *state
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s.normalized()); err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write state %s: %w", path, err)
	}
	return nil
}

// SelectOrg returns the organization to use: the explicit flag, then the
// active one from state. Empty means the configured default.
func SelectOrg(explicit string, state *State) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return name
	}
	if state != nil {
		return state.ActiveOrg
	}
	return ""
}
