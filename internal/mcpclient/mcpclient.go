// Package mcpclient registers the productive MCP server in agent client
// config files (Claude Code, Claude Desktop, Cursor).
package mcpclient

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"

	"github.com/studiometa/productive-tools-sub004/internal/atomicfile"
)

// ServerName is the key of our entry under "mcpServers".
const ServerName = "productive"

// Client identifies an MCP client application.
type Client string

const (
	ClaudeCode    Client = "claude-code"
	ClaudeDesktop Client = "claude-desktop"
	Cursor        Client = "cursor"
)

// AllClients returns all supported MCP clients.
func AllClients() []Client {
	return []Client{ClaudeCode, ClaudeDesktop, Cursor}
}

// ValidClient returns true if c is a recognized client name.
func ValidClient(c string) bool {
	switch Client(c) {
	case ClaudeCode, ClaudeDesktop, Cursor:
		return true
	}
	return false
}

// ServerEntry is the command a client runs to start the server.
type ServerEntry struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// ClientStatus reports whether the server is registered with a client.
type ClientStatus struct {
	Client     Client       `json:"client"`
	ConfigPath string       `json:"config_path"`
	Exists     bool         `json:"exists"`
	Installed  bool         `json:"installed"`
	Entry      *ServerEntry `json:"entry,omitempty"`
}

// ConfigPath returns the config file path for client. Pass "" as homeDir to
// use the current user's home.
func ConfigPath(client Client, homeDir string) (string, error) {
	if homeDir == "" {
		var err error
		homeDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
	}

	switch client {
	case ClaudeCode:
		return filepath.Join(homeDir, ".claude.json"), nil
	case ClaudeDesktop:
		if runtime.GOOS == "darwin" {
			return filepath.Join(homeDir, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
		}
		return filepath.Join(homeDir, ".config", "Claude", "claude_desktop_config.json"), nil
	case Cursor:
		return filepath.Join(homeDir, ".cursor", "mcp.json"), nil
	default:
		return "", fmt.Errorf("unknown client: %s", client)
	}
}

// resolveCommand returns the absolute path of the running binary.
func resolveCommand() string {
	exe, err := os.Executable()
	if err != nil {
		return "productive"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		return resolved
	}
	return exe
}

// BuildServerEntry returns the entry that starts "productive mcp serve",
// pinned to org when it is not empty.
func BuildServerEntry(org string) ServerEntry {
	args := []string{"mcp", "serve"}
	if org != "" {
		args = append(args, "--org", org)
	}
	return ServerEntry{Command: resolveCommand(), Args: args}
}

// InstallResult describes what Install changed.
type InstallResult int

const (
	Installed InstallResult = iota
	Updated
	AlreadyInstalled
)

func (r InstallResult) String() string {
	switch r {
	case Installed:
		return "installed"
	case Updated:
		return "updated"
	case AlreadyInstalled:
		return "already_installed"
	}
	return "unknown"
}

type clientConfig map[string]any

func readConfig(path string) (clientConfig, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return clientConfig{}, false, nil
		}
		return nil, false, fmt.Errorf("read config: %w", err)
	}
	var data clientConfig
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, true, fmt.Errorf("parse config: %w", err)
	}
	if data == nil {
		data = clientConfig{}
	}
	return data, true, nil
}

// servers returns the "mcpServers" object, creating it when create is set.
func (c clientConfig) servers(create bool) map[string]any {
	if m, ok := c["mcpServers"].(map[string]any); ok {
		return m
	}
	if !create {
		return nil
	}
	m := map[string]any{}
	c["mcpServers"] = m
	return m
}

func decodeEntry(v any) (ServerEntry, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return ServerEntry{}, false
	}
	var e ServerEntry
	e.Command, _ = m["command"].(string)
	if args, ok := m["args"].([]any); ok {
		for _, a := range args {
			if s, ok := a.(string); ok {
				e.Args = append(e.Args, s)
			}
		}
	}
	return e, true
}

// Install adds or updates our entry, keeping every other key of the file.
func Install(configPath string, entry ServerEntry) (InstallResult, error) {
	data, _, err := readConfig(configPath)
	if err != nil {
		return 0, err
	}

	servers := data.servers(true)
	result := Installed
	if existing, ok := decodeEntry(servers[ServerName]); ok {
		if existing.Command == entry.Command && reflect.DeepEqual(existing.Args, entry.Args) {
			return AlreadyInstalled, nil
		}
		result = Updated
	}

	servers[ServerName] = map[string]any{
		"command": entry.Command,
		"args":    entry.Args,
	}
	return result, writeConfig(configPath, data)
}

// Remove deletes our entry. It reports whether one was present.
func Remove(configPath string) (bool, error) {
	data, exists, err := readConfig(configPath)
	if err != nil || !exists {
		return false, err
	}

	servers := data.servers(false)
	if _, ok := servers[ServerName]; !ok {
		return false, nil
	}
	delete(servers, ServerName)
	if len(servers) == 0 {
		delete(data, "mcpServers")
	}
	return true, writeConfig(configPath, data)
}

// Status reports whether our entry is present in the client config.
func Status(client Client, configPath string) (*ClientStatus, error) {
	data, exists, err := readConfig(configPath)
	if err != nil {
		return nil, err
	}
	cs := &ClientStatus{Client: client, ConfigPath: configPath, Exists: exists}
	if entry, ok := decodeEntry(data.servers(false)[ServerName]); ok {
		cs.Installed = true
		cs.Entry = &entry
	}
	return cs, nil
}

func writeConfig(path string, data clientConfig) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	out = append(out, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return atomicfile.WriteFile(path, out, 0)
}
