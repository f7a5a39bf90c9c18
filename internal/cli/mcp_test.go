package cli

import (
	"path/filepath"
	"testing"

	"github.com/studiometa/productive-tools-sub004/internal/mcpclient"
)

func TestMCPInstallStatusRemove(t *testing.T) {
	tc := newTestCLI(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	installed := decodeData[map[string]string](t, tc.runJSON(t, "mcp", "install", "--client", "claude-code", "--org", "studio"))
	if installed["result"] != "installed" {
		t.Fatalf("install result = %q, want installed", installed["result"])
	}
	if installed["config_path"] != filepath.Join(home, ".claude.json") {
		t.Fatalf("config_path = %q", installed["config_path"])
	}

	again := decodeData[map[string]string](t, tc.runJSON(t, "mcp", "install", "--org", "studio"))
	if again["result"] != "already_installed" {
		t.Fatalf("second install result = %q, want already_installed", again["result"])
	}

	statuses := decodeData[[]mcpclient.ClientStatus](t, tc.runJSON(t, "mcp", "status", "--client", "claude-code"))
	if len(statuses) != 1 || !statuses[0].Installed {
		t.Fatalf("statuses = %+v, want installed", statuses)
	}
	if statuses[0].Entry == nil || len(statuses[0].Entry.Args) != 4 || statuses[0].Entry.Args[3] != "studio" {
		t.Fatalf("entry = %+v, want mcp serve --org studio", statuses[0].Entry)
	}

	removed := decodeData[map[string]any](t, tc.runJSON(t, "mcp", "remove"))
	if removed["removed"] != true {
		t.Fatalf("removed = %v, want true", removed["removed"])
	}
}

func TestMCPInstallUnknownClient(t *testing.T) {
	tc := newTestCLI(t)
	t.Setenv("HOME", t.TempDir())

	requireErrorCode(t, tc.runJSON(t, "mcp", "install", "--client", "emacs"), ErrMCPClientInvalid)
}
