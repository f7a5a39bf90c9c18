package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveStatePath(t *testing.T) {
	configPath := "/home/me/.config/productive/config.toml"

	t.Run("explicit state path wins", func(t *testing.T) {
		got := ResolveStatePath("/tmp/custom/state.toml", configPath, &Config{StateFile: "other.toml"})
		if got != "/tmp/custom/state.toml" {
			t.Fatalf("expected explicit state path, got %q", got)
		}
	})

	t.Run("config state_file relative to config dir", func(t *testing.T) {
		got := ResolveStatePath("", configPath, &Config{StateFile: "runtime/state.toml"})
		want := "/home/me/.config/productive/runtime/state.toml"
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	})

	t.Run("slash-rooted state_file is absolute", func(t *testing.T) {
		got := ResolveStatePath("", configPath, &Config{StateFile: "/var/lib/productive/state.toml"})
		want := filepath.FromSlash("/var/lib/productive/state.toml")
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	})

	t.Run("fallback sibling state.toml", func(t *testing.T) {
		got := ResolveStatePath("", configPath, &Config{})
		want := "/home/me/.config/productive/state.toml"
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	})
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")

	state, err := LoadState(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Version != StateVersion || state.ActiveOrg != "" {
		t.Fatalf("unexpected default state %+v", state)
	}

	if err := SaveState(path, &State{ActiveOrg: " client "}); err != nil {
		t.Fatalf("save state: %v", err)
	}
	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if loaded.ActiveOrg != "client" {
		t.Fatalf("expected active_org=client, got %q", loaded.ActiveOrg)
	}
}

func TestLoadStateRejectsInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	if err := os.WriteFile(path, []byte("active_org = ["), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}

	if _, err := LoadState(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSelectOrg(t *testing.T) {
	state := &State{ActiveOrg: "client"}
	if got := SelectOrg("studio", state); got != "studio" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := SelectOrg("", state); got != "client" {
		t.Errorf("expected active org, got %q", got)
	}
	if got := SelectOrg("", nil); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
