package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/studiometa/productive-tools-sub004/internal/config"
)

func TestOrgAddUseAndList(t *testing.T) {
	tc := newTestCLI(t)

	added := decodeData[orgListItem](t, tc.runJSON(t, "org", "add", "studio", "--id", "99", "--token", "secret"))
	if added.ID != "99" || !added.Default {
		t.Fatalf("added = %+v, want id 99 as default", added)
	}
	tc.runJSON(t, "org", "add", "client", "--id", "100", "--token", "other")

	loaded, err := config.LoadFrom(tc.configPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.DefaultOrg != "studio" || loaded.Orgs["client"].Token != "other" {
		t.Fatalf("config = %+v", loaded)
	}
	info, err := os.Stat(tc.configPath)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Fatalf("config mode = %v, want no group/other access", perm)
	}

	tc.runJSON(t, "org", "use", "client")
	st, err := config.LoadState(filepath.Join(filepath.Dir(tc.configPath), "state.toml"))
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.ActiveOrg != "client" {
		t.Fatalf("ActiveOrg = %q, want client", st.ActiveOrg)
	}

	items := decodeData[[]orgListItem](t, tc.runJSON(t, "org", "list"))
	if len(items) != 2 {
		t.Fatalf("items = %+v, want 2", items)
	}
	for _, it := range items {
		switch it.Name {
		case "client":
			if !it.Active || it.Default {
				t.Fatalf("client = %+v, want active non-default", it)
			}
		case "studio":
			if it.Active || !it.Default {
				t.Fatalf("studio = %+v, want default inactive", it)
			}
		default:
			t.Fatalf("unexpected org %q", it.Name)
		}
	}
}

func TestOrgUseUnknown(t *testing.T) {
	tc := newTestCLI(t)

	requireErrorCode(t, tc.runJSON(t, "org", "use", "missing"), ErrOrgNotFound)
}

func TestOrgAddRequiresID(t *testing.T) {
	tc := newTestCLI(t)

	requireErrorCode(t, tc.runJSON(t, "org", "add", "studio", "--token", "x"), ErrMissingArgument)
}

func TestOrgRemoveNeedsConfirm(t *testing.T) {
	tc := newTestCLI(t)
	tc.runJSON(t, "org", "add", "studio", "--id", "99")

	requireErrorCode(t, tc.runJSON(t, "org", "remove", "studio"), ErrInvalidInput)
	tc.runJSON(t, "org", "remove", "studio", "--confirm")

	loaded, err := config.LoadFrom(tc.configPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if len(loaded.Orgs) != 0 || loaded.DefaultOrg != "" {
		t.Fatalf("config after remove = %+v", loaded)
	}
}

func TestSelectedOrgScopesCache(t *testing.T) {
	tc := newTestCLI(t)
	t.Setenv("PRODUCTIVE_ORG_ID", "")
	tc.runJSON(t, "org", "add", "studio", "--id", "99")

	env := tc.runJSON(t, "resolve", "5")
	if env.Meta == nil || env.Meta.Tenant != "99" {
		t.Fatalf("Meta = %+v, want tenant 99", env.Meta)
	}
	if _, err := os.Stat(filepath.Join(tc.cacheDir, "99")); err != nil {
		t.Fatalf("expected tenant cache dir: %v", err)
	}
}

func TestNoOrganizationConfigured(t *testing.T) {
	tc := newTestCLI(t)
	t.Setenv("PRODUCTIVE_ORG_ID", "")

	requireErrorCode(t, tc.runJSON(t, "resolve", "5"), ErrOrgNotSelected)
}
