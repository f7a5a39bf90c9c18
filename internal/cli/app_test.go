package cli

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
	"github.com/studiometa/productive-tools-sub004/internal/resolver"
)

func TestAppIsOwnedByEachExecute(t *testing.T) {
	tc := newTestCLI(t)

	env := tc.runJSON(t, "resolve", "123")
	if env.Meta == nil || env.Meta.Tenant != "42" {
		t.Fatalf("first run Meta = %+v, want tenant 42", env.Meta)
	}

	t.Setenv("PRODUCTIVE_ORG_ID", "43")
	env = tc.runJSON(t, "resolve", "123")
	if env.Meta == nil || env.Meta.Tenant != "43" {
		t.Fatalf("second run Meta = %+v, want tenant 43", env.Meta)
	}
}

func TestGetAppOutsideExecute(t *testing.T) {
	if _, err := getApp(&cobra.Command{}); err == nil {
		t.Fatal("expected an error for a command without a session")
	}
}

func TestSessionReusesAndClosesApp(t *testing.T) {
	store := cache.Unavailable("42", nil)
	a := &app{
		registry: cache.NewRegistry(t.TempDir(), zap.NewNop()),
		store:    store,
		resolver: resolver.New(store, nil, zap.NewNop(), resolver.Config{}),
	}
	s := &session{app: a}
	cmd := &cobra.Command{}
	cmd.SetContext(withSession(context.Background(), s))

	got, err := getApp(cmd)
	if err != nil {
		t.Fatalf("getApp: %v", err)
	}
	if got != a {
		t.Fatal("expected the session's app to be reused")
	}

	s.close()
	if s.app != nil {
		t.Fatal("expected close to release the app")
	}
	s.close()
}
