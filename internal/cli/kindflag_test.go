package cli

import (
	"errors"
	"testing"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
)

var errTestAPI = errors.New("connection refused")

func TestKindsValueSet(t *testing.T) {
	var kinds []cache.Kind
	v := newKindsValue(&kinds)

	if err := v.Set("projects, people"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := v.Set("client"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := v.String(); got != "project,person,company" {
		t.Fatalf("String() = %q, want %q", got, "project,person,company")
	}
	if err := v.Set("invoice"); !errors.Is(err, cache.ErrUnknownKind) {
		t.Fatalf("Set(invoice) = %v, want ErrUnknownKind", err)
	}
}

func TestParseKinds(t *testing.T) {
	all, err := parseKinds(nil)
	if err != nil || len(all) != len(cache.Kinds) {
		t.Fatalf("parseKinds(nil) = %v, %v; want every kind", all, err)
	}

	got, err := parseKinds([]string{"tasks", "service"})
	if err != nil {
		t.Fatalf("parseKinds: %v", err)
	}
	if len(got) != 2 || got[0] != cache.KindTask || got[1] != cache.KindService {
		t.Fatalf("parseKinds = %v", got)
	}
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"filter[status]=1", "sort=-name", "q=a=b"})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	if params["filter[status]"] != "1" || params["sort"] != "-name" || params["q"] != "a=b" {
		t.Fatalf("params = %v", params)
	}

	if _, err := parseParams([]string{"novalue"}); err == nil {
		t.Fatal("expected error for missing '='")
	}
	if _, err := parseParams([]string{"=1"}); err == nil {
		t.Fatal("expected error for empty key")
	}
}
