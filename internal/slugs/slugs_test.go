package slugs

import (
	"reflect"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Meta", "meta"},
		{"My Awesome Project", "my-awesome-project"},
		{"UPPER CASE", "upper-case"},
		{"Special: Characters!", "special-characters"},
		{"  Website Redesign  ", "website-redesign"},
		{"Café Rénovation", "cafe-renovation"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slug(tt.in); got != tt.want {
				t.Fatalf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	got := Join("Website Redesign", "", "PRJ 12")
	if got != "website-redesign prj-12" {
		t.Fatalf("Join() = %q", got)
	}
}

func TestTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Acme Corp - Website Redesign", []string{"acme", "corp", "website", "redesign"}},
		{"redesign Redesign", []string{"redesign"}},
		{"a b", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Tokens(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Tokens(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
