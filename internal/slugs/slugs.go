// Package slugs provides the normalisation used for relaxed ("did you mean")
// matching of entity names.
//
// Two forms are used:
//   - Slug: the whole value folded to a lowercase ASCII slug via gosimple/slug,
//     so "Café Rénovation" and "cafe renovation" compare equal.
//   - Tokens: the slug split into words, used to match any word of a query.
package slugs

import (
	"strings"

	goslug "github.com/gosimple/slug"
)

// minTokenLen drops tokens too short to be useful as a suggestion key.
const minTokenLen = 2

// Slug converts s to a lowercase, dash-separated ASCII slug.
// Values that slugify to nothing (e.g. only punctuation) fall back to a
// lowercased copy with spaces replaced by dashes.
func Slug(s string) string {
	slugged := goslug.Make(strings.TrimSpace(s))
	if slugged == "" {
		slugged = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-"))
	}
	return slugged
}

// Join slugs every value and joins them with a single space, producing the
// text that Tokens are matched against.
func Join(values ...string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if sv := Slug(v); sv != "" {
			out = append(out, sv)
		}
	}
	return strings.Join(out, " ")
}

// Tokens returns the distinct words of the slug of s, in order of appearance.
func Tokens(s string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.FieldsFunc(Slug(s), func(r rune) bool { return r == '-' || r == ' ' }) {
		if len(tok) < minTokenLen {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}
