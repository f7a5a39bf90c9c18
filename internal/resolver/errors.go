package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
)

// ErrorCode classifies a resolution failure.
type ErrorCode string

const (
	// NoKindDetected: the query has no recognisable shape and no kind was given.
	NoKindDetected ErrorCode = "no_kind_detected"
	// NoMatch: nothing matched; Suggestions may hold near misses.
	NoMatch ErrorCode = "no_match"
	// Ambiguous: several candidates where a single value is required.
	Ambiguous ErrorCode = "ambiguous"
	// CollaboratorUnavailable: the remote API failed. The entity may exist.
	CollaboratorUnavailable ErrorCode = "collaborator_unavailable"
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query is empty")

// ResolveError is returned when a query cannot be turned into candidates.
type ResolveError struct {
	Code         ErrorCode
	Query        string
	ExpectedKind cache.Kind
	Candidates   []Candidate
	Suggestions  []Candidate
	Err          error
}

func (e *ResolveError) Error() string {
	subject := "'" + e.Query + "'"
	if e.ExpectedKind != "" {
		subject = e.ExpectedKind.String() + " " + subject
	}
	switch e.Code {
	case NoKindDetected:
		return fmt.Sprintf("cannot tell what kind of entity '%s' is; specify the kind explicitly", e.Query)
	case NoMatch:
		if len(e.Suggestions) > 0 {
			labels := make([]string, len(e.Suggestions))
			for i, s := range e.Suggestions {
				labels[i] = s.Label
			}
			return fmt.Sprintf("%s not found (did you mean: %s?)", subject, strings.Join(labels, ", "))
		}
		return fmt.Sprintf("%s not found", subject)
	case Ambiguous:
		return fmt.Sprintf("%s is ambiguous, %d matches", subject, len(e.Candidates))
	case CollaboratorUnavailable:
		return fmt.Sprintf("failed to look up %s: %v", subject, e.Err)
	}
	return fmt.Sprintf("failed to resolve %s", subject)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// CodeOf returns the ResolveError code carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return "", false
}

// IsCode reports whether err is a ResolveError with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
