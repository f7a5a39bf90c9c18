package cache

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a category of resolvable Productive resource.
type Kind string

const (
	KindProject Kind = "project"
	KindPerson  Kind = "person"
	KindService Kind = "service"
	KindCompany Kind = "company"
	KindTask    Kind = "task"
)

// ErrUnknownKind is returned when a kind name is not recognised.
var ErrUnknownKind = errors.New("unknown entity kind")

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{KindProject, KindPerson, KindService, KindCompany, KindTask}

var kindAliases = map[string]Kind{
	"project":   KindProject,
	"projects":  KindProject,
	"person":    KindPerson,
	"people":    KindPerson,
	"user":      KindPerson,
	"service":   KindService,
	"services":  KindService,
	"company":   KindCompany,
	"companies": KindCompany,
	"client":    KindCompany,
	"task":      KindTask,
	"tasks":     KindTask,
}

// ParseKind parses a kind name, accepting plural and API-style aliases.
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	switch k {
	case KindProject, KindPerson, KindService, KindCompany, KindTask:
		return true
	}
	return false
}

// Endpoint returns the API collection name for the kind (e.g. "people").
func (k Kind) Endpoint() string {
	switch k {
	case KindPerson:
		return "people"
	case KindCompany:
		return "companies"
	default:
		return string(k) + "s"
	}
}

// table returns the sqlite table mirroring this kind.
func (k Kind) table() string {
	return "ref_" + k.Endpoint()
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}
