package resolver

import (
	"regexp"
	"strings"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
)

// Pattern names the shape a query was recognised by.
type Pattern string

const (
	PatternEmail         Pattern = "email"
	PatternProjectNumber Pattern = "project_number"
)

// Confidence grades a detection.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// Detection is the kind a query most likely refers to.
type Detection struct {
	Kind       cache.Kind `json:"kind"`
	Pattern    Pattern    `json:"pattern"`
	Confidence Confidence `json:"confidence"`
}

var (
	emailPattern         = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	projectNumberPattern = regexp.MustCompile(`^[A-Za-z]+-\d+$`)
)

// Detect classifies query by its shape. Bare integers are not classified:
// they are ids already and bypass resolution (see IsNumericID).
func Detect(query string) (Detection, bool) {
	q := strings.TrimSpace(query)
	switch {
	case emailPattern.MatchString(q):
		return Detection{Kind: cache.KindPerson, Pattern: PatternEmail, Confidence: ConfidenceHigh}, true
	case projectNumberPattern.MatchString(q):
		return Detection{Kind: cache.KindProject, Pattern: PatternProjectNumber, Confidence: ConfidenceHigh}, true
	}
	return Detection{}, false
}

// IsNumericID reports whether query is a positive integer, i.e. an id the
// API accepts as-is.
func IsNumericID(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}
	nonZero := false
	for _, r := range q {
		if r < '0' || r > '9' {
			return false
		}
		if r != '0' {
			nonZero = true
		}
	}
	return nonZero
}
