// internal/core/validation.go
package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInput marks validation failures that map to a 400 response.
var ErrInvalidInput = errors.New("invalid input")

// Runs of anything that isn't a lowercase letter or digit collapse to one hyphen.
var slugCollapseRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe id from a problem name.
func Slugify(name string) string {
	slug := slugCollapseRegex.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// UniqueSlug resolves a slug collision by suffixing a timestamp token.
// Ids are synthesized, not user-chosen identity, so collisions are resolved
// deterministically rather than erroring.
func UniqueSlug(slug string, taken bool) string {
	if slug == "" {
		slug = "solved-problem"
	}
	if !taken {
		return slug
	}
	return slug + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Accepted layouts for date-range filters: full RFC 3339 or a bare date.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseFilterDate parses an optional date-range filter value. An empty value
// yields nil. An unparseable value is a validation failure, never a silently
// dropped filter.
func ParseFilterDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid %s date '%s', use ISO 8601 (e.g. '2025-01-15' or '2025-01-15T08:30:00Z')", ErrInvalidInput, field, value)
}
