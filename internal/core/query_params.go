// internal/core/query_params.go
package core

import (
	"net/url"
	"strings"

	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

// ParseProblemFilter extracts listing filters from query parameters.
// List-valued params accept repeated params and comma-separated values.
// Unparseable dates are a validation error (ErrInvalidInput), never a
// silently dropped filter.
func ParseProblemFilter(queryParams url.Values) (storage.ProblemFilter, error) {
	filter := storage.ProblemFilter{
		Search:     queryParams.Get("search"),
		AppType:    queryParams.Get("appType"),
		Tags:       splitMulti(queryParams["tags"]),
		ServerDeps: splitMulti(queryParams["serverDependencies"]),
		ClientDeps: splitMulti(queryParams["clientDependencies"]),
	}

	after, err := ParseFilterDate("updatedAfter", queryParams.Get("updatedAfter"))
	if err != nil {
		return storage.ProblemFilter{}, err
	}
	before, err := ParseFilterDate("updatedBefore", queryParams.Get("updatedBefore"))
	if err != nil {
		return storage.ProblemFilter{}, err
	}
	filter.UpdatedAfter = after
	filter.UpdatedBefore = before

	return filter, nil
}

// splitMulti flattens repeated params and comma-separated values into one
// trimmed list; empty entries are dropped.
func splitMulti(values []string) []string {
	out := []string{}
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
