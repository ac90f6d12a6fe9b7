package common

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 50
	MaxLimit     = 5000
)

// Listing is the pagination contract shared by all list queries.
type Listing struct {
	Limit         int    `json:"limit"`
	Offset        int    `json:"offset"`
	SortField     string `json:"sort_field,omitempty"`
	SortDirection string `json:"sort_direction"`
}

// ListingResponse wraps one page of results and the total number of matches.
type ListingResponse[T any] struct {
	Status  string `json:"status"`
	Total   int    `json:"total"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	Results []T    `json:"results"`
}

func NewListingResponse[T any](listing Listing, total int, results []T) ListingResponse[T] {
	if results == nil {
		results = []T{}
	}
	return ListingResponse[T]{
		Status:  "ok",
		Total:   total,
		Limit:   listing.Limit,
		Offset:  listing.Offset,
		Results: results,
	}
}

// ParseListing builds a Listing from raw query parameters. sort has the form
// "field" or "field:direction"; fields outside allowedSort are rejected.
func ParseListing(limit, offset, sort string, allowedSort []string) (Listing, error) {
	l := Listing{Limit: DefaultLimit, SortDirection: "desc"}

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return l, fmt.Errorf("invalid limit: %q", limit)
		}
		l.Limit = min(n, MaxLimit)
	}
	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return l, fmt.Errorf("invalid offset: %q", offset)
		}
		l.Offset = n
	}

	sort = strings.TrimSpace(sort)
	if sort == "" {
		return l, nil
	}
	field, direction, found := strings.Cut(sort, ":")
	if found {
		direction = strings.ToLower(strings.TrimSpace(direction))
		if direction != "asc" && direction != "desc" {
			return l, fmt.Errorf("invalid sort direction: %q", direction)
		}
		l.SortDirection = direction
	}
	field = strings.TrimSpace(field)
	if !slices.Contains(allowedSort, field) {
		return l, fmt.Errorf("invalid sort field: %q", field)
	}
	l.SortField = field
	return l, nil
}
