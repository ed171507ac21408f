package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

// Params are the 1-based page and page size of a list request.
type Params struct {
	Page  int
	Limit int
}

// ParseQueryParams reads page and limit from the query string. Missing
// values take the config defaults; malformed or out-of-range values are an
// error.
func ParseQueryParams(r *http.Request, config Config) (Params, error) {
	params := Params{
		Page:  config.DefaultPage,
		Limit: config.DefaultLimit,
	}

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return params, fmt.Errorf("invalid query parameter: page must be a positive integer")
		}
		params.Page = page
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > config.MaxLimit {
			return params, fmt.Errorf("invalid query parameter: limit must be between 1 and %d", config.MaxLimit)
		}
		params.Limit = limit
	}

	return params, nil
}

// Offset is the number of rows to skip: (page - 1) * limit.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}
