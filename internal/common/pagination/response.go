package pagination

// Metadata describes the page returned in a list response.
type Metadata struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// Response wraps one page of items.
type Response[T any] struct {
	Data       []T      `json:"data"`
	Pagination Metadata `json:"pagination"`
}

// NewMetadata builds page metadata for total matching items. An empty
// result still reports one page.
func NewMetadata(params Params, total int64) Metadata {
	return Metadata{
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages(total, params.Limit),
	}
}

// NewResponse pairs a page of items with its metadata. A nil slice is
// rendered as an empty JSON array.
func NewResponse[T any](data []T, metadata Metadata) Response[T] {
	if data == nil {
		data = []T{}
	}
	return Response[T]{Data: data, Pagination: metadata}
}

func totalPages(total int64, limit int) int {
	if total == 0 || limit <= 0 {
		return 1
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
