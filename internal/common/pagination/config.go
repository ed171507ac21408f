// Package pagination parses page/limit query parameters and shapes paged
// list responses for the operator endpoints.
package pagination

// Config holds the page defaults and the largest page a client may request.
type Config struct {
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig returns page 1, 20 items per page, at most 100.
func DefaultConfig() Config {
	return Config{
		DefaultPage:  1,
		DefaultLimit: 20,
		MaxLimit:     100,
	}
}
