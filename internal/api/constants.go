package api

const (
	// DefaultMaxBodySize is the default maximum request body size (10MB).
	DefaultMaxBodySize = 10 * 1024 * 1024

	// APIVersion is reported by the capability descriptor.
	APIVersion = "1.0.0"
)
