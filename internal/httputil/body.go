// Package httputil provides helpers for reading HTTP payloads with a size cap.
package httputil

import (
	"errors"
	"io"
)

const (
	// DefaultMaxResponseBodyBytes caps upstream response bodies to 10MB.
	DefaultMaxResponseBodyBytes int64 = 10 * 1024 * 1024
	// DefaultMaxRequestBodyBytes caps inbound request bodies to 10MB.
	DefaultMaxRequestBodyBytes int64 = 10 * 1024 * 1024
)

// ErrBodyTooLarge is returned when a body exceeds its limit.
var ErrBodyTooLarge = errors.New("body too large")

// ReadLimitedBody reads up to maxBytes from reader and returns ErrBodyTooLarge
// when exceeded, along with the first maxBytes bytes. A non-positive maxBytes
// reads everything.
func ReadLimitedBody(reader io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(reader)
	}

	limited := io.LimitReader(reader, maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return body, err
	}
	if int64(len(body)) > maxBytes {
		return body[:int(maxBytes)], ErrBodyTooLarge
	}
	return body, nil
}
