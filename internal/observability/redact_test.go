package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactor_DefaultPatterns(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"api key", "key sk-1234567890abcdefghijklmnop", "key [REDACTED_API_KEY]"},
		{"project key", "sk-proj-abcdefghijklmnopqrstuvwxyz123456", "[REDACTED_PROJECT_KEY]"},
		{"bearer", "Bearer abc.def-ghi", "Bearer [REDACTED]"},
		{"auth header", "Authorization: token123", "Authorization: [REDACTED]"},
		{"plain text", "namaste duniya", "namaste duniya"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Redact(tt.input))
		})
	}
}

func TestRedactor_AddSecret(t *testing.T) {
	r := NewRedactor()
	r.AddSecret("demo.key+value")
	r.AddSecret("ab")

	assert.Equal(t, "using [REDACTED]", r.Redact("using demo.key+value"))
	assert.Equal(t, "ab", r.Redact("ab"))
}

func TestRedactor_InvalidPatternIgnored(t *testing.T) {
	r := NewRedactor()
	r.AddPattern(`[unclosed`, "x", "bad")

	assert.Equal(t, "safe", r.Redact("safe"))
}

func TestRedactor_RedactHeaders(t *testing.T) {
	r := NewRedactor()
	out := r.RedactHeaders(map[string][]string{
		"Authorization": {"Bearer secret"},
		"Content-Type":  {"application/json"},
	})

	assert.Equal(t, []string{"[REDACTED]"}, out["Authorization"])
	assert.Equal(t, []string{"application/json"}, out["Content-Type"])
}
