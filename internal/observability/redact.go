package observability

import (
	"regexp"
	"strings"
	"sync"
)

// Redactor masks credentials before they reach log output.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
	name        string
}

// NewRedactor creates a new redactor with default patterns.
func NewRedactor() *Redactor {
	r := &Redactor{}
	r.addDefaultPatterns()
	return r
}

func (r *Redactor) addDefaultPatterns() {
	// Longer key prefixes first so the generic sk- rule does not eat them.
	r.AddPattern(`sk-proj-[a-zA-Z0-9\-_]{20,}`, "[REDACTED_PROJECT_KEY]", "project_key")
	r.AddPattern(`sk-[a-zA-Z0-9]{20,}`, "[REDACTED_API_KEY]", "api_key")
	r.AddPattern(`Bearer\s+[a-zA-Z0-9\-_\.]+`, "Bearer [REDACTED]", "bearer_token")
	r.AddPattern(`Authorization:\s*[^\s]+`, "Authorization: [REDACTED]", "auth_header")
}

// AddPattern adds a custom redaction pattern. Invalid patterns are ignored.
func (r *Redactor) AddPattern(pattern, replacement, name string) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, &redactPattern{
		regex:       regex,
		replacement: replacement,
		name:        name,
	})
}

// AddSecret masks an exact secret value, such as the resolved upstream key.
func (r *Redactor) AddSecret(secret string) {
	if len(strings.TrimSpace(secret)) < 4 {
		return
	}
	r.AddPattern(regexp.QuoteMeta(secret), "[REDACTED]", "configured_secret")
}

// Redact applies all redaction patterns to the input string.
func (r *Redactor) Redact(input string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := input
	for _, p := range r.patterns {
		result = p.regex.ReplaceAllString(result, p.replacement)
	}
	return result
}

var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"api-key":       true,
	"cookie":        true,
	"set-cookie":    true,
}

// RedactHeaders redacts sensitive HTTP headers.
func (r *Redactor) RedactHeaders(headers map[string][]string) map[string][]string {
	result := make(map[string][]string, len(headers))
	for k, v := range headers {
		if sensitiveHeaders[strings.ToLower(k)] {
			result[k] = []string{"[REDACTED]"}
			continue
		}
		result[k] = v
	}
	return result
}
