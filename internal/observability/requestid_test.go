package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRequestID(t *testing.T) {
	id := GenerateRequestID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, GenerateRequestID())
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		inbound  string
		preserve bool
	}{
		{"generates when missing", "", false},
		{"preserves valid", "client-req_1.2", true},
		{"replaces invalid characters", "bad id<script>", false},
		{"replaces oversize", strings.Repeat("a", maxRequestIDLen+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header.Set(RequestIDHeader, tt.inbound)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
			if tt.preserve {
				assert.Equal(t, tt.inbound, seen)
			} else {
				assert.NotEqual(t, tt.inbound, seen)
			}
		})
	}
}

func TestGetOrCreateRequestID(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "existing")
	_, id := GetOrCreateRequestID(ctx)
	assert.Equal(t, "existing", id)

	ctx, id = GetOrCreateRequestID(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, RequestIDFromContext(ctx))
}
