package api

import (
	"errors"
	"net/http"

	llmerrors "github.com/indiglm/gateway/pkg/errors"
)

// ErrorResponse is the body of 4xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServerErrorResponse is the body of 5xx responses. Error is generic and
// Message carries a caller-safe description.
type ServerErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// InternalServerErrorText is the fixed error field of every 5xx body.
const InternalServerErrorText = "Internal server error"

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := h.logger.WithRequestID(r.Context())

	var gwErr *llmerrors.GatewayError
	if !errors.As(err, &gwErr) {
		gwErr = llmerrors.NewUnknownError(err)
	}

	status := gwErr.HTTPStatusCode()
	switch {
	case gwErr.Type == llmerrors.TypeCanceled:
		// The caller is gone; only the status is recorded.
		logger.Debug("client closed request")
		w.WriteHeader(status)

	case status >= http.StatusInternalServerError:
		logger.RedactedError("chat completion failed",
			"type", gwErr.Type, "status", status, "error", err)
		writeJSON(w, status, ServerErrorResponse{
			Error:   InternalServerErrorText,
			Message: publicMessage(gwErr),
		})

	default:
		writeJSON(w, status, ErrorResponse{Error: gwErr.Message})
	}
}

// publicMessage picks the text shown to callers for a server-side failure.
// Provider diagnostics are surfaced; unexpected internal errors are not.
func publicMessage(e *llmerrors.GatewayError) string {
	if e.Type == llmerrors.TypeUnknown || e.Detail == "" {
		return e.Message
	}
	return e.Detail
}
