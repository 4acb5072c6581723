package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

type ctxKey string

const (
	ctxCorrelationID ctxKey = "correlation_id"
	ctxDeviceID      ctxKey = "device_id"
	ctxUserID        ctxKey = "user_id"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// WriteError writes a JSON error body carrying the request's correlation id.
func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:         msg,
		CorrelationID: GetCorrelationID(r.Context()),
	})
}

func stringValue(ctx context.Context, key ctxKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
