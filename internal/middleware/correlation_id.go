package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	HeaderCorrelationID = "X-Correlation-Id"

	maxCorrelationIDLen = 128
)

// CorrelationID tags the request with the caller's X-Correlation-Id, or a new
// UUID when the header is absent or not fit to be copied into logs and
// CartCheckedOut envelopes. The chosen id is echoed on the response.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid, ok := usableCorrelationID(r.Header.Get(HeaderCorrelationID))
		if !ok {
			cid = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, cid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxCorrelationID, cid)))
	})
}

// usableCorrelationID accepts short printable ASCII tokens without spaces.
func usableCorrelationID(raw string) (string, bool) {
	cid := strings.TrimSpace(raw)
	if cid == "" || len(cid) > maxCorrelationIDLen {
		return "", false
	}
	for i := 0; i < len(cid); i++ {
		if c := cid[i]; c <= ' ' || c > '~' {
			return "", false
		}
	}
	return cid, true
}

func GetCorrelationID(ctx context.Context) string {
	return stringValue(ctx, ctxCorrelationID)
}
