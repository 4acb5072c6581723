package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const HeaderDeviceID = "X-Device-Id"

// DeviceID scopes every request to one browser. A missing id is issued and
// echoed back; a malformed one is rejected because it ends up in storage
// keys and paths.
func DeviceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderDeviceID))
		if id == "" {
			id = uuid.NewString()
		} else {
			parsed, err := uuid.Parse(id)
			if err != nil {
				WriteError(w, r, http.StatusBadRequest, "invalid "+HeaderDeviceID+" header")
				return
			}
			id = parsed.String()
		}
		w.Header().Set(HeaderDeviceID, id)

		ctx := context.WithValue(r.Context(), ctxDeviceID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetDeviceID(ctx context.Context) string {
	return stringValue(ctx, ctxDeviceID)
}
