package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/basylab/balug/internal/ctxkeys"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an ID, reusing a well-formed one sent by
// the client or proxy. The ID is echoed in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := ctxkeys.WithRequestID(r.Context(), id)
		ctx = ctxkeys.WithClientIP(ctx, getClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
