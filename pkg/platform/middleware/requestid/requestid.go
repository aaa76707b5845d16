// Package requestid assigns a correlation id to every request. Incoming
// X-Request-ID headers are honored so ids propagate across services.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"storegate/pkg/requestcontext"
)

const Header = "X-Request-ID"

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
