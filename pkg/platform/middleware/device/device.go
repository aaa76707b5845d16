// Package device extracts a compact device summary from the User-Agent header
// and puts it on the request context for audit enrichment.
package device

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"storegate/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if raw := r.Header.Get("User-Agent"); raw != "" {
			ctx = requestcontext.WithDevice(ctx, summarize(raw))
		}
		ctx = requestcontext.WithClientIP(ctx, clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func summarize(raw string) string {
	ua := useragent.New(raw)
	name, version := ua.Browser()
	parts := make([]string, 0, 3)
	if ua.OS() != "" {
		parts = append(parts, ua.OS())
	}
	if name != "" {
		if version != "" {
			parts = append(parts, name+"/"+version)
		} else {
			parts = append(parts, name)
		}
	}
	if ua.Mobile() {
		parts = append(parts, "mobile")
	}
	if len(parts) == 0 {
		return raw
	}
	return strings.Join(parts, " ")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
