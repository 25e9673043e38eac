package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
)

// Gateway headers. Authentication happens upstream; the gateway forwards
// who the caller is and which tenant they act in.
const (
	HeaderPrincipalID   = "X-Principal-ID"
	HeaderPrincipalRole = "X-Principal-Role"
	HeaderTenantID      = "X-Tenant-ID"
)

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p generic.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal resolved by Authenticate.
func PrincipalFrom(ctx context.Context) (generic.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(generic.Principal)
	return p, ok
}

// Authenticate resolves the principal from the gateway headers. A request
// without a tenant header acts in defaultTenant.
func Authenticate(defaultTenant generic.TenantID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderPrincipalID))
			if id == "" {
				writeError(w, http.StatusUnauthorized, "Missing "+HeaderPrincipalID+" header", nil)
				return
			}
			caps, err := generic.ParseCapabilities(r.Header.Get(HeaderPrincipalRole))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid "+HeaderPrincipalRole+" header", err)
				return
			}
			p := generic.Principal{
				ID:           id,
				Tenant:       generic.TenantScopeFrom(r.Header.Get(HeaderTenantID)).Resolve(defaultTenant),
				Capabilities: caps,
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequestLogger logs one line per request. 5xx at error, 4xx at warn.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("ip", r.RemoteAddr),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			switch {
			case status >= 500:
				logger.Error("server error", fields...)
			case status >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request", fields...)
			}
		})
	}
}
