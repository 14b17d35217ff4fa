// Package authhttp adapts tenant resolution and bearer authentication to net/http.
package authhttp

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/tenantauth/tenant"
)

// BucketTenantResolve is the limiter bucket counting malformed tenant names per client.
const BucketTenantResolve = "tenant_resolve"

// Limiter is satisfied by memorylimiter.Limiter and redislimiter.Limiter.
type Limiter interface {
	AllowNamed(ctx context.Context, bucket, key string) (bool, error)
}

type tenantConfig struct {
	requireTenant bool
	limiter       Limiter
	log           logrus.FieldLogger
}

// TenantOption configures TenantMiddleware.
type TenantOption func(*tenantConfig)

// RequireTenant rejects requests whose path has no tenant segment.
func RequireTenant(v bool) TenantOption {
	return func(c *tenantConfig) { c.requireTenant = v }
}

// WithLimiter throttles clients that keep sending malformed tenant names.
func WithLimiter(l Limiter) TenantOption {
	return func(c *tenantConfig) { c.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) TenantOption {
	return func(c *tenantConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// TenantMiddleware creates the request's tenant slot and fills it from the
// first path segment. Malformed names are answered with 400 before any
// downstream handler runs.
func TenantMiddleware(next http.Handler, opts ...TenantOption) http.Handler {
	cfg := tenantConfig{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, slot := tenant.NewContext(r.Context())
		id, found, err := tenant.Extract(r.URL.Path)
		switch {
		case err != nil:
			if cfg.limiter != nil {
				ok, lerr := cfg.limiter.AllowNamed(ctx, BucketTenantResolve, clientIP(r))
				if lerr != nil {
					cfg.log.WithError(lerr).Warn("tenant limiter unavailable")
				} else if !ok {
					writeMessage(w, http.StatusTooManyRequests, "too many requests")
					return
				}
			}
			cfg.log.WithField("path", r.URL.Path).Debug("rejected malformed tenant name")
			writeMessage(w, http.StatusBadRequest, "invalid tenant name")
			return
		case !found && cfg.requireTenant:
			writeMessage(w, http.StatusBadRequest, "tenant name not provided")
			return
		case found:
			slot.Set(id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WhoamiHandler answers with the tenant name resolved for the request.
func WhoamiHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := tenant.FromContext(r.Context())
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "tenant name not provided")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"tenant_name": id.String()})
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
