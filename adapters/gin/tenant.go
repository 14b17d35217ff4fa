// Package authgin adapts tenant resolution and bearer authentication to gin.
package authgin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/tenantauth/tenant"
)

// BucketTenantResolve is the limiter bucket counting malformed tenant names per client.
const BucketTenantResolve = "tenant_resolve"

// RateLimiter is satisfied by memorylimiter.Limiter and redislimiter.Limiter.
type RateLimiter interface {
	AllowNamed(ctx context.Context, bucket, key string) (bool, error)
}

type tenantConfig struct {
	requireTenant bool
	limiter       RateLimiter
	log           logrus.FieldLogger
}

// TenantOption configures TenantMiddleware.
type TenantOption func(*tenantConfig)

// RequireTenant rejects requests whose path has no tenant segment.
func RequireTenant(v bool) TenantOption {
	return func(c *tenantConfig) { c.requireTenant = v }
}

// WithRateLimiter throttles clients that keep sending malformed tenant names.
func WithRateLimiter(rl RateLimiter) TenantOption {
	return func(c *tenantConfig) { c.limiter = rl }
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
// first path segment. Malformed names abort with 400 and nothing
// downstream runs.
func TenantMiddleware(opts ...TenantOption) gin.HandlerFunc {
	cfg := tenantConfig{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(c *gin.Context) {
		ctx, slot := tenant.NewContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		id, found, err := tenant.Extract(c.Request.URL.Path)
		if err != nil {
			if cfg.limiter != nil {
				ok, lerr := cfg.limiter.AllowNamed(ctx, BucketTenantResolve, c.ClientIP())
				if lerr != nil {
					cfg.log.WithError(lerr).Warn("tenant limiter unavailable")
				} else if !ok {
					c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "too many requests"})
					return
				}
			}
			cfg.log.WithField("path", c.Request.URL.Path).Debug("rejected malformed tenant name")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid tenant name"})
			return
		}
		if !found {
			if cfg.requireTenant {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "tenant name not provided"})
				return
			}
			c.Next()
			return
		}
		slot.Set(id)
		c.Set("auth.tenant", id)
		c.Next()
	}
}

// TenantFromGin returns the tenant resolved for the request.
func TenantFromGin(c *gin.Context) (tenant.ID, bool) {
	if v, ok := c.Get("auth.tenant"); ok {
		if id, ok := v.(tenant.ID); ok {
			return id, true
		}
	}
	id, err := tenant.FromContext(c.Request.Context())
	return id, err == nil
}
