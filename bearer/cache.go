package bearer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/PaulFidika/tenantauth/tenant"
	"github.com/PaulFidika/tenantauth/tenantcfg"
)

// DefaultBuildTimeout bounds one execution of the build pipeline.
const DefaultBuildTimeout = 30 * time.Second

// OptionsCache memoizes built Options per tenant for the life of the process.
// At most one build runs per tenant at a time; builds for different tenants
// proceed independently. Failed builds are not remembered.
type OptionsCache struct {
	resolver tenantcfg.Resolver
	defaults Options
	hooks    []PostConfigurer
	timeout  time.Duration
	log      logrus.FieldLogger
	metrics  *Metrics

	entries sync.Map // tenant.ID -> *Options
	group   singleflight.Group
	builds  atomic.Int64
}

// CacheOption configures an OptionsCache.
type CacheOption func(*OptionsCache)

// WithPostConfigure appends hooks that run after the built-in ones.
func WithPostConfigure(hooks ...PostConfigurer) CacheOption {
	return func(c *OptionsCache) { c.hooks = append(c.hooks, hooks...) }
}

// WithBuildTimeout overrides DefaultBuildTimeout.
func WithBuildTimeout(d time.Duration) CacheOption {
	return func(c *OptionsCache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCacheLogger sets the logger used for build diagnostics.
func WithCacheLogger(l logrus.FieldLogger) CacheOption {
	return func(c *OptionsCache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCacheMetrics records build outcomes in m.
func WithCacheMetrics(m *Metrics) CacheOption {
	return func(c *OptionsCache) { c.metrics = m }
}

// NewOptionsCache creates a cache that resolves tenants with resolver and
// overlays them onto defaults.
func NewOptionsCache(resolver tenantcfg.Resolver, defaults Options, opts ...CacheOption) *OptionsCache {
	c := &OptionsCache{
		resolver: resolver,
		defaults: defaults,
		hooks:    DefaultPostConfigurers(),
		timeout:  DefaultBuildTimeout,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrBuild returns the tenant's options, building them on first use.
// Concurrent callers for the same tenant share one build. A caller whose ctx
// ends stops waiting, but the build keeps running for the others.
func (c *OptionsCache) GetOrBuild(ctx context.Context, id tenant.ID) (*Options, error) {
	if v, ok := c.entries.Load(id); ok {
		return v.(*Options), nil
	}
	ch := c.group.DoChan(id.String(), func() (any, error) {
		// Another flight may have stored the entry between our Load and DoChan.
		if v, ok := c.entries.Load(id); ok {
			return v, nil
		}
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		o, err := c.build(buildCtx, id)
		c.metrics.observeBuild(err)
		if err != nil {
			c.log.WithError(err).WithField("tenant", id).Error("tenant options build failed")
			return nil, err
		}
		c.entries.Store(id, o)
		c.log.WithField("tenant", id).Debug("tenant options built")
		return o, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Options), nil
	}
}

// build runs resolve, merge and post-configure. Panics in hooks become errors.
func (c *OptionsCache) build(ctx context.Context, id tenant.ID) (o *Options, err error) {
	c.builds.Add(1)
	defer func() {
		if r := recover(); r != nil {
			o = nil
			err = fmt.Errorf("%w: tenant %q: panic: %v", ErrBuildFailed, id, r)
		}
	}()
	if c.resolver == nil {
		return nil, fmt.Errorf("%w: no resolver configured", ErrBuildFailed)
	}
	cfg, err := c.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	o = c.defaults.forTenant(id, cfg)
	for i, h := range c.hooks {
		if err := h.PostConfigure(id, o); err != nil {
			return nil, fmt.Errorf("%w: post-configure hook %d: %w", ErrBuildFailed, i, err)
		}
	}
	return o, nil
}

// Len returns the number of cached tenants.
func (c *OptionsCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Builds returns how many times the build pipeline has run.
func (c *OptionsCache) Builds() int64 { return c.builds.Load() }

// IsUnknownTenant reports whether err came from a tenant the resolver does not know.
func IsUnknownTenant(err error) bool { return errors.Is(err, tenant.ErrUnknownTenant) }
