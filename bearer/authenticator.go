package bearer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/tenantauth/tenant"
)

// Engine validates tokens inside a named, per-tenant scheme.
type Engine interface {
	SchemeProvider
	// Authenticate verifies token using the state kept for scheme. Token
	// problems are reported as *TokenError; anything else is an internal fault.
	Authenticate(ctx context.Context, scheme string, opts *Options, token string) (*Identity, error)
}

// Authenticator dispatches a request's token to its tenant's scheme.
type Authenticator struct {
	cache    *OptionsCache
	registry *SchemeRegistry
	engine   Engine
	log      logrus.FieldLogger
	metrics  *Metrics
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) AuthenticatorOption {
	return func(a *Authenticator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMetrics records outcomes in m.
func WithMetrics(m *Metrics) AuthenticatorOption {
	return func(a *Authenticator) { a.metrics = m }
}

// NewAuthenticator wires the options cache to engine.
func NewAuthenticator(cache *OptionsCache, engine Engine, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		cache:  cache,
		engine: engine,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.registry = NewSchemeRegistry(engine, a.log)
	return a
}

// Authenticate resolves the tenant carried by ctx and validates token against
// that tenant's identity provider. It never falls back to another tenant.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (res Result) {
	defer func() { a.metrics.observeAuth(res) }()

	id, err := tenant.FromContext(ctx)
	if err != nil {
		return fail("", ReasonTenantMissing)
	}
	log := a.log.WithField("tenant", id)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("tenant authentication panicked")
			res = fail(id, ReasonInternal)
		}
	}()

	opts, err := a.cache.GetOrBuild(ctx, id)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.WithError(err).Debug("tenant options wait abandoned")
		} else {
			log.WithError(err).Error("tenant configuration unavailable")
		}
		return fail(id, ReasonConfigUnavailable)
	}

	if token == "" {
		return a.reject(ctx, opts, fail(id, ReasonNoToken), nil)
	}

	scheme := a.registry.Ensure(id)
	ident, err := a.engine.Authenticate(ctx, scheme, opts, token)
	if err != nil {
		var te *TokenError
		if errors.As(err, &te) {
			log.WithError(err).Debug("token rejected")
			r := fail(id, te.Reason)
			if opts.IncludeErrorDetails {
				r.Detail = err.Error()
			}
			return a.reject(ctx, opts, r, err)
		}
		log.WithError(err).WithField("scheme", scheme).Error("tenant authentication failed")
		return a.reject(ctx, opts, fail(id, ReasonInternal), err)
	}
	if ident == nil {
		return a.reject(ctx, opts, fail(id, ReasonInternal), fmt.Errorf("engine returned no identity"))
	}
	ident.Tenant = id

	if ev := opts.Events; ev != nil && ev.OnTokenValidated != nil {
		if err := ev.OnTokenValidated(ctx, ident); err != nil {
			log.WithError(err).Info("token rejected by validation hook")
			return a.reject(ctx, opts, fail(id, ReasonRejected), err)
		}
	}
	return success(id, ident)
}

func (a *Authenticator) reject(ctx context.Context, opts *Options, r Result, err error) Result {
	if ev := opts.Events; ev != nil && ev.OnAuthenticationFailed != nil {
		ev.OnAuthenticationFailed(ctx, r.Tenant, r.Reason, err)
	}
	return r
}
