package oidckit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/tenantauth/bearer"
)

// Engine validates bearer tokens inside named schemes. Every scheme owns its
// discovery document and its own JWKS cache, so keys fetched for one tenant
// are never consulted for another.
type Engine struct {
	ctx     context.Context
	cancel  context.CancelFunc
	schemes sync.Map // name -> *scheme
	log     logrus.FieldLogger
}

// NewEngine creates an engine. Background JWKS refreshes stop when ctx ends or Close is called.
func NewEngine(ctx context.Context, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Engine{ctx: ctx, cancel: cancel, log: log}
}

// Close stops background refreshes.
func (e *Engine) Close() { e.cancel() }

// HasScheme reports whether name is registered.
func (e *Engine) HasScheme(name string) bool {
	_, ok := e.schemes.Load(name)
	return ok
}

// TryAddScheme registers name and returns false if it already existed.
func (e *Engine) TryAddScheme(name string) bool {
	_, loaded := e.schemes.LoadOrStore(name, &scheme{name: name})
	return !loaded
}

// Authenticate validates token with the state of the named scheme.
func (e *Engine) Authenticate(ctx context.Context, name string, opts *bearer.Options, token string) (*bearer.Identity, error) {
	v, ok := e.schemes.Load(name)
	if !ok {
		return nil, fmt.Errorf("oidc: scheme %q is not registered", name)
	}
	s := v.(*scheme)
	state, err := s.state(ctx, e.ctx, opts, e.log)
	if err != nil {
		return nil, err
	}
	if opts.UseSecurityTokenValidators {
		return validateLegacy(ctx, state, opts, token)
	}
	return validate(ctx, state, opts, token)
}

type scheme struct {
	name string

	mu           sync.Mutex
	doc          *DiscoveryDocument
	discoveredAt time.Time
	keys         *jwk.Cache

	refreshMu     sync.Mutex
	lastRefreshed time.Time
}

// schemeState is an immutable snapshot handed to the validators.
type schemeState struct {
	name    string
	issuer  string
	jwksURL string
	keys    *jwk.Cache
	owner   *scheme
}

func (st *schemeState) keySet(ctx context.Context) (jwk.Set, error) {
	return st.keys.Get(ctx, st.jwksURL)
}

// refresh forces a JWKS fetch at most once per opts.RefreshInterval. When
// the window has not elapsed it returns ok=false and the cached set stands.
func (st *schemeState) refresh(ctx context.Context, opts *bearer.Options) (set jwk.Set, ok bool, err error) {
	s := st.owner
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	now := opts.Clock()
	if opts.RefreshInterval > 0 && !s.lastRefreshed.IsZero() && now.Sub(s.lastRefreshed) < opts.RefreshInterval {
		return nil, false, nil
	}
	s.lastRefreshed = now
	set, err = st.keys.Refresh(ctx, st.jwksURL)
	if err != nil {
		return nil, false, err
	}
	return set, true, nil
}

// state initializes the scheme on first use and re-runs discovery once the
// automatic refresh interval has elapsed. Failed initialization is retried
// on the next request.
func (s *scheme) state(ctx, engineCtx context.Context, opts *bearer.Options, log logrus.FieldLogger) (*schemeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := opts.Clock()
	stale := s.doc != nil && opts.AutomaticRefreshInterval > 0 && now.Sub(s.discoveredAt) > opts.AutomaticRefreshInterval
	if s.doc == nil || stale {
		doc, err := Discover(ctx, opts.Backchannel, opts.MetadataAddress, opts.RequireHTTPSMetadata)
		switch {
		case err != nil && s.doc == nil:
			return nil, fmt.Errorf("scheme %q: %w", s.name, err)
		case err != nil:
			log.WithError(err).WithField("scheme", s.name).Warn("metadata refresh failed, keeping previous document")
			s.discoveredAt = now
		default:
			if err := s.registerKeys(engineCtx, doc, opts); err != nil {
				if s.doc == nil {
					return nil, fmt.Errorf("scheme %q: %w", s.name, err)
				}
				log.WithError(err).WithField("scheme", s.name).Warn("jwks registration failed, keeping previous keys")
			} else {
				s.doc = doc
			}
			s.discoveredAt = now
		}
	}
	return &schemeState{name: s.name, issuer: s.doc.Issuer, jwksURL: s.doc.JWKSURI, keys: s.keys, owner: s}, nil
}

func (s *scheme) registerKeys(engineCtx context.Context, doc *DiscoveryDocument, opts *bearer.Options) error {
	if s.keys == nil {
		s.keys = jwk.NewCache(engineCtx)
	}
	if s.keys.IsRegistered(doc.JWKSURI) {
		return nil
	}
	var regOpts []jwk.RegisterOption
	if opts.Backchannel != nil {
		regOpts = append(regOpts, jwk.WithHTTPClient(opts.Backchannel))
	}
	if opts.RefreshInterval > 0 {
		regOpts = append(regOpts, jwk.WithMinRefreshInterval(opts.RefreshInterval))
	}
	if err := s.keys.Register(doc.JWKSURI, regOpts...); err != nil {
		return fmt.Errorf("register jwks: %w", err)
	}
	return nil
}

var errKeyNotFound = errors.New("oidc: signing key not found")
