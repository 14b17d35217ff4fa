package bearer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/PaulFidika/tenantauth/tenant"
	"github.com/PaulFidika/tenantauth/tenantcfg"
)

type fakeEngine struct {
	mu       sync.Mutex
	schemes  map[string]bool
	adds     atomic.Int64
	calls    atomic.Int64
	validate func(scheme string, opts *Options, token string) (*Identity, error)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{schemes: map[string]bool{}}
}

func (e *fakeEngine) HasScheme(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.schemes[name]
}

func (e *fakeEngine) TryAddScheme(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.schemes[name] {
		return false
	}
	e.schemes[name] = true
	e.adds.Add(1)
	return true
}

func (e *fakeEngine) Authenticate(_ context.Context, scheme string, opts *Options, token string) (*Identity, error) {
	e.calls.Add(1)
	if !e.HasScheme(scheme) {
		panic("scheme not registered: " + scheme)
	}
	if e.validate != nil {
		return e.validate(scheme, opts, token)
	}
	return &Identity{Subject: "user-1", Issuer: opts.ClaimsIssuer}, nil
}

// testDefaults disables the https requirement so plain test URLs pass.
func testDefaults() Options {
	d := DefaultOptions()
	d.RequireHTTPSMetadata = false
	return d
}

func conventionResolver() tenantcfg.Resolver {
	return tenantcfg.NewConventionResolver("https://auth.example.com", "api", "")
}

type countingResolver struct {
	calls atomic.Int64
	fn    func(ctx context.Context, id tenant.ID) (tenantcfg.Config, error)
}

func (r *countingResolver) Resolve(ctx context.Context, id tenant.ID) (tenantcfg.Config, error) {
	r.calls.Add(1)
	return r.fn(ctx, id)
}
