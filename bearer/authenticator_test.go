package bearer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/PaulFidika/tenantauth/tenant"
	"github.com/PaulFidika/tenantauth/tenantcfg"
)

func newTestAuthenticator(e *fakeEngine, r tenantcfg.Resolver, opts ...CacheOption) *Authenticator {
	return NewAuthenticator(NewOptionsCache(r, testDefaults(), opts...), e)
}

func TestAuthenticate_MissingTenantNeverReachesEngine(t *testing.T) {
	e := newFakeEngine()
	a := newTestAuthenticator(e, conventionResolver())

	for _, ctx := range []context.Context{
		context.Background(),
		func() context.Context { c, _ := tenant.NewContext(context.Background()); return c }(),
	} {
		res := a.Authenticate(ctx, "token")
		if res.Authenticated() || res.Reason != ReasonTenantMissing {
			t.Fatalf("expected tenant-missing rejection, got %+v", res)
		}
	}
	if e.calls.Load() != 0 || e.adds.Load() != 0 {
		t.Fatal("engine must not be touched without a tenant")
	}
}

func TestAuthenticate_Success(t *testing.T) {
	e := newFakeEngine()
	a := newTestAuthenticator(e, conventionResolver())
	ctx := tenant.WithTenant(context.Background(), "acme")

	res := a.Authenticate(ctx, "token")
	if !res.Authenticated() {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Tenant != "acme" || res.Identity.Tenant != "acme" {
		t.Fatalf("tenant not attached: %+v", res)
	}
	if res.Identity.Issuer != "https://auth.example.com/acme" {
		t.Fatalf("engine saw wrong options, issuer %q", res.Identity.Issuer)
	}
	if !e.HasScheme("acme") {
		t.Fatal("tenant scheme not registered")
	}
}

func TestAuthenticate_UnknownTenantFailsClosed(t *testing.T) {
	e := newFakeEngine()
	store := storeFunc(func(context.Context, tenant.ID) (tenantcfg.Config, error) {
		return tenantcfg.Config{}, tenantcfg.ErrTenantNotFound
	})
	a := newTestAuthenticator(e, tenantcfg.NewLookupResolver(store))

	res := a.Authenticate(tenant.WithTenant(context.Background(), "ghost"), "token")
	if res.Authenticated() || res.Reason != ReasonConfigUnavailable {
		t.Fatalf("expected config-unavailable rejection, got %+v", res)
	}
	if e.calls.Load() != 0 {
		t.Fatal("engine must not run for an unknown tenant")
	}
}

func TestAuthenticate_NoToken(t *testing.T) {
	e := newFakeEngine()
	a := newTestAuthenticator(e, conventionResolver())
	res := a.Authenticate(tenant.WithTenant(context.Background(), "acme"), "")
	if res.Reason != ReasonNoToken || e.calls.Load() != 0 {
		t.Fatalf("expected no-token rejection without engine call, got %+v", res)
	}
}

func TestAuthenticate_TokenErrorPassesThrough(t *testing.T) {
	e := newFakeEngine()
	e.validate = func(string, *Options, string) (*Identity, error) {
		return nil, &TokenError{Reason: "token expired", Err: errors.New("exp not satisfied")}
	}
	a := newTestAuthenticator(e, conventionResolver())

	res := a.Authenticate(tenant.WithTenant(context.Background(), "acme"), "token")
	if res.Reason != "token expired" {
		t.Fatalf("reason = %q", res.Reason)
	}
	if res.Detail != "" {
		t.Fatal("detail must be empty unless IncludeErrorDetails is set")
	}
}

func TestAuthenticate_IncludeErrorDetails(t *testing.T) {
	e := newFakeEngine()
	e.validate = func(string, *Options, string) (*Identity, error) {
		return nil, &TokenError{Reason: "invalid audience", Err: errors.New(`"aud" not satisfied`)}
	}
	a := newTestAuthenticator(e, conventionResolver(), WithPostConfigure(PostConfigureFunc(func(_ tenant.ID, o *Options) error {
		o.IncludeErrorDetails = true
		return nil
	})))
	res := a.Authenticate(tenant.WithTenant(context.Background(), "acme"), "token")
	if !strings.Contains(res.Detail, "aud") {
		t.Fatalf("detail = %q", res.Detail)
	}
}

func TestAuthenticate_InternalFaultsAreGeneric(t *testing.T) {
	e := newFakeEngine()
	e.validate = func(string, *Options, string) (*Identity, error) {
		return nil, errors.New("dial tcp 10.0.0.1:443: connection refused")
	}
	a := newTestAuthenticator(e, conventionResolver())
	res := a.Authenticate(tenant.WithTenant(context.Background(), "acme"), "token")
	if res.Reason != ReasonInternal || res.Detail != "" {
		t.Fatalf("expected generic internal rejection, got %+v", res)
	}

	e.validate = func(string, *Options, string) (*Identity, error) { panic("nil map") }
	res = a.Authenticate(tenant.WithTenant(context.Background(), "acme"), "token")
	if res.Reason != ReasonInternal {
		t.Fatalf("panic should become internal rejection, got %+v", res)
	}
}

func TestAuthenticate_Events(t *testing.T) {
	e := newFakeEngine()
	var failures []string
	events := &Events{
		OnTokenValidated: func(_ context.Context, id *Identity) error {
			if id.Subject == "user-1" {
				return errors.New("blocked subject")
			}
			return nil
		},
		OnAuthenticationFailed: func(_ context.Context, id tenant.ID, reason string, _ error) {
			failures = append(failures, id.String()+":"+reason)
		},
	}
	a := newTestAuthenticator(e, conventionResolver(), WithPostConfigure(PostConfigureFunc(func(_ tenant.ID, o *Options) error {
		o.Events = events
		return nil
	})))
	res := a.Authenticate(tenant.WithTenant(context.Background(), "acme"), "token")
	if res.Reason != ReasonRejected {
		t.Fatalf("expected hook rejection, got %+v", res)
	}
	if len(failures) != 1 || failures[0] != "acme:"+ReasonRejected {
		t.Fatalf("failures = %v", failures)
	}
}

func TestAuthenticate_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e := newFakeEngine()
	a := NewAuthenticator(NewOptionsCache(conventionResolver(), testDefaults(), WithCacheMetrics(m)), e, WithMetrics(m))

	a.Authenticate(tenant.WithTenant(context.Background(), "acme"), "token")
	a.Authenticate(context.Background(), "token")

	if got := testutil.ToFloat64(m.authentications.WithLabelValues("authenticated", "")); got != 1 {
		t.Fatalf("authenticated count = %v", got)
	}
	if got := testutil.ToFloat64(m.authentications.WithLabelValues("rejected", ReasonTenantMissing)); got != 1 {
		t.Fatalf("rejected count = %v", got)
	}
	if got := testutil.ToFloat64(m.builds.WithLabelValues("ok")); got != 1 {
		t.Fatalf("build count = %v", got)
	}
}
