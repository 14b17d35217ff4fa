package tenantcfg

import (
	"context"
	"errors"
	"testing"

	"github.com/PaulFidika/tenantauth/tenant"
)

type mapStore map[tenant.ID]Config

func (m mapStore) Get(_ context.Context, id tenant.ID) (Config, error) {
	cfg, ok := m[id]
	if !ok {
		return Config{}, ErrTenantNotFound
	}
	return cfg, nil
}

func TestConventionResolver(t *testing.T) {
	r := NewConventionResolver("https://auth.example.com/", "api", "")
	cfg, err := r.Resolve(context.Background(), "acme")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Authority != "https://auth.example.com/acme" {
		t.Fatalf("authority = %q", cfg.Authority)
	}
	if cfg.MetadataAddress != "https://auth.example.com/acme/.well-known/openid-configuration" {
		t.Fatalf("metadata = %q", cfg.MetadataAddress)
	}
	if cfg.Audience != "api" {
		t.Fatalf("audience = %q", cfg.Audience)
	}
	if cfg.ClaimsIssuer != cfg.Authority {
		t.Fatalf("claims issuer should default to authority, got %q", cfg.ClaimsIssuer)
	}
}

func TestConventionResolver_Templated(t *testing.T) {
	r := NewConventionResolver("https://auth.example.com", "api://{tenant}", "https://claims.example.com/{tenant}/")
	cfg, err := r.Resolve(context.Background(), "tenant2")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Audience != "api://tenant2" {
		t.Fatalf("audience = %q", cfg.Audience)
	}
	if cfg.ClaimsIssuer != "https://claims.example.com/tenant2/" {
		t.Fatalf("claims issuer = %q", cfg.ClaimsIssuer)
	}
}

func TestConventionResolver_RequiresBase(t *testing.T) {
	r := NewConventionResolver(" ", "api", "")
	if _, err := r.Resolve(context.Background(), "acme"); err == nil {
		t.Fatal("expected error for empty base authority")
	}
}

func TestLookupResolver(t *testing.T) {
	store := mapStore{
		"tenant1": {
			Authority:       "https://auth.tenant1.com/",
			Audience:        "api",
			MetadataAddress: "https://auth.tenant1.com/tenant1/.well-known/openid-configuration",
			ClaimsIssuer:    "https://claims.tenant1.com/",
		},
		"broken": {Authority: "https://auth.broken.com/"},
	}
	r := NewLookupResolver(store)

	cfg, err := r.Resolve(context.Background(), "tenant1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.ClaimsIssuer != "https://claims.tenant1.com/" {
		t.Fatalf("claims issuer = %q", cfg.ClaimsIssuer)
	}

	if _, err := r.Resolve(context.Background(), "nobody"); !errors.Is(err, tenant.ErrUnknownTenant) {
		t.Fatalf("expected ErrUnknownTenant, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), "broken"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewResolver(t *testing.T) {
	if _, err := NewResolver(ResolverConfig{Strategy: StrategyLookup}); err == nil {
		t.Fatal("lookup without store should fail")
	}
	if _, err := NewResolver(ResolverConfig{Strategy: "magic"}); err == nil {
		t.Fatal("unknown strategy should fail")
	}
	r, err := NewResolver(ResolverConfig{Strategy: StrategyConvention, BaseAuthority: "https://auth.example.com", Audience: "api"})
	if err != nil {
		t.Fatalf("convention: %v", err)
	}
	if _, ok := r.(*ConventionResolver); !ok {
		t.Fatalf("expected *ConventionResolver, got %T", r)
	}
	r, err = NewResolver(ResolverConfig{Strategy: StrategyLookup, Store: mapStore{}})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, ok := r.(*LookupResolver); !ok {
		t.Fatalf("expected *LookupResolver, got %T", r)
	}
}
