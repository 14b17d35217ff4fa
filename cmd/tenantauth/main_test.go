package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/PaulFidika/tenantauth/config"
	memorylimiter "github.com/PaulFidika/tenantauth/ratelimit/memory"
)

func TestDefaultOptionsFromConfig(t *testing.T) {
	cfg, err := config.Parse(map[string]string{
		"TENANTAUTH_BASE_AUTHORITY":                "https://login.example.com",
		"TENANTAUTH_AUDIENCE":                      "api",
		"TENANTAUTH_USE_SECURITY_TOKEN_VALIDATORS": "true",
		"TENANTAUTH_CLOCK_SKEW":                    "10s",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	log, _ := test.NewNullLogger()
	o := defaultOptions(cfg, log)
	if o.Events == nil || o.Events.OnAuthenticationFailed == nil {
		t.Fatalf("audit events not installed")
	}
	if !o.UseSecurityTokenValidators || o.ClockSkew != 10*time.Second || !o.RequireHTTPSMetadata {
		t.Fatalf("unexpected options: %+v", o)
	}
}

func TestNewResourcesMemoryLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tenants.yaml")
	seed := "tenants:\n  acme:\n    authority: https://a/acme\n    audience: api\n    metadata_address: https://a/acme/m\n    claims_issuer: https://a/acme\n"
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	cfg, err := config.Parse(map[string]string{
		"TENANTAUTH_STRATEGY":     "lookup",
		"TENANTAUTH_TENANTS_FILE": path,
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	log, _ := test.NewNullLogger()
	res, err := newResources(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("resources: %v", err)
	}
	defer res.Close()

	if _, err := res.store.Get(context.Background(), "acme"); err != nil {
		t.Fatalf("seeded tenant missing: %v", err)
	}
	if _, ok := res.limiter.(*memorylimiter.Limiter); !ok {
		t.Fatalf("expected in-memory limiter without redis, got %T", res.limiter)
	}
}
