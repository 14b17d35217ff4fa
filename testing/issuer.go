// Package testing provides a multi-tenant OIDC issuer for integration tests.
// Every tenant gets its own discovery document and its own RSA signing key,
// so tokens minted for one tenant never validate under another.
//
// Example usage:
//
//	issuer := testing.NewTestIssuer("acme", "globex")
//	defer issuer.Close()
//
//	// Point the convention resolver at the issuer
//	resolver := tenantcfg.NewConventionResolver(issuer.URL(), issuer.Audience(), "")
//
//	// Create tokens for testing
//	token := issuer.CreateToken("acme", "user-123", "test@example.com")
package testing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	authhttp "github.com/PaulFidika/tenantauth/adapters/http"
	jwtkit "github.com/PaulFidika/tenantauth/jwt"
	"github.com/PaulFidika/tenantauth/tenant"
	"github.com/PaulFidika/tenantauth/tenantcfg"
)

// TestIssuer runs an HTTP server that hosts one OIDC issuer per tenant at
// /{tenant}, serving /{tenant}/.well-known/openid-configuration and
// /{tenant}/jwks.
type TestIssuer struct {
	server   *httptest.Server
	audience string

	mu    sync.RWMutex
	rings map[tenant.ID]*jwtkit.KeyRing

	jwksHits sync.Map // tenant.ID -> *atomic.Int64
}

// NewTestIssuer creates an issuer for the given tenants with audience "test-app".
// Call Close() when done to shut down the test server.
func NewTestIssuer(tenants ...string) *TestIssuer {
	return NewTestIssuerWithAudience("test-app", tenants...)
}

// NewTestIssuerWithAudience creates a test issuer with a specific audience claim.
func NewTestIssuerWithAudience(audience string, tenants ...string) *TestIssuer {
	ti := &TestIssuer{audience: audience, rings: map[tenant.ID]*jwtkit.KeyRing{}}
	for _, name := range tenants {
		ti.AddTenant(name)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{tenant}/.well-known/openid-configuration", authhttp.DiscoveryHandler(ti))
	mux.Handle("GET /{tenant}/jwks", ti.countJWKS(authhttp.JWKSHandler(ti)))
	ti.server = httptest.NewServer(authhttp.TenantMiddleware(mux))
	return ti
}

// AddTenant creates the tenant's issuer with a fresh key "<tenant>-key-1".
// It panics on a malformed tenant name.
func (ti *TestIssuer) AddTenant(name string) {
	id, err := tenant.Parse(name)
	if err != nil {
		panic("invalid tenant name: " + name)
	}
	ring, err := jwtkit.NewKeyRing(name)
	if err != nil {
		panic("failed to create RSA signer: " + err.Error())
	}
	ti.mu.Lock()
	ti.rings[id] = ring
	ti.mu.Unlock()
}

// JWKS implements authhttp.KeySource.
func (ti *TestIssuer) JWKS(id tenant.ID) (jwtkit.JWKS, bool) {
	ring := ti.ring(id)
	if ring == nil {
		return jwtkit.JWKS{}, false
	}
	return ring.JWKS(), true
}

func (ti *TestIssuer) ring(id tenant.ID) *jwtkit.KeyRing {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return ti.rings[id]
}

func (ti *TestIssuer) mustRing(name string) *jwtkit.KeyRing {
	ring := ti.ring(tenant.ID(name))
	if ring == nil {
		panic("unknown test tenant: " + name)
	}
	return ring
}

func (ti *TestIssuer) countJWKS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := tenant.FromContext(r.Context()); err == nil {
			v, _ := ti.jwksHits.LoadOrStore(id, new(atomic.Int64))
			v.(*atomic.Int64).Add(1)
		}
		next.ServeHTTP(w, r)
	})
}

// JWKSRequests returns how often the tenant's key set was fetched.
func (ti *TestIssuer) JWKSRequests(name string) int64 {
	v, ok := ti.jwksHits.Load(tenant.ID(name))
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// URL returns the base URL of the test issuer server. Use it as the base
// authority of a convention resolver.
func (ti *TestIssuer) URL() string {
	return ti.server.URL
}

// Authority returns the issuer identifier of the tenant.
func (ti *TestIssuer) Authority(name string) string {
	return ti.server.URL + "/" + name
}

// MetadataAddress returns the tenant's discovery document URL.
func (ti *TestIssuer) MetadataAddress(name string) string {
	return ti.Authority(name) + "/.well-known/openid-configuration"
}

// Config returns the tenant's validation config for a lookup store.
func (ti *TestIssuer) Config(name string) tenantcfg.Config {
	return tenantcfg.Config{
		Authority:       ti.Authority(name),
		Audience:        ti.audience,
		MetadataAddress: ti.MetadataAddress(name),
		ClaimsIssuer:    ti.Authority(name),
	}
}

// Audience returns the audience configured for this test issuer.
func (ti *TestIssuer) Audience() string {
	return ti.audience
}

// Close shuts down the test server.
func (ti *TestIssuer) Close() {
	if ti.server != nil {
		ti.server.Close()
	}
}

// RotateKey makes a new key active for the tenant and returns its kid.
// The previous key stays published.
func (ti *TestIssuer) RotateKey(name string) string {
	s, err := ti.mustRing(name).Rotate()
	if err != nil {
		panic("failed to rotate key: " + err.Error())
	}
	return s.KID()
}

// CreateToken creates a signed JWT for the tenant.
func (ti *TestIssuer) CreateToken(name, userID, email string) string {
	return ti.CreateTokenWithClaims(name, userID, email, nil)
}

// CreateTokenWithClaims creates a signed JWT token with additional custom claims.
// The custom claims are merged over the standard claims (sub, email, iss, aud, exp, iat, nbf).
func (ti *TestIssuer) CreateTokenWithClaims(name, userID, email string, extraClaims map[string]any) string {
	claims := jwtkit.TokenClaims(ti.Authority(name), userID, []string{ti.audience}, time.Now(), time.Hour)
	claims["email"] = email
	for k, v := range extraClaims {
		claims[k] = v
	}
	return ti.sign(name, claims)
}

// CreateTokenWithRoles creates a signed JWT token with role claims.
func (ti *TestIssuer) CreateTokenWithRoles(name, userID, email string, roles []string) string {
	return ti.CreateTokenWithClaims(name, userID, email, map[string]any{
		"roles": roles,
	})
}

// CreateTokenWithExpiry creates a signed JWT token with a custom expiry time.
func (ti *TestIssuer) CreateTokenWithExpiry(name, userID, email string, expiry time.Time) string {
	return ti.CreateTokenWithClaims(name, userID, email, map[string]any{
		"exp": expiry.Unix(),
	})
}

// CreateExpiredToken creates a token that expired an hour ago.
func (ti *TestIssuer) CreateExpiredToken(name, userID, email string) string {
	past := time.Now().Add(-2 * time.Hour)
	return ti.CreateTokenWithClaims(name, userID, email, map[string]any{
		"iat": past.Unix(),
		"nbf": past.Unix(),
		"exp": past.Add(time.Hour).Unix(),
	})
}

func (ti *TestIssuer) sign(name string, claims jwt.MapClaims) string {
	token, err := ti.mustRing(name).Active().Sign(context.Background(), claims)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return token
}
