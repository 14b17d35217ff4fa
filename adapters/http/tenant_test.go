package authhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtkit "github.com/PaulFidika/tenantauth/jwt"
	memorylimiter "github.com/PaulFidika/tenantauth/ratelimit/memory"
	"github.com/PaulFidika/tenantauth/tenant"
)

func serve(h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.1.2.3:4567"
	h.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestTenantMiddlewareWhoami(t *testing.T) {
	h := TenantMiddleware(WhoamiHandler())

	w, body := serve(h, "/acme/tenant/whoami")
	if w.Code != http.StatusOK || body["tenant_name"] != "acme" {
		t.Fatalf("whoami: %d %v", w.Code, body)
	}
	w, body = serve(h, "/")
	if w.Code != http.StatusBadRequest || body["message"] != "tenant name not provided" {
		t.Fatalf("root: %d %v", w.Code, body)
	}
	w, body = serve(h, "/-acme/tenant/whoami")
	if w.Code != http.StatusBadRequest || body["message"] != "invalid tenant name" {
		t.Fatalf("malformed: %d %v", w.Code, body)
	}
}

func TestTenantMiddlewareDoesNotCallNextOnMalformed(t *testing.T) {
	called := false
	h := TenantMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	serve(h, "/x1/")
	if called {
		t.Fatalf("downstream handler ran for malformed tenant")
	}
}

func TestTenantMiddlewareRequireTenant(t *testing.T) {
	called := false
	h := TenantMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }), RequireTenant(true))
	w, _ := serve(h, "/")
	if w.Code != http.StatusBadRequest || called {
		t.Fatalf("status = %d called = %v", w.Code, called)
	}
}

func TestTenantMiddlewareLimiter(t *testing.T) {
	rl := memorylimiter.New(map[string]memorylimiter.Limit{BucketTenantResolve: {Limit: 2, Window: time.Minute}})
	h := TenantMiddleware(WhoamiHandler(), WithLimiter(rl))
	for i := 0; i < 2; i++ {
		if w, _ := serve(h, "/9/"); w.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d: %d", i, w.Code)
		}
	}
	if w, _ := serve(h, "/9/"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

type staticKeys map[tenant.ID]jwtkit.JWKS

func (s staticKeys) JWKS(id tenant.ID) (jwtkit.JWKS, bool) {
	ks, ok := s[id]
	return ks, ok
}

func TestIssuerHandlers(t *testing.T) {
	ring, err := jwtkit.NewKeyRing("acme")
	if err != nil {
		t.Fatalf("ring: %v", err)
	}
	keys := staticKeys{"acme": ring.JWKS()}
	mux := http.NewServeMux()
	mux.Handle("GET /{tenant}/.well-known/openid-configuration", DiscoveryHandler(keys))
	mux.Handle("GET /{tenant}/jwks", JWKSHandler(keys))
	h := TenantMiddleware(mux)

	w, body := serve(h, "/acme/.well-known/openid-configuration")
	if w.Code != http.StatusOK {
		t.Fatalf("discovery status = %d", w.Code)
	}
	if body["issuer"] != "http://example.com/acme" || body["jwks_uri"] != "http://example.com/acme/jwks" {
		t.Fatalf("discovery = %v", body)
	}

	w, body = serve(h, "/acme/jwks")
	if w.Code != http.StatusOK || w.Header().Get("ETag") == "" {
		t.Fatalf("jwks: %d %v", w.Code, body)
	}

	if w, _ := serve(h, "/globex/jwks"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown tenant jwks: %d", w.Code)
	}
}
