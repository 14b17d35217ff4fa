package authgin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	memorylimiter "github.com/PaulFidika/tenantauth/ratelimit/memory"
	"github.com/PaulFidika/tenantauth/tenant"
)

func tenantRouter(opts ...TenantOption) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TenantMiddleware(opts...))
	echo := func(c *gin.Context) {
		id, ok := TenantFromGin(c)
		c.JSON(http.StatusOK, gin.H{"tenant": id.String(), "found": ok})
	}
	r.GET("/", echo)
	r.GET("/:tenant/ping", echo)
	return r
}

func do(r http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestTenantMiddleware_SetsTenant(t *testing.T) {
	w, body := do(tenantRouter(), "/acme-corp/ping")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["tenant"] != "acme-corp" || body["found"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestTenantMiddleware_MalformedAborts(t *testing.T) {
	for _, path := range []string{"/1acme/ping", "/ab/ping", "/ac_me/ping"} {
		w, body := do(tenantRouter(), path)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", path, w.Code)
		}
		if body["message"] != "invalid tenant name" {
			t.Fatalf("%s: body = %v", path, body)
		}
	}
}

func TestTenantMiddleware_RootPath(t *testing.T) {
	w, body := do(tenantRouter(), "/")
	if w.Code != http.StatusOK || body["found"] != false {
		t.Fatalf("root should proceed without tenant: %d %v", w.Code, body)
	}

	w, body = do(tenantRouter(RequireTenant(true)), "/")
	if w.Code != http.StatusBadRequest || body["message"] != "tenant name not provided" {
		t.Fatalf("RequireTenant: %d %v", w.Code, body)
	}
}

func TestTenantMiddleware_RateLimitsMalformedNames(t *testing.T) {
	rl := memorylimiter.New(map[string]memorylimiter.Limit{
		BucketTenantResolve: {Limit: 1, Window: time.Minute},
	})
	r := tenantRouter(WithRateLimiter(rl))

	if w, _ := do(r, "/9x/ping"); w.Code != http.StatusBadRequest {
		t.Fatalf("first malformed request: %d", w.Code)
	}
	if w, _ := do(r, "/9x/ping"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second malformed request: %d", w.Code)
	}
	if w, _ := do(r, "/acme/ping"); w.Code != http.StatusOK {
		t.Fatalf("valid tenant must not be throttled: %d", w.Code)
	}
}

func TestTenantFromGin_NoMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/acme/ping", nil)
	if _, ok := TenantFromGin(c); ok {
		t.Fatalf("tenant must be missing without the middleware")
	}
}

func TestTenantFromGin_ReadsContextKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/acme/ping", nil)
	c.Set("auth.tenant", tenant.ID("acme"))
	if id, ok := TenantFromGin(c); !ok || id != "acme" {
		t.Fatalf("TenantFromGin = %q, %v", id, ok)
	}
}
