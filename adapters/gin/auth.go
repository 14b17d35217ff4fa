package authgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/tenantauth/bearer"
)

// AuthRequired rejects requests without a valid bearer token for their
// tenant. Must run after TenantMiddleware.
func AuthRequired(a *bearer.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer.TokenFromHeader(c.GetHeader("Authorization"))
		res := a.Authenticate(c.Request.Context(), token)
		if !res.Authenticated() {
			c.Header("WWW-Authenticate", bearer.Challenge(res))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}
		c.Request = c.Request.WithContext(bearer.WithIdentity(c.Request.Context(), res.Identity))
		c.Set("auth.identity", res.Identity)
		c.Next()
	}
}

// IdentityFromGin returns the identity verified by AuthRequired.
func IdentityFromGin(c *gin.Context) (*bearer.Identity, bool) {
	if v, ok := c.Get("auth.identity"); ok {
		if id, ok := v.(*bearer.Identity); ok && id != nil {
			return id, true
		}
	}
	return bearer.IdentityFromContext(c.Request.Context())
}
