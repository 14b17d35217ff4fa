package authhttp

import (
	"net/http"
	"strings"

	jwtkit "github.com/PaulFidika/tenantauth/jwt"
	"github.com/PaulFidika/tenantauth/tenant"
)

// KeySource returns the published signing keys of a tenant's issuer.
type KeySource interface {
	JWKS(id tenant.ID) (jwtkit.JWKS, bool)
}

// IssuerURL is the issuer identifier of tenant id behind the host serving r.
func IssuerURL(r *http.Request, id tenant.ID) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/" + id.String()
}

// DiscoveryHandler serves /{tenant}/.well-known/openid-configuration for
// tenants known to keys. It must run behind TenantMiddleware.
func DiscoveryHandler(keys KeySource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := tenant.FromContext(r.Context())
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "tenant name not provided")
			return
		}
		if _, ok := keys.JWKS(id); !ok {
			writeMessage(w, http.StatusNotFound, "unknown tenant")
			return
		}
		iss := IssuerURL(r, id)
		writeJSON(w, http.StatusOK, map[string]any{
			"issuer":                                iss,
			"jwks_uri":                              iss + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
}

// JWKSHandler serves the tenant's public keys with ETag support.
func JWKSHandler(keys KeySource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := tenant.FromContext(r.Context())
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "tenant name not provided")
			return
		}
		ks, ok := keys.JWKS(id)
		if !ok {
			writeMessage(w, http.StatusNotFound, "unknown tenant")
			return
		}
		jwtkit.ServeJWKS(w, r, ks)
	})
}
