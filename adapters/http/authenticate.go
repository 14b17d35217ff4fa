package authhttp

import (
	"net/http"

	"github.com/PaulFidika/tenantauth/bearer"
)

// Authenticate requires a valid bearer token for the request's tenant.
// Failures get 401 with a WWW-Authenticate challenge; on success the
// identity is available through bearer.IdentityFromContext.
func Authenticate(a *bearer.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer.TokenFromHeader(r.Header.Get("Authorization"))
			res := a.Authenticate(r.Context(), token)
			if !res.Authenticated() {
				w.Header().Set("WWW-Authenticate", bearer.Challenge(res))
				writeMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(bearer.WithIdentity(r.Context(), res.Identity)))
		})
	}
}

// MeHandler returns the authenticated identity.
func MeHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := bearer.IdentityFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, id)
	})
}
