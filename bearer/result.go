package bearer

import (
	"errors"

	"github.com/PaulFidika/tenantauth/tenant"
)

// Rejection reasons reported by the Authenticator itself. Rejections coming
// from the engine carry the engine's own reason instead.
const (
	ReasonTenantMissing     = "tenant missing or invalid"
	ReasonConfigUnavailable = "tenant configuration unavailable"
	ReasonInternal          = "internal authentication error"
	ReasonNoToken           = "bearer token missing"
	ReasonRejected          = "token rejected"
)

// ErrBuildFailed wraps any failure of the options build pipeline.
var ErrBuildFailed = errors.New("bearer: building tenant options failed")

// TokenError is returned by an Engine when the presented token itself is
// unacceptable (signature, issuer, audience, expiry). Reason is safe to show
// to the caller.
type TokenError struct {
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *TokenError) Unwrap() error { return e.Err }

// Identity is the verified caller.
type Identity struct {
	Tenant   tenant.ID      `json:"tenant"`
	Subject  string         `json:"sub"`
	Issuer   string         `json:"iss"`
	Audience []string       `json:"aud,omitempty"`
	Name     string         `json:"name,omitempty"`
	Roles    []string       `json:"roles,omitempty"`
	Claims   map[string]any `json:"claims,omitempty"`
	// Token is the raw bearer token, kept only when Options.SaveToken is set.
	Token string `json:"-"`
}

// Result is the verdict of one authentication attempt.
type Result struct {
	Tenant   tenant.ID
	Identity *Identity
	// Reason is empty on success.
	Reason string
	// Detail holds the engine error text when the tenant enables IncludeErrorDetails.
	Detail string
}

// Authenticated reports whether the request carries a verified identity.
func (r Result) Authenticated() bool { return r.Identity != nil && r.Reason == "" }

func success(id tenant.ID, ident *Identity) Result {
	return Result{Tenant: id, Identity: ident}
}

func fail(id tenant.ID, reason string) Result {
	return Result{Tenant: id, Reason: reason}
}
