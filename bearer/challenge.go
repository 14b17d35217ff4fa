package bearer

import (
	"context"
	"strings"
)

// Challenge returns the WWW-Authenticate value for a failed result.
// Requests without a token get a bare challenge; error_description is only
// added when the tenant enabled IncludeErrorDetails.
func Challenge(r Result) string {
	if r.Reason == ReasonNoToken {
		return "Bearer"
	}
	var b strings.Builder
	b.WriteString(`Bearer error="invalid_token"`)
	if r.Detail != "" {
		b.WriteString(`, error_description="`)
		b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(r.Detail))
		b.WriteString(`"`)
	}
	return b.String()
}

// TokenFromHeader extracts the credentials of an "Authorization: Bearer" header value.
func TokenFromHeader(h string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type identityKey struct{}

// WithIdentity stores a verified identity in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
