package tenantcfg

import (
	"context"
	"errors"
	"strings"

	"github.com/PaulFidika/tenantauth/tenant"
)

// TenantPlaceholder is substituted with the tenant id in templated fields.
const TenantPlaceholder = "{tenant}"

const wellKnownPath = "/.well-known/openid-configuration"

// ConventionResolver derives a tenant's configuration from a shared
// identity provider that hosts one realm per tenant under BaseAuthority.
type ConventionResolver struct {
	BaseAuthority string
	// Audience is used as-is, or templated when it contains TenantPlaceholder.
	Audience string
	// ClaimsIssuer defaults to the tenant authority when empty.
	ClaimsIssuer string
}

// NewConventionResolver builds a convention resolver for baseAuthority.
func NewConventionResolver(baseAuthority, audience, claimsIssuer string) *ConventionResolver {
	return &ConventionResolver{
		BaseAuthority: baseAuthority,
		Audience:      audience,
		ClaimsIssuer:  claimsIssuer,
	}
}

// Resolve returns {base}/{tenant} as authority and its well-known document as metadata address.
func (r *ConventionResolver) Resolve(_ context.Context, id tenant.ID) (Config, error) {
	base := strings.TrimRight(strings.TrimSpace(r.BaseAuthority), "/")
	if base == "" {
		return Config{}, errors.New("tenantcfg: base authority is empty")
	}
	authority := base + "/" + id.String()
	cfg := Config{
		Authority:       authority,
		Audience:        expand(r.Audience, id),
		MetadataAddress: authority + wellKnownPath,
		ClaimsIssuer:    expand(r.ClaimsIssuer, id),
	}
	if cfg.ClaimsIssuer == "" {
		cfg.ClaimsIssuer = authority
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func expand(tmpl string, id tenant.ID) string {
	return strings.ReplaceAll(tmpl, TenantPlaceholder, id.String())
}
