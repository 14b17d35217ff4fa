// Package bearer authenticates bearer tokens against per-tenant identity
// providers. Options are built once per tenant and every tenant gets its
// own named scheme in the validation engine, so signing keys and discovery
// documents are never shared across tenants.
package bearer

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/PaulFidika/tenantauth/tenant"
	"github.com/PaulFidika/tenantauth/tenantcfg"
)

// ValidationParameters constrain which tokens are accepted.
type ValidationParameters struct {
	ValidIssuers    []string
	ValidAudiences  []string
	ValidAlgorithms []string
	// NameClaim and RoleClaim select the claims copied onto Identity.Name and Identity.Roles.
	NameClaim             string
	RoleClaim             string
	RequireExpirationTime bool
}

// Clone returns a deep copy so tenants never share slices.
func (p ValidationParameters) Clone() ValidationParameters {
	out := p
	out.ValidIssuers = slices.Clone(p.ValidIssuers)
	out.ValidAudiences = slices.Clone(p.ValidAudiences)
	out.ValidAlgorithms = slices.Clone(p.ValidAlgorithms)
	return out
}

// Events are optional callbacks around authentication.
type Events struct {
	// OnTokenValidated runs after the engine accepted a token. Returning an
	// error rejects the request.
	OnTokenValidated func(ctx context.Context, id *Identity) error
	// OnAuthenticationFailed observes every rejection for a resolved tenant.
	OnAuthenticationFailed func(ctx context.Context, tenant tenant.ID, reason string, err error)
}

// DefaultInboundClaimMap renames short JWT claim names when MapInboundClaims is set.
var DefaultInboundClaimMap = map[string]string{
	"sub":                "nameid",
	"preferred_username": "unique_name",
	"roles":              "role",
}

// Options are the merged, per-tenant validation options. A built value is
// shared by every request for its tenant and must be treated as read-only.
type Options struct {
	// Tenant-specific
	Tenant          tenant.ID
	Authority       string
	Audience        string
	MetadataAddress string
	ClaimsIssuer    string

	// Process-wide defaults
	RequireHTTPSMetadata       bool
	UseSecurityTokenValidators bool
	IncludeErrorDetails        bool
	MapInboundClaims           bool
	InboundClaimMap            map[string]string
	SaveToken                  bool
	RefreshOnIssuerKeyNotFound bool
	AutomaticRefreshInterval   time.Duration
	RefreshInterval            time.Duration
	BackchannelTimeout         time.Duration
	Backchannel                *http.Client
	Clock                      func() time.Time
	ClockSkew                  time.Duration
	ValidationParameters       ValidationParameters
	Events                     *Events
}

// DefaultOptions returns the process-wide defaults used when none are configured.
func DefaultOptions() Options {
	return Options{
		RequireHTTPSMetadata:       true,
		MapInboundClaims:           false,
		InboundClaimMap:            DefaultInboundClaimMap,
		RefreshOnIssuerKeyNotFound: true,
		AutomaticRefreshInterval:   12 * time.Hour,
		RefreshInterval:            5 * time.Minute,
		BackchannelTimeout:         time.Minute,
		Clock:                      time.Now,
		ClockSkew:                  5 * time.Minute,
		ValidationParameters: ValidationParameters{
			ValidAlgorithms:       []string{"RS256", "RS384", "RS512", "ES256", "ES384", "PS256"},
			NameClaim:             "name",
			RoleClaim:             "roles",
			RequireExpirationTime: true,
		},
	}
}

// forTenant overlays the tenant's identity-provider fields onto a copy of d.
func (d Options) forTenant(id tenant.ID, cfg tenantcfg.Config) *Options {
	o := d
	o.Tenant = id
	o.Authority = cfg.Authority
	o.Audience = cfg.Audience
	o.MetadataAddress = cfg.MetadataAddress
	o.ClaimsIssuer = cfg.ClaimsIssuer
	o.ValidationParameters = d.ValidationParameters.Clone()
	if d.Clock == nil {
		o.Clock = time.Now
	}
	return &o
}
