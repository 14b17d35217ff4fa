// Package tenantcfg resolves the identity-provider parameters a tenant's
// bearer tokens are validated against.
package tenantcfg

import (
	"context"
	"errors"
	"fmt"

	"github.com/PaulFidika/tenantauth/tenant"
)

var (
	// ErrTenantNotFound is returned by a Store when it has no entry for a tenant.
	ErrTenantNotFound = errors.New("tenantcfg: tenant not found")

	// ErrInvalidConfig is returned when a resolved configuration is incomplete.
	ErrInvalidConfig = errors.New("tenantcfg: invalid config")
)

// Config is the per-tenant identity-provider description.
type Config struct {
	Authority       string `json:"authority" yaml:"authority"`
	Audience        string `json:"audience" yaml:"audience"`
	MetadataAddress string `json:"metadata_address" yaml:"metadata_address"`
	ClaimsIssuer    string `json:"claims_issuer" yaml:"claims_issuer"`
}

// Validate requires every field to be set.
func (c Config) Validate() error {
	switch {
	case c.Authority == "":
		return fmt.Errorf("%w: authority is empty", ErrInvalidConfig)
	case c.Audience == "":
		return fmt.Errorf("%w: audience is empty", ErrInvalidConfig)
	case c.MetadataAddress == "":
		return fmt.Errorf("%w: metadata address is empty", ErrInvalidConfig)
	case c.ClaimsIssuer == "":
		return fmt.Errorf("%w: claims issuer is empty", ErrInvalidConfig)
	}
	return nil
}

// Resolver produces a tenant's Config. Implementations do not cache.
type Resolver interface {
	Resolve(ctx context.Context, id tenant.ID) (Config, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id tenant.ID) (Config, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, id tenant.ID) (Config, error) {
	return f(ctx, id)
}

// Store is an external per-tenant configuration source.
type Store interface {
	// Get returns ErrTenantNotFound when the tenant is unknown.
	Get(ctx context.Context, id tenant.ID) (Config, error)
}
