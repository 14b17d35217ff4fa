package tenantcfg

import (
	"context"
	"errors"
	"fmt"

	"github.com/PaulFidika/tenantauth/tenant"
)

// LookupResolver reads tenant configuration from a Store.
type LookupResolver struct {
	Store Store
}

// NewLookupResolver returns a resolver backed by store.
func NewLookupResolver(store Store) *LookupResolver {
	return &LookupResolver{Store: store}
}

// Resolve fetches the tenant's entry. An unknown tenant yields tenant.ErrUnknownTenant.
func (r *LookupResolver) Resolve(ctx context.Context, id tenant.ID) (Config, error) {
	if r == nil || r.Store == nil {
		return Config{}, errors.New("tenantcfg: lookup resolver has no store")
	}
	cfg, err := r.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return Config{}, fmt.Errorf("%w: %q", tenant.ErrUnknownTenant, id)
		}
		return Config{}, fmt.Errorf("lookup tenant %q: %w", id, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("tenant %q: %w", id, err)
	}
	return cfg, nil
}
