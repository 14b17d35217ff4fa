package tenantcfg

import "fmt"

// Strategy names a Resolver implementation.
type Strategy string

const (
	StrategyLookup     Strategy = "lookup"
	StrategyConvention Strategy = "convention"
)

// ResolverConfig carries the inputs for both strategies; only the fields of
// the selected one are consulted.
type ResolverConfig struct {
	Strategy      Strategy
	Store         Store
	BaseAuthority string
	Audience      string
	ClaimsIssuer  string
}

// NewResolver selects a resolver by strategy.
func NewResolver(cfg ResolverConfig) (Resolver, error) {
	switch cfg.Strategy {
	case StrategyLookup:
		if cfg.Store == nil {
			return nil, fmt.Errorf("tenantcfg: %s strategy requires a store", cfg.Strategy)
		}
		return NewLookupResolver(cfg.Store), nil
	case StrategyConvention, "":
		if cfg.BaseAuthority == "" {
			return nil, fmt.Errorf("tenantcfg: %s strategy requires a base authority", StrategyConvention)
		}
		if cfg.Audience == "" {
			return nil, fmt.Errorf("tenantcfg: %s strategy requires an audience", StrategyConvention)
		}
		return NewConventionResolver(cfg.BaseAuthority, cfg.Audience, cfg.ClaimsIssuer), nil
	default:
		return nil, fmt.Errorf("tenantcfg: unknown strategy %q", cfg.Strategy)
	}
}
