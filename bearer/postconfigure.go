package bearer

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PaulFidika/tenantauth/tenant"
)

// PostConfigurer adjusts freshly merged options before they are cached.
// Hooks run in registration order and may mutate o in place.
type PostConfigurer interface {
	PostConfigure(id tenant.ID, o *Options) error
}

// PostConfigureFunc adapts a function to PostConfigurer.
type PostConfigureFunc func(id tenant.ID, o *Options) error

// PostConfigure calls f.
func (f PostConfigureFunc) PostConfigure(id tenant.ID, o *Options) error { return f(id, o) }

// DefaultPostConfigurers are always applied ahead of user hooks.
func DefaultPostConfigurers() []PostConfigurer {
	return []PostConfigurer{
		PostConfigureFunc(requireHTTPSMetadata),
		PostConfigureFunc(validationParameterDefaults),
		PostConfigureFunc(backchannelDefaults),
	}
}

func requireHTTPSMetadata(_ tenant.ID, o *Options) error {
	if !o.RequireHTTPSMetadata {
		return nil
	}
	u, err := url.Parse(o.MetadataAddress)
	if err != nil {
		return fmt.Errorf("metadata address: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("metadata address must use https unless RequireHTTPSMetadata is disabled: %s", o.MetadataAddress)
	}
	return nil
}

func validationParameterDefaults(_ tenant.ID, o *Options) error {
	p := &o.ValidationParameters
	if len(p.ValidIssuers) == 0 {
		p.ValidIssuers = []string{o.ClaimsIssuer}
		if o.Authority != "" && o.Authority != o.ClaimsIssuer {
			p.ValidIssuers = append(p.ValidIssuers, o.Authority)
		}
	}
	if len(p.ValidAudiences) == 0 {
		p.ValidAudiences = []string{o.Audience}
	}
	return nil
}

func backchannelDefaults(_ tenant.ID, o *Options) error {
	if o.Backchannel == nil {
		o.Backchannel = &http.Client{Timeout: o.BackchannelTimeout}
	}
	return nil
}

// SharedBackchannel returns a hook that makes every tenant use client for
// discovery and JWKS fetches.
func SharedBackchannel(client *http.Client) PostConfigurer {
	return PostConfigureFunc(func(_ tenant.ID, o *Options) error {
		o.Backchannel = client
		return nil
	})
}
