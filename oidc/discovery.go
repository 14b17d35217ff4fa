package oidckit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DiscoveryDocument is the subset of the OpenID Provider metadata the engine needs.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint,omitempty"`
	TokenEndpoint         string `json:"token_endpoint,omitempty"`
	JWKSURI               string `json:"jwks_uri"`
}

// Discover fetches and checks the metadata document at metadataURL.
func Discover(ctx context.Context, client *http.Client, metadataURL string, requireHTTPS bool) (*DiscoveryDocument, error) {
	if strings.TrimSpace(metadataURL) == "" {
		return nil, errors.New("oidc: metadata address is empty")
	}
	if requireHTTPS {
		if err := requireHTTPSURL(metadataURL); err != nil {
			return nil, err
		}
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oidc: fetch metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("oidc: discovery failed: %s", resp.Status)
	}
	var doc DiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("oidc: decode metadata: %w", err)
	}
	if doc.Issuer == "" {
		return nil, errors.New("oidc: discovery missing issuer")
	}
	if doc.JWKSURI == "" {
		return nil, errors.New("oidc: discovery missing jwks_uri")
	}
	if requireHTTPS {
		if err := requireHTTPSURL(doc.JWKSURI); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func requireHTTPSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("oidc: invalid url %q: %w", raw, err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("oidc: https required: %s", raw)
	}
	return nil
}
