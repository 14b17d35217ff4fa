package oidckit

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/PaulFidika/tenantauth/bearer"
)

// Reasons reported in bearer.TokenError.
const (
	ReasonMalformed       = "malformed token"
	ReasonKeyNotFound     = "signing key not found"
	ReasonSignature       = "invalid signature"
	ReasonExpired         = "token expired"
	ReasonNotYetValid     = "token not yet valid"
	ReasonMissingExpiry   = "token has no expiration"
	ReasonIssuer          = "invalid issuer"
	ReasonAudience        = "invalid audience"
	ReasonAlgorithm       = "algorithm not allowed"
	ReasonInvalidToken    = "invalid token"
	ReasonKeysUnavailable = "signing keys unavailable"
	ReasonMissingSubject  = "token has no subject"
)

func tokenErr(reason string, err error) error {
	return &bearer.TokenError{Reason: reason, Err: err}
}

// header reads kid and alg from the compact JWS without verifying it.
func header(token string) (kid, alg string, err error) {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return "", "", tokenErr(ReasonMalformed, err)
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", "", tokenErr(ReasonMalformed, errors.New("expected exactly one signature"))
	}
	h := sigs[0].ProtectedHeaders()
	return h.KeyID(), h.Algorithm().String(), nil
}

// keysFor returns the scheme's key set, refreshing it when kid is unknown and
// the options allow it. Forced refreshes are throttled per scheme.
func keysFor(ctx context.Context, st *schemeState, opts *bearer.Options, kid string) (jwk.Set, error) {
	set, err := st.keySet(ctx)
	if err != nil {
		return nil, tokenErr(ReasonKeysUnavailable, err)
	}
	if kid == "" {
		return set, nil
	}
	if _, ok := set.LookupKeyID(kid); ok || !opts.RefreshOnIssuerKeyNotFound {
		return set, nil
	}
	refreshed, ok, err := st.refresh(ctx, opts)
	if err != nil || !ok {
		return set, nil
	}
	return refreshed, nil
}

func checkAlgorithm(opts *bearer.Options, alg string) error {
	allowed := opts.ValidationParameters.ValidAlgorithms
	if len(allowed) > 0 && !slices.Contains(allowed, alg) {
		return tokenErr(ReasonAlgorithm, errors.New(alg))
	}
	return nil
}

// validate verifies token with jwx.
func validate(ctx context.Context, st *schemeState, opts *bearer.Options, token string) (*bearer.Identity, error) {
	kid, alg, err := header(token)
	if err != nil {
		return nil, err
	}
	if err := checkAlgorithm(opts, alg); err != nil {
		return nil, err
	}
	set, err := keysFor(ctx, st, opts, kid)
	if err != nil {
		return nil, err
	}
	if kid != "" {
		if _, ok := set.LookupKeyID(kid); !ok {
			return nil, tokenErr(ReasonKeyNotFound, errors.New(kid))
		}
	}

	tok, err := jwt.ParseString(
		token,
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(opts.ClockSkew),
		jwt.WithClock(jwt.ClockFunc(opts.Clock)),
		jwt.WithContext(ctx),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired()):
			return nil, tokenErr(ReasonExpired, err)
		case errors.Is(err, jwt.ErrTokenNotYetValid()):
			return nil, tokenErr(ReasonNotYetValid, err)
		case jwt.IsValidationError(err):
			return nil, tokenErr(ReasonInvalidToken, err)
		default:
			return nil, tokenErr(ReasonSignature, err)
		}
	}
	if opts.ValidationParameters.RequireExpirationTime && tok.Expiration().IsZero() {
		return nil, tokenErr(ReasonMissingExpiry, nil)
	}
	claims, err := tok.AsMap(ctx)
	if err != nil {
		return nil, err
	}
	return identityFrom(st, opts, tok.Subject(), tok.Issuer(), tok.Audience(), claims, token)
}

// identityFrom checks issuer and audience and builds the verified identity.
func identityFrom(st *schemeState, opts *bearer.Options, sub, iss string, aud []string, claims map[string]any, raw string) (*bearer.Identity, error) {
	if !validIssuer(st, opts, iss) {
		return nil, tokenErr(ReasonIssuer, errors.New(iss))
	}
	if !validAudience(opts, aud) {
		return nil, tokenErr(ReasonAudience, errors.New(strings.Join(aud, ",")))
	}
	if sub == "" {
		return nil, tokenErr(ReasonMissingSubject, nil)
	}
	p := opts.ValidationParameters
	id := &bearer.Identity{
		Subject:  sub,
		Issuer:   iss,
		Audience: aud,
		Name:     stringClaim(claims, p.NameClaim),
		Roles:    stringsClaim(claims, p.RoleClaim),
		Claims:   claims,
	}
	if opts.MapInboundClaims {
		id.Claims = mapClaims(claims, opts.InboundClaimMap)
	}
	if opts.SaveToken {
		id.Token = raw
	}
	return id, nil
}

func validIssuer(st *schemeState, opts *bearer.Options, iss string) bool {
	norm := strings.TrimRight(iss, "/")
	if norm == "" {
		return false
	}
	if st.issuer != "" && strings.TrimRight(st.issuer, "/") == norm {
		return true
	}
	for _, v := range opts.ValidationParameters.ValidIssuers {
		if strings.TrimRight(v, "/") == norm {
			return true
		}
	}
	return false
}

func validAudience(opts *bearer.Options, aud []string) bool {
	valid := opts.ValidationParameters.ValidAudiences
	if len(valid) == 0 {
		return true
	}
	for _, a := range aud {
		if slices.Contains(valid, a) {
			return true
		}
	}
	return false
}

func stringClaim(claims map[string]any, name string) string {
	if name == "" {
		return ""
	}
	s, _ := claims[name].(string)
	return s
}

func stringsClaim(claims map[string]any, name string) []string {
	if name == "" {
		return nil
	}
	switch v := claims[name].(type) {
	case string:
		return strings.Fields(v)
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func mapClaims(claims map[string]any, mapping map[string]string) map[string]any {
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		if to, ok := mapping[k]; ok {
			k = to
		}
		out[k] = v
	}
	return out
}
