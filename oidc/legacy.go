package oidckit

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/PaulFidika/tenantauth/bearer"
)

// validateLegacy verifies token with golang-jwt, using the scheme's jwx key
// set for key lookup. It is selected by Options.UseSecurityTokenValidators.
func validateLegacy(ctx context.Context, st *schemeState, opts *bearer.Options, token string) (*bearer.Identity, error) {
	kid, _, err := header(token)
	if err != nil {
		return nil, err
	}
	set, err := keysFor(ctx, st, opts, kid)
	if err != nil {
		return nil, err
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithLeeway(opts.ClockSkew),
		jwt.WithTimeFunc(func() time.Time { return opts.Clock() }),
		jwt.WithIssuedAt(),
	}
	if algs := opts.ValidationParameters.ValidAlgorithms; len(algs) > 0 {
		parserOpts = append(parserOpts, jwt.WithValidMethods(algs))
	}
	if opts.ValidationParameters.RequireExpirationTime {
		parserOpts = append(parserOpts, jwt.WithExpirationRequired())
	}

	claims := jwt.MapClaims{}
	_, err = jwt.NewParser(parserOpts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := set.LookupKeyID(kid)
		if !ok {
			return nil, errKeyNotFound
		}
		var raw any
		if err := key.Raw(&raw); err != nil {
			return nil, fmt.Errorf("export key %q: %w", kid, err)
		}
		return raw, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, errKeyNotFound):
			return nil, tokenErr(ReasonKeyNotFound, err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, tokenErr(ReasonMalformed, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, tokenErr(ReasonSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, tokenErr(ReasonExpired, err)
		case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			return nil, tokenErr(ReasonNotYetValid, err)
		case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
			return nil, tokenErr(ReasonMissingExpiry, err)
		case errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, tokenErr(ReasonAlgorithm, err)
		default:
			return nil, tokenErr(ReasonInvalidToken, err)
		}
	}

	sub, _ := claims.GetSubject()
	iss, _ := claims.GetIssuer()
	aud, _ := claims.GetAudience()
	return identityFrom(st, opts, sub, iss, aud, map[string]any(claims), token)
}
