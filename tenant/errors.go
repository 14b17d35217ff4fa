package tenant

import "errors"

var (
	// ErrMalformedTenant is returned when a tenant identifier fails shape validation.
	ErrMalformedTenant = errors.New("tenant: malformed identifier")

	// ErrTenantMissing is returned when a tenant is required but none was resolved.
	ErrTenantMissing = errors.New("tenant: missing")

	// ErrUnknownTenant is returned when no configuration exists for a tenant.
	ErrUnknownTenant = errors.New("tenant: unknown")

	// ErrInvalidState signals misuse of the request tenant slot (double set, no scope).
	ErrInvalidState = errors.New("tenant: invalid state")
)
