package tenant

import (
	"context"
	"fmt"
)

type ctxKey struct{}

// Slot holds the tenant resolved for a single request. It is written at most
// once and is never shared across requests.
type Slot struct {
	id  ID
	set bool
}

// NewContext attaches an empty tenant slot to ctx.
func NewContext(ctx context.Context) (context.Context, *Slot) {
	s := &Slot{}
	return context.WithValue(ctx, ctxKey{}, s), s
}

// Set stores id in the slot. Setting twice is a programming error and panics.
func (s *Slot) Set(id ID) {
	if s == nil {
		panic(fmt.Errorf("%w: no tenant scope", ErrInvalidState))
	}
	if s.set {
		panic(fmt.Errorf("%w: tenant already set to %q", ErrInvalidState, s.id))
	}
	s.id = id
	s.set = true
}

// Get returns the stored tenant or ErrTenantMissing.
func (s *Slot) Get() (ID, error) {
	if s == nil || !s.set {
		return "", ErrTenantMissing
	}
	return s.id, nil
}

// SlotFromContext returns the request slot, or nil if ctx carries none.
func SlotFromContext(ctx context.Context) *Slot {
	s, _ := ctx.Value(ctxKey{}).(*Slot)
	return s
}

// Set writes id into the slot carried by ctx. It panics when ctx has no slot
// or the slot was already written.
func Set(ctx context.Context, id ID) {
	SlotFromContext(ctx).Set(id)
}

// FromContext reads the tenant for the current request.
func FromContext(ctx context.Context) (ID, error) {
	return SlotFromContext(ctx).Get()
}

// WithTenant is a convenience for callers outside an HTTP pipeline (jobs,
// tests): it returns a context whose slot is already set to id.
func WithTenant(ctx context.Context, id ID) context.Context {
	ctx, s := NewContext(ctx)
	s.Set(id)
	return ctx
}
