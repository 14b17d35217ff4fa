package jwtkit

import (
	"crypto/rsa"
	"fmt"
	"sync"
)

// KeyRing holds the active signing key of one issuer plus the public halves
// of keys it rotated out. Retired keys stay published so tokens they signed
// keep validating until they expire.
type KeyRing struct {
	mu      sync.RWMutex
	prefix  string
	gen     int
	active  *RSASigner
	retired map[string]*rsa.PublicKey
	order   []string
}

// NewKeyRing generates the first key, named "<prefix>-key-1".
func NewKeyRing(prefix string) (*KeyRing, error) {
	r := &KeyRing{prefix: prefix, retired: map[string]*rsa.PublicKey{}}
	if _, err := r.Rotate(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewKeyRingFromSigner wraps an existing signer, e.g. one loaded with NewRSASignerFromPEM.
func NewKeyRingFromSigner(s *RSASigner) *KeyRing {
	return &KeyRing{prefix: s.KID(), gen: 1, active: s, retired: map[string]*rsa.PublicKey{}}
}

// Active returns the signer used for new tokens.
func (r *KeyRing) Active() *RSASigner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Rotate generates a new active key and retires the current one.
func (r *KeyRing) Rotate() (*RSASigner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	s, err := NewRSASigner(2048, fmt.Sprintf("%s-key-%d", r.prefix, r.gen))
	if err != nil {
		r.gen--
		return nil, err
	}
	if r.active != nil {
		r.retired[r.active.KID()] = r.active.PublicKey()
		r.order = append(r.order, r.active.KID())
	}
	r.active = s
	return s, nil
}

// Drop removes a retired key from the published set.
func (r *KeyRing) Drop(kid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.retired[kid]; !ok {
		return
	}
	delete(r.retired, kid)
	for i, k := range r.order {
		if k == kid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// JWKS returns the published key set, active key first.
func (r *KeyRing) JWKS() JWKS {
	r.mu.RLock()
	defer r.mu.RUnlock()
	alg := r.active.Algorithm()
	ks := JWKS{Keys: []JWK{RSAPublicToJWK(r.active.PublicKey(), r.active.KID(), alg)}}
	for i := len(r.order) - 1; i >= 0; i-- {
		kid := r.order[i]
		ks.Keys = append(ks.Keys, RSAPublicToJWK(r.retired[kid], kid, alg))
	}
	return ks
}
