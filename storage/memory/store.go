// Package memorystore keeps tenant validation configs in process memory,
// optionally seeded from a YAML file.
package memorystore

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/PaulFidika/tenantauth/tenant"
	"github.com/PaulFidika/tenantauth/tenantcfg"
)

// Store is an in-memory implementation of tenantcfg.Store.
type Store struct {
	mu   sync.RWMutex
	data map[tenant.ID]tenantcfg.Config
}

// New creates a store holding a copy of seed.
func New(seed map[tenant.ID]tenantcfg.Config) *Store {
	s := &Store{data: make(map[tenant.ID]tenantcfg.Config, len(seed))}
	for id, cfg := range seed {
		s.data[id] = cfg
	}
	return s
}

func (s *Store) Get(_ context.Context, id tenant.ID) (tenantcfg.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.data[id]
	if !ok {
		return tenantcfg.Config{}, fmt.Errorf("%w: %s", tenantcfg.ErrTenantNotFound, id)
	}
	return cfg, nil
}

// Put adds or replaces a tenant. Options already built for the tenant are
// not affected.
func (s *Store) Put(_ context.Context, id tenant.ID, cfg tenantcfg.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = cfg
	return nil
}

func (s *Store) Delete(_ context.Context, id tenant.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// Tenants returns the known tenant names in sorted order.
func (s *Store) Tenants() []tenant.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tenant.ID, 0, len(s.data))
	for id := range s.data {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// seedFile is the YAML layout:
//
//	tenants:
//	  acme:
//	    authority: https://login.example.com/acme
//	    audience: api
//	    metadata_address: https://login.example.com/acme/.well-known/openid-configuration
//	    claims_issuer: https://login.example.com/acme
type seedFile struct {
	Tenants map[string]tenantcfg.Config `yaml:"tenants"`
}

// Load reads a YAML seed. Every tenant name and config is validated.
func Load(r io.Reader) (*Store, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode tenants: %w", err)
	}
	seed := make(map[tenant.ID]tenantcfg.Config, len(f.Tenants))
	for name, cfg := range f.Tenants {
		id, err := tenant.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("tenant %q: %w", name, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("tenant %q: %w", name, err)
		}
		seed[id] = cfg
	}
	return New(seed), nil
}

// LoadFile reads a YAML seed from path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
