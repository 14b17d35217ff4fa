// Package redisstore keeps tenant validation configs in Redis as JSON values.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/PaulFidika/tenantauth/tenant"
	"github.com/PaulFidika/tenantauth/tenantcfg"
)

// DefaultKeyPrefix namespaces tenant entries.
const DefaultKeyPrefix = "tenantauth:tenant:"

// Store implements tenantcfg.Store on Redis.
type Store struct {
	rdb   redis.Cmdable
	keyNS string
}

func New(rdb redis.Cmdable, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Store{rdb: rdb, keyNS: keyPrefix}
}

func (s *Store) key(id tenant.ID) string { return s.keyNS + id.String() }

func (s *Store) Get(ctx context.Context, id tenant.ID) (tenantcfg.Config, error) {
	val, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return tenantcfg.Config{}, fmt.Errorf("%w: %s", tenantcfg.ErrTenantNotFound, id)
	}
	if err != nil {
		return tenantcfg.Config{}, fmt.Errorf("redisstore: get %s: %w", id, err)
	}
	var cfg tenantcfg.Config
	if err := json.Unmarshal(val, &cfg); err != nil {
		return tenantcfg.Config{}, fmt.Errorf("redisstore: decode %s: %w", id, err)
	}
	return cfg, nil
}

func (s *Store) Put(ctx context.Context, id tenant.ID, cfg tenantcfg.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(id), b, 0).Err()
}

func (s *Store) Delete(ctx context.Context, id tenant.ID) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}
