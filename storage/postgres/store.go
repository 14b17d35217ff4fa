// Package pgstore keeps tenant validation configs in Postgres.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PaulFidika/tenantauth/tenant"
	"github.com/PaulFidika/tenantauth/tenantcfg"
)

// Store reads tenants from <schema>.tenants, created by the migrations package.
type Store struct {
	pg     *pgxpool.Pool
	schema string
}

func NewStore(pg *pgxpool.Pool, schema string) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "tenantauth"
	}
	return &Store{pg: pg, schema: s}
}

func (s *Store) table() string { return s.schema + ".tenants" }

func (s *Store) Get(ctx context.Context, id tenant.ID) (tenantcfg.Config, error) {
	if s.pg == nil {
		return tenantcfg.Config{}, fmt.Errorf("%w: %s", tenantcfg.ErrTenantNotFound, id)
	}
	var cfg tenantcfg.Config
	err := s.pg.QueryRow(ctx,
		`SELECT authority, audience, metadata_address, claims_issuer FROM `+s.table()+` WHERE name = $1 AND disabled_at IS NULL`,
		id.String(),
	).Scan(&cfg.Authority, &cfg.Audience, &cfg.MetadataAddress, &cfg.ClaimsIssuer)
	if errors.Is(err, pgx.ErrNoRows) {
		return tenantcfg.Config{}, fmt.Errorf("%w: %s", tenantcfg.ErrTenantNotFound, id)
	}
	if err != nil {
		return tenantcfg.Config{}, fmt.Errorf("pgstore: get %s: %w", id, err)
	}
	return cfg, nil
}

// Put inserts or updates a tenant and re-enables it.
func (s *Store) Put(ctx context.Context, id tenant.ID, cfg tenantcfg.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.pg == nil {
		return errors.New("pgstore: no database")
	}
	_, err := s.pg.Exec(ctx, `
		INSERT INTO `+s.table()+` (name, authority, audience, metadata_address, claims_issuer)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			authority = EXCLUDED.authority,
			audience = EXCLUDED.audience,
			metadata_address = EXCLUDED.metadata_address,
			claims_issuer = EXCLUDED.claims_issuer,
			disabled_at = NULL,
			updated_at = now()`,
		id.String(), cfg.Authority, cfg.Audience, cfg.MetadataAddress, cfg.ClaimsIssuer)
	return err
}

// Disable hides a tenant from Get without deleting its row.
func (s *Store) Disable(ctx context.Context, id tenant.ID) error {
	if s.pg == nil {
		return nil
	}
	_, err := s.pg.Exec(ctx, `UPDATE `+s.table()+` SET disabled_at = now() WHERE name = $1`, id.String())
	return err
}
