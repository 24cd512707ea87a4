package credentials

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const listActiveQuery = `
SELECT id, owner_id, digest, expires_at, is_active, revoked_at, last_used_at, last_used_address
FROM credentials`

func (s *PostgresStore) ListActive(ctx context.Context) ([]Credential, error) {
	rows, err := s.pool.Query(ctx, listActiveQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list active credentials: %w", err)
	}
	defer rows.Close()

	var result []Credential
	for rows.Next() {
		var (
			id, ownerID                      pgtype.UUID
			digest                           string
			expiresAt, revokedAt, lastUsedAt pgtype.Timestamptz
			isActive                         bool
			lastUsedAddress                  *netip.Addr
		)
		if err := rows.Scan(&id, &ownerID, &digest, &expiresAt, &isActive, &revokedAt, &lastUsedAt, &lastUsedAddress); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}

		cred := Credential{
			ID:              uuid.UUID(id.Bytes),
			OwnerID:         uuid.UUID(ownerID.Bytes),
			Digest:          digest,
			IsActive:        isActive,
			LastUsedAddress: lastUsedAddress,
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			cred.ExpiresAt = &t
		}
		if revokedAt.Valid {
			t := revokedAt.Time
			cred.RevokedAt = &t
		}
		if lastUsedAt.Valid {
			t := lastUsedAt.Time
			cred.LastUsedAt = &t
		}
		result = append(result, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	return result, nil
}

const touchUsageQuery = `
UPDATE credentials
SET last_used_at = $2, last_used_address = $3
WHERE id = $1`

func (s *PostgresStore) TouchUsage(ctx context.Context, credentialID uuid.UUID, address *netip.Addr, now time.Time) error {
	_, err := s.pool.Exec(ctx, touchUsageQuery,
		pgtype.UUID{Bytes: credentialID, Valid: true},
		pgtype.Timestamptz{Time: now, Valid: true},
		address,
	)
	if err != nil {
		return fmt.Errorf("failed to touch credential usage: %w", err)
	}
	return nil
}

const insertCredentialQuery = `
INSERT INTO credentials (id, owner_id, digest, expires_at, is_active)
VALUES ($1, $2, $3, $4, $5)`

// Insert persists a credential. Issuance flows live outside the registrar;
// this exists for operator tooling and integration tests.
func (s *PostgresStore) Insert(ctx context.Context, cred Credential) error {
	var expiresAt pgtype.Timestamptz
	if cred.ExpiresAt != nil {
		expiresAt = pgtype.Timestamptz{Time: *cred.ExpiresAt, Valid: true}
	}

	_, err := s.pool.Exec(ctx, insertCredentialQuery,
		pgtype.UUID{Bytes: cred.ID, Valid: true},
		pgtype.UUID{Bytes: cred.OwnerID, Valid: true},
		cred.Digest,
		expiresAt,
		cred.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

const revokeCredentialQuery = `
UPDATE credentials
SET revoked_at = $2
WHERE id = $1 AND revoked_at IS NULL`

// Revoke stamps revoked_at on a credential. Returns false when the
// credential does not exist or was already revoked.
func (s *PostgresStore) Revoke(ctx context.Context, credentialID uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, revokeCredentialQuery,
		pgtype.UUID{Bytes: credentialID, Valid: true},
		pgtype.Timestamptz{Time: at, Valid: true},
	)
	if err != nil {
		return false, fmt.Errorf("failed to revoke credential: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
