package hosts

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry implements Registry on a pgx connection pool. The
// UNIQUE(owner_id, hostname) constraint and single-row UPDATE are the
// serialization point for concurrent registrations of the same host.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

const getHostQuery = `
SELECT owner_id, hostname, current_address, status, first_seen_at, last_seen_at
FROM hosts
WHERE owner_id = $1 AND hostname = $2`

func (r *PostgresRegistry) GetByOwnerAndHostname(ctx context.Context, ownerID uuid.UUID, hostname string) (*Host, error) {
	row := r.pool.QueryRow(ctx, getHostQuery,
		pgtype.UUID{Bytes: ownerID, Valid: true},
		hostname,
	)

	host, err := scanHost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHostNotFound
		}
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	return host, nil
}

const createHostQuery = `
INSERT INTO hosts (owner_id, hostname, current_address, status, first_seen_at, last_seen_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING owner_id, hostname, current_address, status, first_seen_at, last_seen_at`

func (r *PostgresRegistry) Create(ctx context.Context, host Host) (*Host, error) {
	row := r.pool.QueryRow(ctx, createHostQuery,
		pgtype.UUID{Bytes: host.OwnerID, Valid: true},
		host.Hostname,
		host.CurrentAddress,
		string(host.Status),
		pgtype.Timestamptz{Time: host.FirstSeenAt, Valid: true},
		pgtype.Timestamptz{Time: host.LastSeenAt, Valid: true},
	)

	created, err := scanHost(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrHostExists
		}
		return nil, fmt.Errorf("failed to create host: %w", err)
	}
	return created, nil
}

const updateHostQuery = `
UPDATE hosts
SET current_address = COALESCE($3, current_address),
    status = COALESCE($4, status),
    last_seen_at = $5
WHERE owner_id = $1 AND hostname = $2`

func (r *PostgresRegistry) Update(ctx context.Context, ownerID uuid.UUID, hostname string, fields UpdateFields) (bool, error) {
	var status *string
	if fields.Status != nil {
		s := string(*fields.Status)
		status = &s
	}

	tag, err := r.pool.Exec(ctx, updateHostQuery,
		pgtype.UUID{Bytes: ownerID, Valid: true},
		hostname,
		fields.CurrentAddress,
		status,
		pgtype.Timestamptz{Time: fields.LastSeenAt, Valid: true},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update host: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanHost(row pgx.Row) (*Host, error) {
	var (
		ownerID                 pgtype.UUID
		hostname, status        string
		currentAddress          netip.Addr
		firstSeenAt, lastSeenAt pgtype.Timestamptz
	)
	if err := row.Scan(&ownerID, &hostname, &currentAddress, &status, &firstSeenAt, &lastSeenAt); err != nil {
		return nil, err
	}

	return &Host{
		OwnerID:        uuid.UUID(ownerID.Bytes),
		Hostname:       hostname,
		CurrentAddress: currentAddress,
		Status:         Status(status),
		FirstSeenAt:    firstSeenAt.Time,
		LastSeenAt:     lastSeenAt.Time,
	}, nil
}
