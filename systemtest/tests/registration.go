package tests

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetware/registrar/internal/credentials"
	"github.com/fleetware/registrar/internal/dedup"
	"github.com/fleetware/registrar/internal/hosts"
	"github.com/fleetware/registrar/internal/ratelimit"
	"github.com/fleetware/registrar/internal/registration"
)

type env struct {
	pool      *pgxpool.Pool
	store     *credentials.PostgresStore
	registry  *hosts.PostgresRegistry
	validator *credentials.Validator
	pipeline  *registration.Pipeline
	stats     *registration.Stats
}

// newEnv wires the pipeline against the real Postgres stores. The duplicate
// window is disabled so scenarios can replay events without waiting it out.
func newEnv(pool *pgxpool.Pool) *env {
	clk := clock.New()
	store := credentials.NewPostgresStore(pool)
	registry := hosts.NewPostgresRegistry(pool)
	validator := credentials.NewValidator(store, 5*time.Minute, clk)
	stats := registration.NewStats()

	return &env{
		pool:      pool,
		store:     store,
		registry:  registry,
		validator: validator,
		stats:     stats,
		pipeline: registration.NewPipeline(
			validator,
			ratelimit.NewLimiter(1000, clk),
			dedup.NewSuppressor(0, clk),
			registry,
			stats,
			clk,
		),
	}
}

func (e *env) issueCredential(t *testing.T, ownerID uuid.UUID) (string, uuid.UUID) {
	t.Helper()

	token, digest, err := credentials.GenerateToken()
	require.NoError(t, err)

	credID := uuid.New()
	require.NoError(t, e.store.Insert(context.Background(), credentials.Credential{
		ID:       credID,
		OwnerID:  ownerID,
		Digest:   digest,
		IsActive: true,
	}))
	return token, credID
}

func (e *env) forceOffline(t *testing.T, ownerID uuid.UUID, hostname string) {
	t.Helper()

	tag, err := e.pool.Exec(context.Background(),
		"UPDATE hosts SET status = 'offline' WHERE owner_id = $1 AND hostname = $2",
		pgtype.UUID{Bytes: ownerID, Valid: true}, hostname)
	require.NoError(t, err)
	require.EqualValues(t, 1, tag.RowsAffected())
}

func event(token, hostname, address string) registration.Event {
	return registration.Event{
		Hostname:      hostname,
		SourceAddress: address,
		ClaimedAt:     time.Now(),
		BearerToken:   token,
	}
}

func TestRegistrationLifecycle(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	e := newEnv(pool)

	ownerID := uuid.New()
	token, _ := e.issueCredential(t, ownerID)

	result := e.pipeline.Process(ctx, event(token, "fleet-node-1", "10.1.0.1"))
	require.IsType(t, registration.NewRegistration{}, result)

	result = e.pipeline.Process(ctx, event(token, "fleet-node-1", "10.1.0.1"))
	require.IsType(t, registration.HeartbeatUpdate{}, result)

	result = e.pipeline.Process(ctx, event(token, "fleet-node-1", "10.1.0.2"))
	changed, ok := result.(registration.IPChange)
	require.True(t, ok)
	assert.Equal(t, "10.1.0.1", changed.PreviousAddress)

	e.forceOffline(t, ownerID, "fleet-node-1")
	result = e.pipeline.Process(ctx, event(token, "fleet-node-1", "10.1.0.3"))
	reconn, ok := result.(registration.Reconnection)
	require.True(t, ok)
	assert.Equal(t, "10.1.0.2", reconn.PreviousAddress)

	host, err := e.registry.GetByOwnerAndHostname(ctx, ownerID, "fleet-node-1")
	require.NoError(t, err)
	assert.Equal(t, hosts.StatusOnline, host.Status)
	assert.Equal(t, "10.1.0.3", host.CurrentAddress.String())
	assert.True(t, host.LastSeenAt.After(host.FirstSeenAt) || host.LastSeenAt.Equal(host.FirstSeenAt))

	assert.Equal(t, int64(1), e.stats.NewRegistrations.Load())
	assert.Equal(t, int64(1), e.stats.Heartbeats.Load())
	assert.Equal(t, int64(2), e.stats.IPChanges.Load())
	assert.Equal(t, int64(1), e.stats.Reconnections.Load())
}

func TestCredentialRevocation(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	e := newEnv(pool)

	ownerID := uuid.New()
	token, credID := e.issueCredential(t, ownerID)

	identity, err := e.validator.Validate(ctx, token, "10.2.0.1")
	require.NoError(t, err)
	assert.Equal(t, ownerID, identity.OwnerID)

	revoked, err := e.store.Revoke(ctx, credID, time.Now())
	require.NoError(t, err)
	require.True(t, revoked)
	e.validator.Invalidate(token)

	_, err = e.validator.Validate(ctx, token, "10.2.0.1")
	assert.ErrorIs(t, err, credentials.ErrTokenInactive)

	result := e.pipeline.Process(ctx, event(token, "revoked-node", "10.2.0.1"))
	rejected, ok := result.(registration.InvalidToken)
	require.True(t, ok)
	assert.Equal(t, credentials.ReasonInactive, rejected.Reason)

	_, err = e.validator.Validate(ctx, "rk_never_issued", "10.2.0.1")
	assert.ErrorIs(t, err, credentials.ErrTokenNotFound)
}

func TestOwnerIsolation(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	e := newEnv(pool)

	ownerA := uuid.New()
	ownerB := uuid.New()
	tokenA, _ := e.issueCredential(t, ownerA)
	tokenB, _ := e.issueCredential(t, ownerB)

	result := e.pipeline.Process(ctx, event(tokenA, "shared-name", "10.3.0.1"))
	require.IsType(t, registration.NewRegistration{}, result)

	result = e.pipeline.Process(ctx, event(tokenB, "shared-name", "10.3.0.2"))
	require.IsType(t, registration.NewRegistration{}, result)

	hostA, err := e.registry.GetByOwnerAndHostname(ctx, ownerA, "shared-name")
	require.NoError(t, err)
	hostB, err := e.registry.GetByOwnerAndHostname(ctx, ownerB, "shared-name")
	require.NoError(t, err)

	assert.Equal(t, "10.3.0.1", hostA.CurrentAddress.String())
	assert.Equal(t, "10.3.0.2", hostB.CurrentAddress.String())
	assert.Equal(t, int64(0), e.stats.AuthorizationErrors.Load())
}
