// Package testutil provides helpers for integration tests that need live
// Postgres and Redis instances. Tests call RequireEnv and skip cleanly
// when the backing stores are not configured.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aurelius/pulse/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 771204

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetTelemetrySchema drops and recreates the full schema for tests:
// the owned integration_events table plus the platform tables.
func ResetTelemetrySchema(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		"000002_platform_tables",
		"000001_integration_events",
	}
	for _, name := range migrations {
		if err := applyMigrationPair(ctx, pool, name); err != nil {
			return err
		}
	}
	return nil
}

func applyMigrationPair(ctx context.Context, pool *pgxpool.Pool, name string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downSQL, err := os.ReadFile(filepath.Join(root, "migrations", name+".down.sql"))
	if err != nil {
		return fmt.Errorf("read %s down migration: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply %s down migration: %w", name, err)
	}

	upSQL, err := os.ReadFile(filepath.Join(root, "migrations", name+".up.sql"))
	if err != nil {
		return fmt.Errorf("read %s up migration: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply %s up migration: %w", name, err)
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// UniqueID returns a prefixed identifier unique within the test run.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestEvent creates a success event with sensible defaults.
func NewTestEvent(t testing.TB, provider string) *model.IntegrationEvent {
	t.Helper()
	now := time.Now().UTC()
	return &model.IntegrationEvent{
		ID:            fmt.Sprintf("ev-%d", now.UnixNano()),
		EventID:       fmt.Sprintf("%d-0", now.UnixMilli()),
		UserID:        "test-user",
		IntegrationID: "test-integration",
		Provider:      provider,
		Action:        "api.test_call",
		Status:        model.StatusSuccess,
		DurationMS:    100,
		OccurredAt:    now,
	}
}

// NewTestErrorEvent creates an error event with the given message.
func NewTestErrorEvent(t testing.TB, provider, message string) *model.IntegrationEvent {
	t.Helper()
	ev := NewTestEvent(t, provider)
	ev.Status = model.StatusError
	ev.ErrorMessage = message
	return ev
}

// InsertIntegration inserts an integration row for tests.
func InsertIntegration(ctx context.Context, pool *pgxpool.Pool, integration *model.Integration) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO integrations (id, user_id, provider, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, integration.ID, integration.UserID, integration.Provider, integration.Status)
	return err
}

// NewTestIntegration creates a connected integration with defaults.
func NewTestIntegration(t testing.TB, userID, provider string) *model.Integration {
	t.Helper()
	return &model.Integration{
		ID:       fmt.Sprintf("int-%d", time.Now().UnixNano()),
		UserID:   userID,
		Provider: provider,
		Status:   "connected",
	}
}

// InsertSyncLog inserts a sync log row for tests.
func InsertSyncLog(ctx context.Context, pool *pgxpool.Pool, log *model.SyncLog) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO sync_logs (id, integration_id, sync_type, status,
			items_processed, errors, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, log.ID, log.IntegrationID, log.SyncType, log.Status,
		log.ItemsProcessed, log.Errors, log.StartedAt, log.CompletedAt)
	return err
}

// NewTestSyncLog creates a completed sync log with the given duration.
func NewTestSyncLog(t testing.TB, integrationID string, status string, duration time.Duration) *model.SyncLog {
	t.Helper()
	started := time.Now().UTC().Add(-time.Hour)
	completed := started.Add(duration)
	return &model.SyncLog{
		ID:             fmt.Sprintf("sync-%d", time.Now().UnixNano()),
		IntegrationID:  integrationID,
		SyncType:       "tasks",
		Status:         status,
		ItemsProcessed: 10,
		StartedAt:      started,
		CompletedAt:    &completed,
	}
}
