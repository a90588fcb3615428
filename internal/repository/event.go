package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aurelius/pulse/internal/model"
)

// ErrorMessageMaxLen caps grouped error messages for top-error reporting.
const ErrorMessageMaxLen = 100

// EventRepository provides database access for the durable event log.
type EventRepository struct {
	repo *Repository
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(repo *Repository) *EventRepository {
	return &EventRepository{repo: repo}
}

// BulkInsert appends a batch of events with idempotency via
// ON CONFLICT DO NOTHING on the ingest stream ID.
func (r *EventRepository) BulkInsert(ctx context.Context, events []*model.IntegrationEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO integration_events (
			id, event_id, user_id, integration_id, provider, action,
			status, duration_ms, error_message, items_processed,
			retry_after_seconds, metadata, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		var metadata []byte
		if len(event.Metadata.Extra) > 0 {
			metadata, _ = json.Marshal(event.Metadata.Extra)
		}
		batch.Queue(query,
			event.ID,
			event.EventID,
			nullableString(event.UserID),
			nullableString(event.IntegrationID),
			event.Provider,
			event.Action,
			string(event.Status),
			event.DurationMS,
			nullableString(event.ErrorMessage),
			event.Metadata.ItemsProcessed,
			event.Metadata.RetryAfterSeconds,
			metadata,
			event.OccurredAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert event %d: %w", i, err)
		}
	}

	return nil
}

// Append inserts a single event record.
func (r *EventRepository) Append(ctx context.Context, event *model.IntegrationEvent) error {
	return r.BulkInsert(ctx, []*model.IntegrationEvent{event})
}

// ProviderStats aggregates counters for one provider over [from, to).
func (r *EventRepository) ProviderStats(ctx context.Context, provider string, from, to time.Time) (model.CounterStats, error) {
	return r.windowStats(ctx, "provider = $3", provider, from, to)
}

// UserStats aggregates counters for one user over [from, to).
func (r *EventRepository) UserStats(ctx context.Context, userID string, from, to time.Time) (model.CounterStats, error) {
	return r.windowStats(ctx, "user_id = $3", userID, from, to)
}

// GlobalStats aggregates counters across all providers over [from, to).
func (r *EventRepository) GlobalStats(ctx context.Context, from, to time.Time) (model.CounterStats, error) {
	return r.windowStats(ctx, "", "", from, to)
}

func (r *EventRepository) windowStats(ctx context.Context, filter, filterArg string, from, to time.Time) (model.CounterStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'success'),
			COUNT(*) FILTER (WHERE status = 'error'),
			COUNT(*) FILTER (WHERE status = 'rate_limited'),
			COALESCE(SUM(duration_ms), 0)
		FROM integration_events
		WHERE occurred_at >= $1 AND occurred_at < $2
	`
	args := []any{from, to}
	if filter != "" {
		query += " AND " + filter
		args = append(args, filterArg)
	}

	var stats model.CounterStats
	err := r.repo.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Requests,
		&stats.Successes,
		&stats.Errors,
		&stats.RateLimited,
		&stats.TotalDurationMS,
	)
	if err != nil {
		return model.CounterStats{}, fmt.Errorf("query window stats: %w", err)
	}
	return stats, nil
}

// TopErrors groups truncated error messages by frequency since the given
// time, optionally filtered by provider. Ties are broken by first insertion
// so the ordering is stable across runs.
func (r *EventRepository) TopErrors(ctx context.Context, provider string, since time.Time, limit int) ([]model.TopError, error) {
	query := `
		SELECT LEFT(error_message, $1) AS message, COUNT(*) AS occurrences
		FROM integration_events
		WHERE status = 'error'
		  AND error_message IS NOT NULL
		  AND occurred_at >= $2
	`
	args := []any{ErrorMessageMaxLen, since}
	if provider != "" {
		query += " AND provider = $3"
		args = append(args, provider)
	}
	query += `
		GROUP BY message
		ORDER BY occurrences DESC, MIN(created_at) ASC
		LIMIT ` + fmt.Sprintf("$%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top errors: %w", err)
	}
	defer rows.Close()

	var errors []model.TopError
	for rows.Next() {
		var e model.TopError
		if err := rows.Scan(&e.Message, &e.Count); err != nil {
			return nil, fmt.Errorf("scan top error: %w", err)
		}
		errors = append(errors, e)
	}

	return errors, rows.Err()
}

// ListProviderEvents returns recent events for one provider, newest first.
// Used for audit views over windows the hot tier has already evicted.
func (r *EventRepository) ListProviderEvents(ctx context.Context, provider string, since time.Time, limit int) ([]*model.IntegrationEvent, error) {
	query := `
		SELECT id, event_id, COALESCE(user_id, ''), COALESCE(integration_id, ''),
			   provider, action, status, duration_ms, COALESCE(error_message, ''),
			   items_processed, retry_after_seconds, metadata, occurred_at, created_at
		FROM integration_events
		WHERE provider = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC
		LIMIT $3
	`

	rows, err := r.repo.pool.Query(ctx, query, provider, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query provider events: %w", err)
	}
	defer rows.Close()

	var events []*model.IntegrationEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// DeleteEventsBefore deletes at most limit records older than the cutoff and
// returns the number deleted. The id-subquery form deletes in bounded batches
// so retention sweeps never hold a long transaction that blocks appends.
func (r *EventRepository) DeleteEventsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM integration_events
		WHERE id IN (
			SELECT id FROM integration_events
			WHERE created_at < $1
			LIMIT $2
		)
	`

	tag, err := r.repo.pool.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("delete events before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// CountEvents returns the total number of durable records.
func (r *EventRepository) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := r.repo.pool.QueryRow(ctx, `SELECT COUNT(*) FROM integration_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// scanEvent scans one integration_events row.
func scanEvent(rows pgx.Rows) (*model.IntegrationEvent, error) {
	var event model.IntegrationEvent
	var status string
	var metadata []byte

	err := rows.Scan(
		&event.ID,
		&event.EventID,
		&event.UserID,
		&event.IntegrationID,
		&event.Provider,
		&event.Action,
		&status,
		&event.DurationMS,
		&event.ErrorMessage,
		&event.Metadata.ItemsProcessed,
		&event.Metadata.RetryAfterSeconds,
		&metadata,
		&event.OccurredAt,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.Status = model.EventStatus(status)
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &event.Metadata.Extra)
	}

	return &event, nil
}

// nullableString returns nil for empty strings.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
