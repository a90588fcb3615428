package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/aurelius/pulse/internal/model"
)

// SyncLogRepository provides read-only access to the platform's sync_logs
// table.
type SyncLogRepository struct {
	repo *Repository
}

// NewSyncLogRepository creates a new SyncLogRepository.
func NewSyncLogRepository(repo *Repository) *SyncLogRepository {
	return &SyncLogRepository{repo: repo}
}

// RecentSyncLogs returns the most recent sync passes for an integration,
// newest first. In-flight syncs (no completed_at) are included; callers
// exclude them from duration averages.
func (r *SyncLogRepository) RecentSyncLogs(ctx context.Context, integrationID string, limit int) ([]*model.SyncLog, error) {
	query := `
		SELECT id, integration_id, sync_type, status, items_processed,
			   errors, started_at, completed_at
		FROM sync_logs
		WHERE integration_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.repo.pool.Query(ctx, query, integrationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.SyncLog
	for rows.Next() {
		var log model.SyncLog
		if err := rows.Scan(
			&log.ID,
			&log.IntegrationID,
			&log.SyncType,
			&log.Status,
			&log.ItemsProcessed,
			pq.Array(&log.Errors),
			&log.StartedAt,
			&log.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}
