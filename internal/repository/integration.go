package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aurelius/pulse/internal/model"
)

// ErrIntegrationNotFound indicates the integration does not exist.
var ErrIntegrationNotFound = errors.New("integration not found")

// IntegrationRepository provides read-only access to the platform's
// integrations table.
type IntegrationRepository struct {
	repo *Repository
}

// NewIntegrationRepository creates a new IntegrationRepository.
func NewIntegrationRepository(repo *Repository) *IntegrationRepository {
	return &IntegrationRepository{repo: repo}
}

// GetIntegration resolves an integration by ID, primarily to map an
// integration to its provider for per-user metrics.
func (r *IntegrationRepository) GetIntegration(ctx context.Context, id string) (*model.Integration, error) {
	query := `
		SELECT id, user_id, provider, status, created_at
		FROM integrations
		WHERE id = $1
	`

	var integration model.Integration
	err := r.repo.pool.QueryRow(ctx, query, id).Scan(
		&integration.ID,
		&integration.UserID,
		&integration.Provider,
		&integration.Status,
		&integration.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("query integration: %w", err)
	}

	return &integration, nil
}

// CountIntegrations returns total and connected integration counts.
func (r *IntegrationRepository) CountIntegrations(ctx context.Context) (total, active int64, err error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'connected')
		FROM integrations
	`
	if err := r.repo.pool.QueryRow(ctx, query).Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("count integrations: %w", err)
	}
	return total, active, nil
}

// CountConnectedUsers returns the number of distinct users with at least one
// integration.
func (r *IntegrationRepository) CountConnectedUsers(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(DISTINCT user_id) FROM integrations`
	if err := r.repo.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count connected users: %w", err)
	}
	return count, nil
}

// ListProviders returns the distinct providers with at least one
// integration, used to fan out per-provider health scoring.
func (r *IntegrationRepository) ListProviders(ctx context.Context) ([]string, error) {
	rows, err := r.repo.pool.Query(ctx, `SELECT DISTINCT provider FROM integrations ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}

	return providers, rows.Err()
}
