package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// InvestorRepository handles database operations for investors and their
// exposure facts.
type InvestorRepository struct {
	pool DatabasePool
}

// NewInvestorRepository creates a new investor repository.
func NewInvestorRepository(pool DatabasePool) *InvestorRepository {
	return &InvestorRepository{
		pool: pool,
	}
}

// Upsert writes an investor and their mandate, keyed by id. The mandate is
// stored as jsonb so mandate shape changes do not require schema changes.
func (r *InvestorRepository) Upsert(ctx context.Context, investor *models.Investor) error {
	if investor.ID == "" {
		investor.ID = uuid.New().String()
	}

	query := `
		INSERT INTO investors (id, org_id, name, mandate, telegram_chat_id, alerts_enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			mandate = EXCLUDED.mandate,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			alerts_enabled = EXCLUDED.alerts_enabled,
			updated_at = CURRENT_TIMESTAMP
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		investor.ID, investor.OrgID, investor.Name, investor.Mandate,
		investor.TelegramChatID, investor.AlertsEnabled,
	).Scan(&investor.CreatedAt, &investor.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert investor %s: %w", investor.ID, err)
	}

	return nil
}

// ListByOrg returns all investors of an org. The relevance engine scores
// every one of them against each signal.
func (r *InvestorRepository) ListByOrg(ctx context.Context, orgID string) ([]models.Investor, error) {
	query := `
		SELECT id, org_id, name, mandate, telegram_chat_id, alerts_enabled, created_at, updated_at
		FROM investors
		WHERE org_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list investors: %w", err)
	}
	defer rows.Close()

	var investors []models.Investor
	for rows.Next() {
		var investor models.Investor
		err := rows.Scan(
			&investor.ID, &investor.OrgID, &investor.Name, &investor.Mandate,
			&investor.TelegramChatID, &investor.AlertsEnabled,
			&investor.CreatedAt, &investor.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investor: %w", err)
		}
		investors = append(investors, investor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investors: %w", err)
	}

	return investors, nil
}

// GetExposure looks up whether an investor already holds property in a geo.
// A missing row means no recorded exposure, not an error; the scoring engine
// treats both the same way.
func (r *InvestorRepository) GetExposure(ctx context.Context, investorID, geoID string) (*models.ExposureFact, error) {
	query := `
		SELECT investor_id, geo_id, has_exposure, details
		FROM exposure_facts
		WHERE investor_id = $1 AND geo_id = $2
	`

	var fact models.ExposureFact
	err := r.pool.QueryRow(ctx, query, investorID, geoID).Scan(
		&fact.InvestorID, &fact.GeoID, &fact.HasExposure, &fact.Details,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.ExposureFact{InvestorID: investorID, GeoID: geoID, HasExposure: false}, nil
		}
		return nil, fmt.Errorf("failed to get exposure fact: %w", err)
	}

	return &fact, nil
}
