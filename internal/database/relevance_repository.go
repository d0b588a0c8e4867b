package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// RelevanceRepository handles database operations for relevance targets.
type RelevanceRepository struct {
	pool DatabasePool
}

// NewRelevanceRepository creates a new relevance repository.
func NewRelevanceRepository(pool DatabasePool) *RelevanceRepository {
	return &RelevanceRepository{
		pool: pool,
	}
}

const upsertRelevanceQuery = `
	INSERT INTO relevance_targets (
		id, org_id, signal_id, investor_id,
		relevance_score, matched_dimensions, reason_payload
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (org_id, signal_id, investor_id)
	DO UPDATE SET
		relevance_score = EXCLUDED.relevance_score,
		matched_dimensions = EXCLUDED.matched_dimensions,
		reason_payload = EXCLUDED.reason_payload
	RETURNING id, created_at
`

// Upsert writes a relevance target. Rescoring the same signal updates the
// (org_id, signal_id, investor_id) row in place rather than stacking
// duplicates; the stored id and creation time are written back.
func (r *RelevanceRepository) Upsert(ctx context.Context, target *models.RelevanceTarget) error {
	if target.ID == "" {
		target.ID = uuid.New().String()
	}

	err := r.pool.QueryRow(ctx, upsertRelevanceQuery,
		target.ID, target.OrgID, target.SignalID, target.InvestorID,
		target.RelevanceScore, target.MatchedDimensions, target.ReasonPayload,
	).Scan(&target.ID, &target.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert relevance target for investor %s: %w", target.InvestorID, err)
	}

	return nil
}

const selectRelevanceColumns = `
	SELECT id, org_id, signal_id, investor_id,
		relevance_score, matched_dimensions, reason_payload, created_at
	FROM relevance_targets
`

// ListBySignal returns the targets of one signal, strongest match first.
func (r *RelevanceRepository) ListBySignal(ctx context.Context, orgID, signalID string) ([]models.RelevanceTarget, error) {
	query := selectRelevanceColumns + `
	WHERE org_id = $1 AND signal_id = $2
	ORDER BY relevance_score DESC
	`

	rows, err := r.pool.Query(ctx, query, orgID, signalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relevance targets: %w", err)
	}
	defer rows.Close()

	return scanRelevanceTargets(rows)
}

// List returns recent targets for an org, optionally narrowed to a single
// investor.
func (r *RelevanceRepository) List(ctx context.Context, orgID, investorID string, limit int) ([]models.RelevanceTarget, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		query string
		args  []interface{}
	)
	if investorID == "" {
		query = selectRelevanceColumns + `
	WHERE org_id = $1
	ORDER BY created_at DESC, relevance_score DESC
	LIMIT $2
	`
		args = []interface{}{orgID, limit}
	} else {
		query = selectRelevanceColumns + `
	WHERE org_id = $1 AND investor_id = $2
	ORDER BY created_at DESC, relevance_score DESC
	LIMIT $3
	`
		args = []interface{}{orgID, investorID, limit}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list relevance targets: %w", err)
	}
	defer rows.Close()

	return scanRelevanceTargets(rows)
}

type relevanceRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRelevanceTargets(rows relevanceRows) ([]models.RelevanceTarget, error) {
	var targets []models.RelevanceTarget
	for rows.Next() {
		var target models.RelevanceTarget
		err := rows.Scan(
			&target.ID, &target.OrgID, &target.SignalID, &target.InvestorID,
			&target.RelevanceScore, &target.MatchedDimensions, &target.ReasonPayload,
			&target.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relevance target: %w", err)
		}
		targets = append(targets, target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relevance targets: %w", err)
	}

	return targets, nil
}
