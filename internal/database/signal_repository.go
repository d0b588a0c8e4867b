package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// SignalRepository handles database operations for market signals.
type SignalRepository struct {
	pool DatabasePool
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(pool DatabasePool) *SignalRepository {
	return &SignalRepository{
		pool: pool,
	}
}

// SignalFilter narrows signal listings. Zero values mean "no filter".
type SignalFilter struct {
	GeoID      string
	Segment    string
	SignalType models.SignalType
	Since      *time.Time
	Limit      int
}

const upsertSignalQuery = `
	INSERT INTO market_signals (
		id, org_id, source_type, source, signal_type,
		geo_type, geo_id, geo_name, segment, metric, timeframe,
		current_value, prev_value, delta_pct, confidence_score,
		evidence, signal_key
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10, $11,
		$12, $13, $14, $15,
		$16, $17
	)
	ON CONFLICT (org_id, signal_key)
	DO UPDATE SET
		current_value = EXCLUDED.current_value,
		prev_value = EXCLUDED.prev_value,
		delta_pct = EXCLUDED.delta_pct,
		confidence_score = EXCLUDED.confidence_score,
		evidence = EXCLUDED.evidence
	RETURNING id, created_at
`

// Upsert writes a detected signal. Re-running detection over the same window
// hits the (org_id, signal_key) constraint and refreshes the measured values
// while keeping the original id. The stored id and creation time are written
// back onto the signal.
func (r *SignalRepository) Upsert(ctx context.Context, signal *models.MarketSignal) error {
	if signal.ID == "" {
		signal.ID = uuid.New().String()
	}

	err := r.pool.QueryRow(ctx, upsertSignalQuery,
		signal.ID, signal.OrgID, signal.SourceType, signal.Source, signal.SignalType,
		signal.GeoType, signal.GeoID, signal.GeoName, signal.Segment, signal.Metric, signal.Timeframe,
		signal.CurrentValue, signal.PrevValue, signal.DeltaPct, signal.ConfidenceScore,
		signal.Evidence, signal.SignalKey,
	).Scan(&signal.ID, &signal.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert signal %s: %w", signal.SignalKey, err)
	}

	return nil
}

const selectSignalColumns = `
	SELECT id, org_id, source_type, source, signal_type,
		geo_type, geo_id, geo_name, segment, metric, timeframe,
		current_value, prev_value, delta_pct, confidence_score,
		evidence, signal_key, created_at
	FROM market_signals
`

// GetByID fetches one signal scoped to an org. Returns nil when the signal
// does not exist.
func (r *SignalRepository) GetByID(ctx context.Context, orgID, signalID string) (*models.MarketSignal, error) {
	query := selectSignalColumns + `
	WHERE org_id = $1 AND id = $2
	`

	var signal models.MarketSignal
	err := r.pool.QueryRow(ctx, query, orgID, signalID).Scan(
		&signal.ID, &signal.OrgID, &signal.SourceType, &signal.Source, &signal.SignalType,
		&signal.GeoType, &signal.GeoID, &signal.GeoName, &signal.Segment, &signal.Metric, &signal.Timeframe,
		&signal.CurrentValue, &signal.PrevValue, &signal.DeltaPct, &signal.ConfidenceScore,
		&signal.Evidence, &signal.SignalKey, &signal.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}

	return &signal, nil
}

// List returns signals for an org, newest first, narrowed by the filter.
func (r *SignalRepository) List(ctx context.Context, orgID string, filter SignalFilter) ([]models.MarketSignal, error) {
	query := selectSignalColumns + `
	WHERE org_id = $1`
	args := []interface{}{orgID}

	if filter.GeoID != "" {
		args = append(args, filter.GeoID)
		query += fmt.Sprintf(" AND geo_id = $%d", len(args))
	}
	if filter.Segment != "" {
		args = append(args, filter.Segment)
		query += fmt.Sprintf(" AND segment = $%d", len(args))
	}
	if filter.SignalType != "" {
		args = append(args, filter.SignalType)
		query += fmt.Sprintf(" AND signal_type = $%d", len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer rows.Close()

	var signals []models.MarketSignal
	for rows.Next() {
		var signal models.MarketSignal
		err := rows.Scan(
			&signal.ID, &signal.OrgID, &signal.SourceType, &signal.Source, &signal.SignalType,
			&signal.GeoType, &signal.GeoID, &signal.GeoName, &signal.Segment, &signal.Metric, &signal.Timeframe,
			&signal.CurrentValue, &signal.PrevValue, &signal.DeltaPct, &signal.ConfidenceScore,
			&signal.Evidence, &signal.SignalKey, &signal.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, signal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}

	return signals, nil
}

// DeleteOlderThan removes signals created before the cutoff across all orgs.
func (r *SignalRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM market_signals
		WHERE created_at < $1
	`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired signals: %w", err)
	}

	return result.RowsAffected(), nil
}
