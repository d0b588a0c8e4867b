package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/config"
)

// SnapshotPruner deletes expired listing snapshot rows. Satisfied by
// database.MarketRowRepository.
type SnapshotPruner interface {
	DeleteListingSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SignalPruner deletes stale signals. Satisfied by database.SignalRepository.
type SignalPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService prunes re-observed listing snapshots and stale signals on a
// timer. Transactions and rental contracts are facts, not observations, so
// they are never cleaned up.
type CleanupService struct {
	cfg       config.CleanupConfig
	snapshots SnapshotPruner
	signals   SignalPruner
	logger    *logrus.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewCleanupService(cfg config.CleanupConfig, snapshots SnapshotPruner, signals SignalPruner, logger *logrus.Logger) *CleanupService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CleanupService{
		cfg:       cfg,
		snapshots: snapshots,
		signals:   signals,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start runs an initial cleanup and then repeats on the configured interval
// until Stop is called.
func (c *CleanupService) Start() {
	interval := time.Duration(c.cfg.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	c.logger.WithFields(logrus.Fields{
		"listing_retention_days": c.cfg.ListingRetentionDays,
		"signal_retention_days":  c.cfg.SignalRetentionDays,
		"interval":               interval.String(),
	}).Info("Starting cleanup service")

	go func() {
		if err := c.runCleanup(c.ctx); err != nil {
			c.logger.WithError(err).Error("Initial cleanup failed")
		}
	}()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				if err := c.runCleanup(c.ctx); err != nil {
					c.logger.WithError(err).Error("Cleanup failed")
				}
			}
		}
	}()
}

// Stop halts the periodic cleanup.
func (c *CleanupService) Stop() {
	c.logger.Info("Stopping cleanup service")
	c.cancel()
}

// RunCleanup triggers one cleanup pass on demand.
func (c *CleanupService) RunCleanup(ctx context.Context) error {
	return c.runCleanup(ctx)
}

func (c *CleanupService) runCleanup(ctx context.Context) error {
	if c.cfg.ListingRetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -c.cfg.ListingRetentionDays)
		deleted, err := c.snapshots.DeleteListingSnapshotsBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to cleanup listing snapshots: %w", err)
		}
		if deleted > 0 {
			c.logger.WithField("deleted", deleted).Info("Pruned expired listing snapshots")
		}
	}

	if c.cfg.SignalRetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -c.cfg.SignalRetentionDays)
		deleted, err := c.signals.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to cleanup signals: %w", err)
		}
		if deleted > 0 {
			c.logger.WithField("deleted", deleted).Info("Pruned stale signals")
		}
	}

	return nil
}
