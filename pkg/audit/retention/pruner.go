package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/relay/pkg/audit"
	"mercator-hq/relay/pkg/telemetry/metrics"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to keep audit records.
	// 0 keeps them forever.
	RetentionDays int

	// PruneSchedule is a cron expression for scheduled pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string
}

// RetentionError represents an error during retention enforcement.
type RetentionError struct {
	RetentionDays int
	Cause         error
}

// Error implements the error interface.
func (e *RetentionError) Error() string {
	return fmt.Sprintf("retention error [retention_days=%d]: %v", e.RetentionDays, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RetentionError) Unwrap() error {
	return e.Cause
}

// Pruner deletes audit records older than the retention period.
type Pruner struct {
	storage audit.Storage
	config  Config
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewPruner creates a new retention pruner. logger and collector may be nil.
func NewPruner(storage audit.Storage, cfg Config, logger *slog.Logger, collector *metrics.Collector) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		config:  cfg,
		logger:  logger.With("component", "audit.retention"),
		metrics: collector,
		now:     time.Now,
	}
}

// Cutoff returns the instant before which records are pruned.
func (p *Pruner) Cutoff() time.Time {
	return p.now().UTC().AddDate(0, 0, -p.config.RetentionDays)
}

// Prune deletes records recorded before Cutoff and returns how many were
// removed. It does nothing when RetentionDays is 0.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		p.logger.Debug("retention disabled, nothing pruned")
		return 0, nil
	}
	return p.PruneBefore(ctx, p.Cutoff())
}

// PruneBefore deletes records recorded before cutoff.
func (p *Pruner) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := p.storage.Delete(ctx, &audit.Query{Until: &cutoff})
	if err != nil {
		p.metrics.RecordAuditError("prune")
		return 0, &RetentionError{RetentionDays: p.config.RetentionDays, Cause: err}
	}
	p.metrics.RecordAuditPruned(deleted)

	if deleted > 0 {
		p.logger.Info("pruned audit records",
			"deleted_count", deleted,
			"cutoff_time", cutoff,
		)
	} else {
		p.logger.Debug("no audit records pruned", "cutoff_time", cutoff)
	}
	return deleted, nil
}
