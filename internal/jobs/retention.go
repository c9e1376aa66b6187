package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/metrics"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/storage"
)

// RetentionConfig configures how long run history and artifacts are kept.
// A zero day count keeps that kind forever.
type RetentionConfig struct {
	Interval     time.Duration // How often to prune
	HistoryDays  int           // Age of history rows to delete
	ArtifactDays int           // Age of screenshots and result documents to delete
	Enabled      bool
}

// DefaultRetentionConfig returns the default retention configuration
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Interval:     24 * time.Hour,
		HistoryDays:  90,
		ArtifactDays: 30,
		Enabled:      true,
	}
}

// HistoryPruner deletes run history that finished before cutoff
type HistoryPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Report counts what one retention pass removed
type Report struct {
	History   int
	Artifacts int
}

// PruneArtifacts deletes stored run artifacts last modified before cutoff.
// Keys that vanish while pruning are skipped.
func PruneArtifacts(ctx context.Context, store storage.Storage, cutoff time.Time) (int, error) {
	keys, err := store.List(ctx, storage.RunsPrefix)
	if err != nil {
		return 0, fmt.Errorf("list artifacts: %w", err)
	}

	deleted := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		info, err := store.GetInfo(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return deleted, fmt.Errorf("stat artifact %s: %w", key, err)
		}
		if !info.ModifiedAt.Before(cutoff) {
			continue
		}

		if err := store.Delete(ctx, key); err != nil {
			return deleted, fmt.Errorf("delete artifact %s: %w", key, err)
		}
		deleted++
	}
	return deleted, nil
}

// RetentionManager periodically prunes run history and artifacts
type RetentionManager struct {
	config    RetentionConfig
	history   HistoryPruner
	artifacts storage.Storage
	logger    *zerolog.Logger
	now       func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetentionManager creates a retention manager. Either backend may be nil
// when it is not configured.
func NewRetentionManager(config RetentionConfig, history HistoryPruner, artifacts storage.Storage, logger *zerolog.Logger) *RetentionManager {
	if config.Interval <= 0 {
		config.Interval = DefaultRetentionConfig().Interval
	}
	if logger == nil {
		nopLogger := zerolog.Nop()
		logger = &nopLogger
	}
	return &RetentionManager{
		config:    config,
		history:   history,
		artifacts: artifacts,
		logger:    logger,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start prunes once and then every Interval until ctx is done or Stop is called
func (m *RetentionManager) Start(ctx context.Context) {
	if !m.config.Enabled {
		m.logger.Info().Msg("Retention jobs are disabled, not starting")
		close(m.done)
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)

	m.logger.Info().
		Dur("interval", m.config.Interval).
		Int("history_days", m.config.HistoryDays).
		Int("artifact_days", m.config.ArtifactDays).
		Msg("Starting retention manager")

	go m.run(ctx)
}

// Stop cancels the loop and waits briefly for an in-flight pass
func (m *RetentionManager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}

	select {
	case <-m.done:
		m.logger.Debug().Msg("Retention manager stopped")
	case <-time.After(5 * time.Second):
		m.logger.Warn().Msg("Retention job did not stop gracefully")
	}
}

func (m *RetentionManager) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.prune(ctx)
		}
	}
}

func (m *RetentionManager) prune(ctx context.Context) {
	start := m.now()
	report, err := m.RunOnce(ctx)
	if err != nil && ctx.Err() == nil {
		m.logger.Error().Err(err).Msg("Retention pass failed")
	}

	if report.History > 0 || report.Artifacts > 0 {
		m.logger.Info().
			Int("history_deleted", report.History).
			Int("artifacts_deleted", report.Artifacts).
			Dur("duration", m.now().Sub(start)).
			Msg("Pruned expired run data")
	}
}

// RunOnce performs a single retention pass. A failure in one kind does not
// stop the other.
func (m *RetentionManager) RunOnce(ctx context.Context) (Report, error) {
	var (
		report Report
		errs   []error
	)
	now := m.now()

	if m.history != nil && m.config.HistoryDays > 0 {
		n, err := m.history.DeleteBefore(ctx, now.AddDate(0, 0, -m.config.HistoryDays))
		if err != nil {
			errs = append(errs, fmt.Errorf("prune history: %w", err))
		}
		report.History = int(n)
		metrics.RecordPruned("history", report.History)
	}

	if m.artifacts != nil && m.config.ArtifactDays > 0 {
		n, err := PruneArtifacts(ctx, m.artifacts, now.AddDate(0, 0, -m.config.ArtifactDays))
		if err != nil {
			errs = append(errs, fmt.Errorf("prune artifacts: %w", err))
		}
		report.Artifacts = n
		metrics.RecordPruned("artifacts", n)
	}

	return report, errors.Join(errs...)
}
