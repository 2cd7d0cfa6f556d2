// Package scheduler periodically re-checks every tracked dependency through the
// vulnerability cache and copies the results onto the stored records.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ortelius/pdvd-depscan/events"
	"github.com/ortelius/pdvd-depscan/internal/metrics"
	"github.com/ortelius/pdvd-depscan/model"
	"github.com/ortelius/pdvd-depscan/store"
	"github.com/ortelius/pdvd-depscan/vulncache"
)

// Querier is the vulnerability cache front the scanner reads through.
// Refresh must refetch expired entries before returning.
type Querier interface {
	Refresh(ctx context.Context, ids []model.Identity) ([]model.QueryResult, error)
	Cache() *vulncache.Cache
}

var _ Querier = (*vulncache.Orchestrator)(nil)

// Scanner runs dependency scans
type Scanner struct {
	store     store.Store
	querier   Querier
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewScanner creates a Scanner. publisher, m and logger may be nil.
func NewScanner(s store.Store, q Querier, publisher events.Publisher, m *metrics.Metrics, logger *zap.Logger) *Scanner {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{store: s, querier: q, publisher: publisher, metrics: m, logger: logger}
}

// ScanOnce queries every distinct tracked identity in one batch, refetching expired
// entries inline, and updates the matching records. Records take the freshest ready
// cache entry for their identity, so a refresh another caller finished during the
// call is not lost.
func (s *Scanner) ScanOnce(ctx context.Context) (model.ScanSummary, error) {
	var summary model.ScanSummary

	ids, err := s.store.DistinctIdentities(ctx)
	if err != nil {
		s.metrics.ScansCompleted.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("failed to list dependencies: %w", err)
	}
	if len(ids) == 0 {
		s.logger.Debug("No dependencies to scan")
		return summary, nil
	}

	results, err := s.querier.Refresh(ctx, ids)
	if err != nil {
		s.metrics.ScansCompleted.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("vulnerability query failed: %w", err)
	}

	outcomes := make([]model.DependencyOutcome, 0, len(ids))
	for i, id := range ids {
		result := results[i]
		if entry, ok := s.querier.Cache().Get(vulncache.DeriveKey(id)); ok && entry.Status == vulncache.StatusReady {
			result = entry.Data
		}

		vulnIDs := result.IDs()
		vulnerable := result.IsVulnerable()

		updated, err := s.store.UpdateDependencyVulnerability(ctx, id.Name, id.Version, vulnerable, vulnIDs)
		if err != nil {
			s.metrics.ScansCompleted.WithLabelValues("error").Inc()
			return summary, fmt.Errorf("failed to update %s: %w", id, err)
		}

		summary.Scanned++
		summary.Updated += updated
		outcome := model.DependencyOutcome{
			Name:             id.Name,
			Version:          id.Version,
			IsVulnerable:     vulnerable,
			VulnerabilityIDs: vulnIDs,
		}
		if vulnerable {
			summary.Vulnerable++
			outcome.Severity = vulncache.HighestSeverity(result.Vulns).String()
		}
		outcomes = append(outcomes, outcome)
	}

	s.metrics.ScansCompleted.WithLabelValues("ok").Inc()
	s.logger.Sugar().Infof("Scanned %d dependencies: %d vulnerable, %d records updated", summary.Scanned, summary.Vulnerable, summary.Updated)

	if err := s.publisher.PublishScanCompleted(ctx, summary, outcomes); err != nil {
		s.logger.Warn("Failed to publish scan event", zap.Error(err))
	}
	return summary, nil
}

// Run scans every interval until ctx ends. Failed scans are logged and retried on the next tick.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Sugar().Infof("Dependency scanner started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Dependency scanner stopped")
			return nil
		case <-ticker.C:
			if _, err := s.ScanOnce(ctx); err != nil {
				s.logger.Error("Dependency scan failed", zap.Error(err))
			}
		}
	}
}
