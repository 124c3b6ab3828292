package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"supplier-import-service/internal/repository"
)

const staleBatchLimit = 200

// StalePendingJob periodically flags queue items that have sat in PENDING
// past the configured age, so stale discoveries do not rot unreviewed.
type StalePendingJob struct {
	repo     repository.QueueRepositoryInterface
	logger   *logrus.Logger
	interval time.Duration
	maxAge   time.Duration
	stopCh   chan struct{}
}

// NewStalePendingJob creates a new stale pending job
func NewStalePendingJob(repo repository.QueueRepositoryInterface, logger *logrus.Logger, interval, maxAge time.Duration) *StalePendingJob {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if maxAge <= 0 {
		maxAge = 72 * time.Hour
	}
	return &StalePendingJob{
		repo:     repo,
		logger:   logger,
		interval: interval,
		maxAge:   maxAge,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic check
func (j *StalePendingJob) Start(ctx context.Context) {
	j.logger.Info("Stale pending job started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	j.runCheck(ctx)

	for {
		select {
		case <-ticker.C:
			j.runCheck(ctx)
		case <-j.stopCh:
			j.logger.Info("Stale pending job stopped")
			return
		case <-ctx.Done():
			j.logger.Info("Stale pending job context cancelled")
			return
		}
	}
}

// Stop signals the job to stop
func (j *StalePendingJob) Stop() {
	close(j.stopCh)
}

func (j *StalePendingJob) runCheck(ctx context.Context) {
	items, err := j.repo.ListStalePending(ctx, j.maxAge, staleBatchLimit)
	if err != nil {
		j.logger.Errorf("Failed to list stale pending items: %v", err)
		return
	}
	if len(items) == 0 {
		j.logger.Debug("No stale pending items")
		return
	}

	// Surface them for the review dashboard; the queue itself is the
	// source of truth, so a log line with ids is enough for alerting.
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID.String())
	}
	j.logger.WithFields(logrus.Fields{
		"count":  len(items),
		"maxAge": j.maxAge.String(),
		"ids":    ids,
	}).Warn("Queue items pending past review deadline")
}
