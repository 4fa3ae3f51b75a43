// Scheduler Service
// Drives periodic tree synchronization for every enabled network
package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSyncTimeout = 5 * time.Minute

// SchedulerService polls each network's synchronizer on a fixed interval.
// Polls are gated by NeedsSync so an idle chain costs one head query, and a
// run still in flight is simply skipped until the next tick.
type SchedulerService struct {
	synchronizers map[string]*TreeSyncService
	interval      time.Duration
	stopChan      chan struct{}
	log           *logrus.Entry
}

// NewSchedulerService creates a new SchedulerService instance
func NewSchedulerService(synchronizers map[string]*TreeSyncService, interval time.Duration) *SchedulerService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SchedulerService{
		synchronizers: synchronizers,
		interval:      interval,
		stopChan:      make(chan struct{}),
		log:           logrus.WithField("component", "scheduler"),
	}
}

// Start launches the poll loop. An initial sync runs immediately so the tree
// is usable before the first tick.
func (s *SchedulerService) Start() {
	s.log.WithFields(logrus.Fields{
		"interval": s.interval,
		"networks": len(s.synchronizers),
	}).Info("Scheduler starting")
	go s.runSyncLoop()
}

// Stop halts the poll loop. An in-flight sync run completes and persists; it
// is not interrupted mid-window.
func (s *SchedulerService) Stop() {
	close(s.stopChan)
	s.log.Info("Scheduler stopped")
}

func (s *SchedulerService) runSyncLoop() {
	s.syncAll()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.syncAll()
		case <-s.stopChan:
			return
		}
	}
}

// syncAll runs one gated pass over every network. Errors are logged, never
// propagated; a transient RPC failure must not stop the loop.
func (s *SchedulerService) syncAll() {
	for name, sync := range s.synchronizers {
		ctx, cancel := context.WithTimeout(context.Background(), defaultSyncTimeout)

		needed, err := sync.NeedsSync(ctx)
		if err != nil {
			s.log.WithError(err).WithField("network", name).Warn("Head check failed, skipping this tick")
			cancel()
			continue
		}
		if !needed {
			cancel()
			continue
		}

		if _, err := sync.Sync(ctx); err != nil {
			if errors.Is(err, ErrSyncInProgress) {
				s.log.WithField("network", name).Debug("Sync still running, skipping this tick")
			} else {
				s.log.WithError(err).WithField("network", name).Warn("Scheduled sync failed")
			}
		}
		cancel()
	}
}

// ManualSync triggers an immediate pass outside the schedule.
func (s *SchedulerService) ManualSync(ctx context.Context, network string) error {
	sync, ok := s.synchronizers[network]
	if !ok {
		return errors.New("services: unknown network " + network)
	}
	_, err := sync.Sync(ctx)
	return err
}
