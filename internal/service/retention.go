package service

import (
	"context"
	"time"

	"github.com/salonpos/access-service/internal/repository"
	"github.com/salonpos/access-service/internal/util/logger"
)

// RetentionSweeper prunes audit records past their configured age on a fixed
// interval. A zero retention disables it; the log then grows unbounded, which
// is an acceptable default for a single-door install.
type RetentionSweeper struct {
	attempts  repository.AccessAttemptRepository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stop      chan struct{}
	done      chan struct{}
}

func NewRetentionSweeper(attempts repository.AccessAttemptRepository, retention, interval time.Duration) *RetentionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionSweeper{
		attempts:  attempts,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *RetentionSweeper) Enabled() bool {
	return s.retention > 0
}

func (s *RetentionSweeper) Start() {
	if !s.Enabled() {
		close(s.done)
		return
	}
	go s.loop()
}

func (s *RetentionSweeper) Stop(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
}

func (s *RetentionSweeper) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-s.stop:
			return
		}
	}
}

// SweepOnce runs a single pruning pass. Exported so operators can trigger it
// out of band; the loop calls the same path.
func (s *RetentionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	return s.attempts.DeleteOlderThan(ctx, cutoff)
}

func (s *RetentionSweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := s.SweepOnce(ctx)
	if err != nil {
		logger.Error("Audit retention sweep failed: %v", err)
		return
	}
	if removed > 0 {
		logger.Info("Audit retention sweep removed %d attempts older than %s", removed, s.retention)
	}
}
