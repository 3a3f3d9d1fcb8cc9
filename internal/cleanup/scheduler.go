package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Intervals struct {
	Expiry time.Duration
	Purge  time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{Expiry: 15 * time.Minute, Purge: 6 * time.Hour}
}

type Scheduler struct {
	cleanup   *CleanupService
	intervals Intervals
	log       *zap.Logger
	stopCh    chan struct{}
}

func NewScheduler(cleanup *CleanupService, intervals Intervals, log *zap.Logger) *Scheduler {
	def := DefaultIntervals()
	if intervals.Expiry <= 0 {
		intervals.Expiry = def.Expiry
	}
	if intervals.Purge <= 0 {
		intervals.Purge = def.Purge
	}
	return &Scheduler{
		cleanup:   cleanup,
		intervals: intervals,
		log:       log,
		stopCh:    make(chan struct{}),
	}
}

// Start запускает планировщик задач
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("starting cleanup scheduler",
		zap.Duration("expiry_interval", s.intervals.Expiry),
		zap.Duration("purge_interval", s.intervals.Purge))

	go s.loop(ctx, "pending expiry", s.intervals.Expiry, true, s.cleanup.ExpireStalePending)
	go s.loop(ctx, "retention purge", s.intervals.Purge, false, s.cleanup.PurgeTerminalOrders)
}

// Stop останавливает планировщик
func (s *Scheduler) Stop() {
	s.log.Info("stopping cleanup scheduler")
	close(s.stopCh)
}

func (s *Scheduler) loop(ctx context.Context, name string, every time.Duration, runNow bool, job func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	// Выполняем сразу при старте
	if runNow {
		if err := job(ctx); err != nil {
			s.log.Error("initial "+name+" failed", zap.Error(err))
		}
	}

	for {
		select {
		case <-ticker.C:
			if err := job(ctx); err != nil {
				s.log.Error(name+" failed", zap.Error(err))
			}
		case <-s.stopCh:
			s.log.Info(name + " stopped")
			return
		case <-ctx.Done():
			s.log.Info(name + " cancelled")
			return
		}
	}
}

// RunOnceNow выполняет полную очистку немедленно
func (s *Scheduler) RunOnceNow(ctx context.Context) error {
	return s.cleanup.RunFullCleanup(ctx)
}
