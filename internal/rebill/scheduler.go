// Package rebill is the recurring-billing retry core: a timer-driven
// scanner that selects due subscribers and an executor that runs the
// retry-then-fallback attempt against the payment gateway.
package rebill

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/subflowhq/rebill/internal/clock"
	"github.com/subflowhq/rebill/internal/config"
	"github.com/subflowhq/rebill/internal/gateway"
	obsmetrics "github.com/subflowhq/rebill/internal/observability/metrics"
	paymentdomain "github.com/subflowhq/rebill/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    paymentdomain.Repository
	Gateway gateway.Adapter
	Plans   *config.PlanCatalogHolder
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  Config `optional:"true"`
}

// Scheduler owns the scan loop. It is constructed explicitly, started
// once by the hosting process and stopped by cancelling the run context;
// there is no hidden process-wide state.
type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	repo     paymentdomain.Repository
	executor *Executor
	genID    *snowflake.Node
	clock    clock.Clock

	notifyCh chan struct{}

	mu          sync.Mutex
	nextAllowed time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Repo == nil || p.Gateway == nil || p.Plans == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	log := p.Log.Named("scheduler").With(zap.String("component", "scheduler"))
	return &Scheduler{
		db:       p.DB,
		log:      log,
		cfg:      cfg,
		repo:     p.Repo,
		executor: NewExecutor(p.DB, log, p.Repo, p.Gateway, p.Plans, p.Clock, cfg.AttemptTimeout),
		genID:    p.GenID,
		clock:    p.Clock,
		notifyCh: make(chan struct{}, 1),
	}, nil
}

// RunForever drives scan passes at the configured interval and on
// debounced change notifications until ctx is cancelled. Overlap of the
// timer and the trigger is tolerated, not prevented: a duplicated pass
// re-attempts at most once per record and the record then leaves the due
// window (at-least-once semantics).
func (s *Scheduler) RunForever(ctx context.Context) {
	s.log.Info("rebill scheduler started",
		zap.Duration("scan_interval", s.cfg.ScanInterval),
		zap.Duration("lookback_window", s.cfg.LookbackWindow),
		zap.Int("batch_size", s.cfg.BatchSize),
	)
	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()
	schedMetrics := obsmetrics.Scheduler()
	nextRun := s.clock.Now().Add(s.cfg.ScanInterval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("rebill scheduler stopped")
			return
		case <-ticker.C:
			if lag := s.loopLag(nextRun); lag > 0 {
				schedMetrics.ObserveRunLoopLag(lag)
			}
			nextRun = s.clock.Now().Add(s.cfg.ScanInterval)
			s.RunOnce(ctx)
		case <-s.notifyCh:
			s.RunOnce(ctx)
		}
	}
}

// loopLag reports how far past the expected tick the loop woke, by the
// scheduler's own clock so the metric stays meaningful under a fake one.
func (s *Scheduler) loopLag(nextRun time.Time) time.Duration {
	return s.clock.Now().Sub(nextRun)
}

// RunOnce executes a single scan pass with job accounting. Errors are
// logged and counted; the loop never dies on them.
func (s *Scheduler) RunOnce(ctx context.Context) {
	const job = "scan_due_rebills"
	run := s.newJobRun(job, s.cfg.BatchSize)
	s.logJobStart(run)

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(job)
	start := time.Now()

	processed, err := s.Scan(ctx)
	run.AddProcessed(processed)
	schedMetrics.ObserveJobDuration(job, time.Since(start))
	schedMetrics.AddBatchProcessed(job, processed)
	if err != nil {
		run.IncError()
		schedMetrics.IncJobError(job)
		s.log.Warn("scan pass finished with errors",
			zap.String("run_id", run.runID),
			zap.Error(err),
		)
	}
	s.logJobFinish(run)
}

// RunBackfill assigns first schedules to legacy records. Invoked once at
// process start, before the loop begins.
func (s *Scheduler) RunBackfill(ctx context.Context) error {
	const job = "backfill_schedule"
	run := s.newJobRun(job, s.cfg.BackfillBatchSize)
	s.logJobStart(run)

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(job)
	start := time.Now()

	processed, err := s.Backfill(ctx)
	run.AddProcessed(processed)
	schedMetrics.ObserveJobDuration(job, time.Since(start))
	schedMetrics.AddBatchProcessed(job, processed)
	if err != nil {
		run.IncError()
		schedMetrics.IncJobError(job)
	}
	s.logJobFinish(run)
	return err
}

// NotifyDBChanged requests an out-of-band scan pass after a new record
// was persisted. Safe to call frequently: bursts inside the debounce
// window collapse into a single pass.
func (s *Scheduler) NotifyDBChanged() {
	s.mu.Lock()
	now := s.clock.Now()
	if now.Before(s.nextAllowed) {
		s.mu.Unlock()
		return
	}
	s.nextAllowed = now.Add(s.cfg.DebounceWindow)
	s.mu.Unlock()

	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}
