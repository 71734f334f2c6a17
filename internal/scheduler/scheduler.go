// Package scheduler keeps the rate cache warm so user requests rarely pay for a
// browser capture.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Armin-kho/price-snapshot-bot/internal/sources"
	"github.com/Armin-kho/price-snapshot-bot/internal/utils"
)

// Warmer is the cache being kept warm. *sources.Cache satisfies it.
type Warmer interface {
	Snapshot(ctx context.Context, force bool) (sources.RateSnapshot, error)
}

type Scheduler struct {
	cron   *cron.Cron
	warmer Warmer
	logger *slog.Logger
	now    func() time.Time

	quiet      bool
	quietStart int
	quietEnd   int
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Scheduler)

// WithQuietWindow skips warm-ups between start and end (minutes of the Tehran day).
func WithQuietWindow(start, end int) Option {
	return func(s *Scheduler) {
		s.quiet = true
		s.quietStart, s.quietEnd = start, end
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTimeout bounds one warm-up run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(w Warmer, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(utils.TehranLoc())),
		warmer:  w,
		logger:  slog.Default(),
		now:     time.Now,
		timeout: 90 * time.Second,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the warm-up job on schedule ("@every 1m", "*/5 * * * *", ...).
func (s *Scheduler) Register(schedule string) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(s.RunOnce))
	if _, err := s.cron.AddJob(schedule, job); err != nil {
		return fmt.Errorf("register warm-up %q: %w", schedule, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels a running warm-up and waits for it.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce performs one warm-up unless the quiet window is active.
func (s *Scheduler) RunOnce() {
	if s.quiet && utils.InWindow(utils.MinuteOfDay(s.now()), s.quietStart, s.quietEnd) {
		s.logger.Debug("warm-up skipped: quiet window")
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if _, err := s.warmer.Snapshot(ctx, false); err != nil {
		s.logger.Warn("warm-up failed", "err", err)
		return
	}
	s.logger.Debug("warm-up done", "took", time.Since(start))
}
