// Package resolve turns an ordered list of price sources into one answer per category.
// A Chain tries its stages in priority order and stops at the first one that yields
// at least one valid quote; when all of them fail it falls back to the last stored
// values and finally to per-asset estimates.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Armin-kho/price-snapshot-bot/internal/metrics"
	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
)

const defaultStageTimeout = 10 * time.Second

// Source names reported for terminal fallbacks.
const (
	SourceStore    = "store"
	SourceEstimate = "estimate"
)

var errNoValidQuotes = errors.New("no valid quotes")

// Stage is one price source inside a chain.
type Stage interface {
	Name() string
	Fetch(ctx context.Context, ids []string) (map[string]prices.Quote, error)
}

type stageFunc struct {
	name   string
	budget time.Duration
	fn     func(ctx context.Context, ids []string) (map[string]prices.Quote, error)
}

func (s stageFunc) Name() string { return s.name }

// Budget overrides the chain's stage timeout when positive.
func (s stageFunc) Budget() time.Duration { return s.budget }

func (s stageFunc) Fetch(ctx context.Context, ids []string) (map[string]prices.Quote, error) {
	return s.fn(ctx, ids)
}

// NewStage adapts a function to Stage.
func NewStage(name string, fn func(ctx context.Context, ids []string) (map[string]prices.Quote, error)) Stage {
	return stageFunc{name: name, fn: fn}
}

// NewBudgetedStage is NewStage with a time budget of its own, for stages that run
// other chains.
func NewBudgetedStage(name string, budget time.Duration, fn func(ctx context.Context, ids []string) (map[string]prices.Quote, error)) Stage {
	return stageFunc{name: name, budget: budget, fn: fn}
}

// Store persists last-known-good quotes. *db.DB satisfies it.
type Store interface {
	SaveLastValues(ctx context.Context, category prices.Category, quotes map[string]prices.Quote, at time.Time) error
	LoadLastValues(ctx context.Context, category prices.Category, ids []string) (map[string]prices.Quote, error)
}

// Estimator returns flagged placeholder quotes for ids it knows.
type Estimator func(ctx context.Context, ids []string) map[string]prices.Quote

type StageFailure struct {
	Stage string
	Err   error
}

// Result is the outcome of one chain run.
type Result struct {
	Category prices.Category
	Quotes   map[string]prices.Quote
	// Source is the winning stage name, SourceStore or SourceEstimate.
	Source   string
	Failures []StageFailure
}

// Live reports whether the quotes came from an upstream stage.
func (r Result) Live() bool {
	return r.Source != SourceStore && r.Source != SourceEstimate && r.Source != ""
}

type Chain struct {
	category prices.Category
	stages   []Stage
	timeout  time.Duration
	estimate Estimator
	store    Store
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Chain)

func WithStageTimeout(d time.Duration) Option {
	return func(c *Chain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithStore(s Store) Option {
	return func(c *Chain) { c.store = s }
}

func WithEstimator(e Estimator) Option {
	return func(c *Chain) { c.estimate = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Chain) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		if now != nil {
			c.now = now
		}
	}
}

func NewChain(category prices.Category, stages []Stage, opts ...Option) *Chain {
	c := &Chain{
		category: category,
		stages:   stages,
		timeout:  defaultStageTimeout,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("category", string(category))
	return c
}

func (c *Chain) Category() prices.Category { return c.category }

// Budget is the longest a Resolve can spend on its stages.
func (c *Chain) Budget() time.Duration {
	var total time.Duration
	for _, s := range c.stages {
		total += c.stageTimeout(s)
	}
	return total
}

func (c *Chain) stageTimeout(s Stage) time.Duration {
	if b, ok := s.(interface{ Budget() time.Duration }); ok && b.Budget() > 0 {
		return b.Budget()
	}
	return c.timeout
}

// Resolve runs the chain for ids. Stage failures never escape; they are returned in
// Result.Failures. The error is non-nil only when the caller's ctx ended or when no
// stage, stored value or estimate produced anything (prices.ErrCategoryUnavailable).
func (c *Chain) Resolve(ctx context.Context, ids []string) (Result, error) {
	res := Result{Category: c.category}
	if len(ids) == 0 {
		return res, fmt.Errorf("%s: %w", c.category, prices.ErrEmptySelection)
	}

	for _, stage := range c.stages {
		quotes, err := c.runStage(ctx, stage, ids)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failures = append(res.Failures, StageFailure{Stage: stage.Name(), Err: err})
			c.metrics.StageFailed(string(c.category), stage.Name())
			c.logger.Warn("stage failed", "stage", stage.Name(), "err", err)
			continue
		}

		res.Quotes, res.Source = quotes, stage.Name()
		c.metrics.Resolved(string(c.category), stage.Name())
		c.save(ctx, quotes)
		if len(quotes) < len(ids) {
			c.logger.Debug("partial resolution", "stage", stage.Name(), "got", len(quotes), "want", len(ids))
		}
		return res, nil
	}

	return c.terminal(ctx, ids, res)
}

func (c *Chain) runStage(ctx context.Context, stage Stage, ids []string) (map[string]prices.Quote, error) {
	sctx, cancel := context.WithTimeout(ctx, c.stageTimeout(stage))
	defer cancel()

	quotes, err := stage.Fetch(sctx, ids)
	if err != nil {
		return nil, err
	}
	quotes = Normalize(quotes, ids)
	if len(quotes) == 0 {
		return nil, errNoValidQuotes
	}
	return quotes, nil
}

func (c *Chain) terminal(ctx context.Context, ids []string, res Result) (Result, error) {
	quotes := map[string]prices.Quote{}
	if c.store != nil {
		stored, err := c.store.LoadLastValues(ctx, c.category, ids)
		if err != nil {
			c.logger.Error("load last values", "err", err)
		}
		for id, q := range Normalize(stored, ids) {
			q.Stale = true
			q.Change24h, q.Change7d = nil, nil
			quotes[id] = q
		}
		if len(quotes) > 0 {
			res.Source = SourceStore
		}
	}

	if c.estimate != nil {
		var missing []string
		for _, id := range ids {
			if _, ok := quotes[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			est := Normalize(c.estimate(ctx, missing), missing)
			for id, q := range est {
				q.Estimated = true
				q.Source = SourceEstimate
				q.Change24h, q.Change7d = nil, nil
				quotes[id] = q
			}
			if len(est) > 0 && res.Source == "" {
				res.Source = SourceEstimate
			}
		}
	}

	if len(quotes) == 0 {
		errs := make([]error, 0, len(res.Failures)+1)
		errs = append(errs, prices.ErrCategoryUnavailable)
		for _, f := range res.Failures {
			errs = append(errs, fmt.Errorf("%s: %w", f.Stage, f.Err))
		}
		return res, fmt.Errorf("%s: %w", c.category, errors.Join(errs...))
	}

	c.metrics.Resolved(string(c.category), res.Source)
	c.logger.Warn("serving fallback values", "source", res.Source, "assets", len(quotes), "failed_stages", len(res.Failures))
	res.Quotes = quotes
	return res, nil
}

func (c *Chain) save(ctx context.Context, quotes map[string]prices.Quote) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveLastValues(ctx, c.category, quotes, c.now()); err != nil {
		c.logger.Warn("save last values", "err", err)
	}
}

// Normalize keeps the requested ids whose price is finite and positive and converts
// rial quotes to toman.
func Normalize(quotes map[string]prices.Quote, ids []string) map[string]prices.Quote {
	out := make(map[string]prices.Quote, len(ids))
	for _, id := range ids {
		q, ok := quotes[id]
		if !ok || !valid(q.Price) {
			continue
		}
		if q.Unit == prices.UnitRial {
			q.Price = toToman(q.Price)
			q.Buy = toTomanPtr(q.Buy)
			q.Sell = toTomanPtr(q.Sell)
			q.Unit = prices.UnitToman
		}
		out[id] = q
	}
	return out
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

var subunit = decimal.NewFromInt(prices.SubunitFactor)

func toToman(rial float64) float64 {
	f, _ := decimal.NewFromFloat(rial).Div(subunit).Float64()
	return f
}

func toTomanPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return prices.Float(toToman(*v))
}
