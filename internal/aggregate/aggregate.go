// Package aggregate assembles one prices.Snapshot from every category a caller asked for.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Armin-kho/price-snapshot-bot/internal/items"
	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/resolve"
	"github.com/Armin-kho/price-snapshot-bot/internal/sources"
)

// Resolver is a category chain. *resolve.Chain satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, ids []string) (resolve.Result, error)
}

// Recorder keeps an audit trail of produced snapshots. *db.DB satisfies it.
type Recorder interface {
	RecordSnapshot(ctx context.Context, s prices.Snapshot) error
}

type Aggregator struct {
	cryptoUSD   Resolver
	cryptoLocal Resolver
	goldSpot    Resolver
	silver      Resolver
	localFX     Resolver
	rates       resolve.RateSource
	recorder    Recorder
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Aggregator)

func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func New(r *resolve.Resolvers, rates resolve.RateSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		cryptoUSD:   r.CryptoUSD,
		cryptoLocal: r.CryptoLocal,
		goldSpot:    r.GoldSpot,
		silver:      r.Silver,
		localFX:     r.LocalFX,
		rates:       rates,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type job struct {
	category prices.Category
	run      func(ctx context.Context) (map[string]prices.Quote, error)
}

// GetAllPrices resolves every requested category concurrently. A category that fails
// is recorded in Snapshot.Failures; the call itself fails only when all of them did.
func (a *Aggregator) GetAllPrices(ctx context.Context, sel prices.Selection) (prices.Snapshot, error) {
	if sel.Empty() {
		return prices.Snapshot{}, prices.ErrEmptySelection
	}
	jobs := a.plan(sel)

	var (
		mu       sync.Mutex
		groups   = map[prices.Category]map[string]prices.Quote{}
		failures = map[prices.Category]error{}
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			quotes, err := j.run(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[j.category] = err
				a.logger.Warn("category failed", "category", string(j.category), "err", err)
				return nil
			}
			groups[j.category] = quotes
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return prices.Snapshot{}, err
	}

	snap := prices.Snapshot{
		ID:        uuid.NewString(),
		CreatedAt: a.now(),
		Groups:    groups,
		Failures:  failures,
	}
	if len(groups) == 0 {
		if len(failures) == 0 {
			return snap, prices.ErrNoData
		}
		return snap, fmt.Errorf("%w: %w", prices.ErrNoData, joinFailures(failures))
	}

	if a.recorder != nil {
		if err := a.recorder.RecordSnapshot(ctx, snap); err != nil {
			a.logger.Warn("record snapshot", "err", err)
		}
	}
	a.logger.Info("snapshot built", "id", snap.ID, "categories", len(groups), "failed", len(failures))
	return snap, nil
}

func (a *Aggregator) plan(sel prices.Selection) []job {
	var jobs []job
	chain := func(c prices.Category, r Resolver, ids []string) {
		if r == nil || len(ids) == 0 {
			return
		}
		jobs = append(jobs, job{category: c, run: func(ctx context.Context) (map[string]prices.Quote, error) {
			res, err := r.Resolve(ctx, ids)
			if err != nil {
				return nil, err
			}
			return res.Quotes, nil
		}})
	}

	chain(prices.CategoryCrypto, a.cryptoUSD, sel.Cryptos)
	if sel.CryptoLocal {
		chain(prices.CategoryCryptoLocal, a.cryptoLocal, sel.Cryptos)
	}
	if sel.Gold {
		chain(prices.CategoryGoldSpot, a.goldSpot, []string{prices.AssetGold})
	}
	if sel.Silver {
		chain(prices.CategorySilver, a.silver, []string{prices.AssetSilver})
	}
	if sel.LocalFX {
		chain(prices.CategoryLocalFX, a.localFX, []string{prices.AssetUSD})
	}

	if len(sel.Fiats) > 0 || len(sel.Coins) > 0 || len(sel.GoldWeights) > 0 {
		jobs = append(jobs, a.rateJobs(sel)...)
	}
	return jobs
}

// rateJobs serves fiat, coins and gold-by-weight from a single rate cache read.
func (a *Aggregator) rateJobs(sel prices.Selection) []job {
	var (
		once sync.Once
		snap sources.RateSnapshot
		err  error
	)
	load := func(ctx context.Context) (sources.RateSnapshot, error) {
		once.Do(func() {
			if a.rates == nil {
				err = errors.New("no rate source configured")
				return
			}
			snap, err = a.rates.Snapshot(ctx, false)
		})
		return snap, err
	}

	var jobs []job
	add := func(c prices.Category, ids []string, pick func(sources.RateSnapshot, string) (prices.Quote, bool)) {
		if len(ids) == 0 {
			return
		}
		jobs = append(jobs, job{category: c, run: func(ctx context.Context) (map[string]prices.Quote, error) {
			s, err := load(ctx)
			if err != nil {
				return nil, err
			}
			out := map[string]prices.Quote{}
			for _, id := range ids {
				if q, ok := pick(s, id); ok {
					out[id] = q
				}
			}
			if len(out) == 0 {
				return nil, fmt.Errorf("%s: %w", c, prices.ErrCategoryUnavailable)
			}
			return out, nil
		}})
	}

	add(prices.CategoryFiat, sel.Fiats, func(s sources.RateSnapshot, id string) (prices.Quote, bool) {
		p, ok := s.Currencies[id]
		return pairQuote(p), ok
	})
	add(prices.CategoryCoin, sel.Coins, func(s sources.RateSnapshot, id string) (prices.Quote, bool) {
		p, ok := s.Coins[id]
		return pairQuote(p), ok
	})
	add(prices.CategoryGoldWeight, sel.GoldWeights, func(s sources.RateSnapshot, id string) (prices.Quote, bool) {
		g, ok := s.Gold[id]
		if !ok || g.Price <= 0 {
			return prices.Quote{}, false
		}
		unit := g.Unit
		if unit == "" {
			unit = items.UnitToman
		}
		return prices.Quote{Price: g.Price, Unit: unit, Source: "bonbast"}, true
	})
	return jobs
}

func pairQuote(p sources.PairRate) prices.Quote {
	buy, sell := float64(p.Buy), float64(p.Sell)
	return prices.Quote{Price: sell, Buy: &buy, Sell: &sell, Unit: prices.UnitToman, Source: "bonbast"}
}

func joinFailures(failures map[prices.Category]error) error {
	cats := make([]string, 0, len(failures))
	for c := range failures {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	errs := make([]error, 0, len(cats))
	for _, c := range cats {
		errs = append(errs, failures[prices.Category(c)])
	}
	return errors.Join(errs...)
}
