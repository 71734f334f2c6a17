package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Armin-kho/price-snapshot-bot/internal/aggregate"
	"github.com/Armin-kho/price-snapshot-bot/internal/bot"
	"github.com/Armin-kho/price-snapshot-bot/internal/config"
	"github.com/Armin-kho/price-snapshot-bot/internal/db"
	"github.com/Armin-kho/price-snapshot-bot/internal/httpx"
	"github.com/Armin-kho/price-snapshot-bot/internal/logging"
	"github.com/Armin-kho/price-snapshot-bot/internal/metrics"
	"github.com/Armin-kho/price-snapshot-bot/internal/providers"
	"github.com/Armin-kho/price-snapshot-bot/internal/render"
	"github.com/Armin-kho/price-snapshot-bot/internal/resolve"
	"github.com/Armin-kho/price-snapshot-bot/internal/scheduler"
	"github.com/Armin-kho/price-snapshot-bot/internal/sources"
)

func main() {
	cfgPath := flag.String("config", config.DefaultConfigPath(), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, logCloser := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run", "err", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	database, err := db.Open(filepath.Join(cfg.DataDir, "prices.db"))
	if err != nil {
		return err
	}
	defer database.Close()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, m)
		go func() {
			logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Rate source: browser token capture, authenticated fetch, TTL cache.
	capturer := sources.NewBrowserCapturer(
		sources.WithCaptureURL(cfg.Bonbast.BaseURL),
		sources.WithCaptureUserAgent(cfg.Bonbast.UserAgent),
		sources.WithChromePath(cfg.Bonbast.ChromePath),
		sources.WithCaptureTimeout(cfg.CaptureTimeout()),
		sources.WithCaptureLogger(logger),
		sources.WithCaptureMetrics(m),
	)
	fetcher := sources.NewBonbastClient(
		sources.WithBaseURL(cfg.Bonbast.BaseURL),
		sources.WithUserAgent(cfg.Bonbast.UserAgent),
		sources.WithFetchTimeout(cfg.FetchTimeout()),
	)
	cache := sources.NewCache(capturer, fetcher,
		sources.WithTTL(cfg.CacheTTL()),
		sources.WithRefreshBudget(cfg.CaptureTimeout()+cfg.FetchTimeout()),
		sources.WithCacheLogger(logger),
		sources.WithCacheMetrics(m),
	)

	hc := httpx.New(cfg.ProviderTimeout())
	resolvers := resolve.New(resolve.Deps{
		CoinGecko: providers.NewCoinGecko(cfg.Providers.CoinGeckoAPIKey,
			providers.WithBaseURL(cfg.Providers.CoinGeckoURL), providers.WithHTTPClient(hc)),
		Nobitex: providers.NewNobitex(providers.WithBaseURL(cfg.Providers.NobitexURL), providers.WithHTTPClient(hc)),
		GoldAPI: providers.NewGoldAPI(providers.WithBaseURL(cfg.Providers.GoldAPIURL), providers.WithHTTPClient(hc)),
		TGJU:    providers.NewTGJU(providers.WithBaseURL(cfg.Providers.TGJUURL), providers.WithHTTPClient(hc)),
		Navasan: providers.NewNavasan(providers.WithBaseURL(cfg.Providers.NavasanURL), providers.WithHTTPClient(hc)),
		Rates:   cache,
		Store:   database,
	},
		resolve.WithStageTimeout(cfg.StageTimeout()),
		resolve.WithLogger(logger),
		resolve.WithMetrics(m),
	)
	agg := aggregate.New(resolvers, cache,
		aggregate.WithRecorder(database),
		aggregate.WithLogger(logger),
	)

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithTimeout(cfg.CaptureTimeout() + cfg.FetchTimeout()),
	}
	if cfg.Warmup.Quiet != "" {
		start, end, err := cfg.QuietWindow()
		if err != nil {
			return err
		}
		schedOpts = append(schedOpts, scheduler.WithQuietWindow(start, end))
	}
	sched := scheduler.New(cache, schedOpts...)
	if err := sched.Register(cfg.Warmup.Cron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()
	go sched.RunOnce()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return err
	}
	api.Debug = cfg.Debug
	logger.Info("bot authorized", "username", api.Self.UserName)

	app := bot.New(api, agg,
		render.New(render.WithDigits(cfg.Render.Digits), render.WithLogger(logger)),
		cfg.AssetSelection(),
		bot.WithCacheStatus(cache),
		bot.WithSnapshotCounter(database),
		bot.WithLogger(logger),
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()

	return app.Run(ctx, updates)
}
