package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Armin-kho/price-snapshot-bot/internal/items"
	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/utils"
)

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
	} `yaml:"telegram"`

	DataDir string `yaml:"data_dir"`
	Debug   bool   `yaml:"debug"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`

	Bonbast struct {
		BaseURL           string `yaml:"base_url"`
		UserAgent         string `yaml:"user_agent"`
		ChromePath        string `yaml:"chrome_path"`
		CaptureTimeoutSec int    `yaml:"capture_timeout_sec"`
		FetchTimeoutSec   int    `yaml:"fetch_timeout_sec"`
		CacheTTLSec       int    `yaml:"cache_ttl_sec"`
	} `yaml:"bonbast"`

	Providers struct {
		CoinGeckoURL    string `yaml:"coingecko_url"`
		CoinGeckoAPIKey string `yaml:"coingecko_api_key"`
		GoldAPIURL      string `yaml:"gold_api_url"`
		TGJUURL         string `yaml:"tgju_url"`
		NobitexURL      string `yaml:"nobitex_url"`
		NavasanURL      string `yaml:"navasan_url"`
		TimeoutSec      int    `yaml:"timeout_sec"`
		StageTimeoutSec int    `yaml:"stage_timeout_sec"`
	} `yaml:"providers"`

	Selection struct {
		Cryptos     []string `yaml:"cryptos"`
		Fiats       []string `yaml:"fiats"`
		Coins       []string `yaml:"coins"`
		GoldWeights []string `yaml:"gold_weights"`
		Gold        *bool    `yaml:"gold"`
		Silver      *bool    `yaml:"silver"`
		LocalFX     *bool    `yaml:"local_fx"`
		CryptoLocal *bool    `yaml:"crypto_local"`
	} `yaml:"selection"`

	Render struct {
		Digits string `yaml:"digits"`
	} `yaml:"render"`

	Warmup struct {
		Cron string `yaml:"cron"`
		// Quiet is an optional "HH:MM-HH:MM" Tehran-time window with no warm-up.
		Quiet string `yaml:"quiet"`
	} `yaml:"warmup"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

func DefaultDataDir() string {
	if v := os.Getenv("PSB_DATA_DIR"); v != "" {
		return v
	}
	return "/var/lib/price-snapshot-bot"
}

func DefaultConfigPath() string {
	if v := os.Getenv("PSB_CONFIG"); v != "" {
		return v
	}
	return "/etc/price-snapshot-bot/config.yaml"
}

// Load reads path (a missing file is fine), applies environment overrides and
// fills defaults. It does not validate.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	var cfg Config
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("PSB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PSB_DEBUG"); v != "" {
		cfg.Debug = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	if v := os.Getenv("PSB_CHROME_PATH"); v != "" {
		cfg.Bonbast.ChromePath = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.Providers.CoinGeckoAPIKey = v
	}
	if v := os.Getenv("PSB_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	c.DataDir = filepath.Clean(c.DataDir)

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Debug {
		c.Logging.Level = "debug"
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.DataDir, "logs", "bot.log")
	}

	setInt(&c.Bonbast.CaptureTimeoutSec, 70)
	setInt(&c.Bonbast.FetchTimeoutSec, 10)
	setInt(&c.Bonbast.CacheTTLSec, 300)
	setInt(&c.Providers.TimeoutSec, 10)
	setInt(&c.Providers.StageTimeoutSec, 10)

	if len(c.Selection.Cryptos) == 0 {
		c.Selection.Cryptos = items.DefaultCryptos()
	}
	if len(c.Selection.Fiats) == 0 {
		c.Selection.Fiats = []string{"eur", "gbp", "aed", "try"}
	}
	if len(c.Selection.Coins) == 0 {
		c.Selection.Coins = []string{"azadi1", "emami1", "azadi1_2", "azadi1_4"}
	}
	if len(c.Selection.GoldWeights) == 0 {
		c.Selection.GoldWeights = []string{"gol18", "mithqal"}
	}
	for _, b := range []**bool{&c.Selection.Gold, &c.Selection.Silver, &c.Selection.LocalFX, &c.Selection.CryptoLocal} {
		if *b == nil {
			t := true
			*b = &t
		}
	}

	if c.Render.Digits == "" {
		c.Render.Digits = "en"
	}
	if c.Warmup.Cron == "" {
		c.Warmup.Cron = "@every 1m"
	}
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

// Validate checks the fields that have no usable default.
func (c Config) Validate() error {
	var errs []error
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram.bot_token is required (or BOT_TOKEN env)"))
	}
	if c.Render.Digits != "fa" && c.Render.Digits != "en" {
		errs = append(errs, fmt.Errorf("render.digits must be fa or en, got %q", c.Render.Digits))
	}
	if c.Warmup.Quiet != "" {
		if _, _, err := c.QuietWindow(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.validateSelection(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) validateSelection() error {
	check := func(cat items.Category, field string, ids []string) error {
		for _, id := range ids {
			if _, ok := items.Lookup(cat, id); !ok {
				return fmt.Errorf("selection.%s: unknown asset %q", field, id)
			}
		}
		return nil
	}
	return errors.Join(
		check(items.CategoryCrypto, "cryptos", c.Selection.Cryptos),
		check(items.CategoryCurrency, "fiats", c.Selection.Fiats),
		check(items.CategoryCoin, "coins", c.Selection.Coins),
		check(items.CategoryGold, "gold_weights", c.Selection.GoldWeights),
	)
}

// QuietWindow parses Warmup.Quiet into minute-of-day bounds.
func (c Config) QuietWindow() (start, end int, err error) {
	from, to, ok := strings.Cut(c.Warmup.Quiet, "-")
	if ok {
		var okFrom, okTo bool
		start, okFrom = utils.ParseHHMM(strings.TrimSpace(from))
		end, okTo = utils.ParseHHMM(strings.TrimSpace(to))
		ok = okFrom && okTo
	}
	if !ok {
		return 0, 0, fmt.Errorf("warmup.quiet must look like 23:00-06:00, got %q", c.Warmup.Quiet)
	}
	return start, end, nil
}

// AssetSelection is the configured default request.
func (c Config) AssetSelection() prices.Selection {
	return prices.Selection{
		Cryptos:     c.Selection.Cryptos,
		Fiats:       c.Selection.Fiats,
		Coins:       c.Selection.Coins,
		GoldWeights: c.Selection.GoldWeights,
		Gold:        deref(c.Selection.Gold),
		Silver:      deref(c.Selection.Silver),
		LocalFX:     deref(c.Selection.LocalFX),
		CryptoLocal: deref(c.Selection.CryptoLocal),
	}
}

func (c Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Bonbast.CaptureTimeoutSec) * time.Second
}
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Bonbast.FetchTimeoutSec) * time.Second
}
func (c Config) CacheTTL() time.Duration { return time.Duration(c.Bonbast.CacheTTLSec) * time.Second }
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Providers.TimeoutSec) * time.Second
}
func (c Config) StageTimeout() time.Duration {
	return time.Duration(c.Providers.StageTimeoutSec) * time.Second
}

func deref(b *bool) bool { return b != nil && *b }
