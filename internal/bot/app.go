// Package bot is the Telegram front-end: it answers /price with the rendered
// snapshot of the configured selection and refreshes it from an inline button.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/sources"
	"github.com/Armin-kho/price-snapshot-bot/internal/utils"
)

const (
	cbRefresh = "refresh"

	maxInFlight = 5
)

// API is the subset of *tgbotapi.BotAPI the app uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Pricer builds snapshots. *aggregate.Aggregator satisfies it.
type Pricer interface {
	GetAllPrices(ctx context.Context, sel prices.Selection) (prices.Snapshot, error)
}

// Reporter renders snapshots. *render.Renderer satisfies it.
type Reporter interface {
	Report(s prices.Snapshot) string
}

// CacheStatus reports the rate cache state. *sources.Cache satisfies it.
type CacheStatus interface {
	Peek() (sources.RateSnapshot, time.Time, bool)
}

// SnapshotCounter counts recorded snapshots. *db.DB satisfies it.
type SnapshotCounter interface {
	CountSnapshots(ctx context.Context, since time.Time) (int, error)
}

type App struct {
	api      API
	pricer   Pricer
	reporter Reporter
	sel      prices.Selection

	cache   CacheStatus
	history SnapshotCounter
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	sem chan struct{}
	wg  sync.WaitGroup
}

type Option func(*App)

func WithCacheStatus(c CacheStatus) Option {
	return func(a *App) { a.cache = c }
}

// WithSnapshotCounter adds the last day's snapshot count to /status.
func WithSnapshotCounter(c SnapshotCounter) Option {
	return func(a *App) { a.history = c }
}

// WithTimeout bounds one /price request end to end.
func WithTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

func New(api API, pricer Pricer, reporter Reporter, sel prices.Selection, opts ...Option) *App {
	a := &App{
		api:      api,
		pricer:   pricer,
		reporter: reporter,
		sel:      sel,
		timeout:  2 * time.Minute,
		logger:   slog.Default(),
		now:      time.Now,
		sem:      make(chan struct{}, maxInFlight),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run handles updates until ctx is done or the channel closes, then waits for
// in-flight handlers.
func (a *App) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	defer a.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case a.sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				defer func() { <-a.sem }()
				a.HandleUpdate(ctx, upd)
			}()
		}
	}
}

func (a *App) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("update handler panic", "panic", r, "update_id", upd.UpdateID)
		}
	}()
	switch {
	case upd.Message != nil:
		a.handleMessage(ctx, *upd.Message)
	case upd.CallbackQuery != nil:
		a.handleCallback(ctx, *upd.CallbackQuery)
	}
}

func (a *App) handleMessage(ctx context.Context, msg tgbotapi.Message) {
	if msg.Chat == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		a.send(tgbotapi.NewMessage(chatID, helpText))
	case "price":
		a.sendPrices(ctx, chatID)
	case "status":
		a.send(tgbotapi.NewMessage(chatID, a.statusText(ctx)))
	}
}

func (a *App) handleCallback(ctx context.Context, q tgbotapi.CallbackQuery) {
	// Always answer to remove the spinner.
	if _, err := a.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		a.logger.Debug("answer callback", "err", err)
	}
	if q.Data != cbRefresh || q.Message == nil || q.Message.Chat == nil {
		return
	}
	text, err := a.priceText(ctx)
	if err != nil {
		text = failureText(err)
	}
	edit := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, text)
	kb := refreshKeyboard()
	edit.ReplyMarkup = &kb
	edit.DisableWebPagePreview = true
	if _, err := a.api.Request(edit); err != nil {
		// Telegram rejects edits that change nothing; send a fresh message instead.
		a.logger.Debug("edit price message", "err", err)
		a.sendWithKeyboard(q.Message.Chat.ID, text)
	}
}

func (a *App) sendPrices(ctx context.Context, chatID int64) {
	text, err := a.priceText(ctx)
	if err != nil {
		a.send(tgbotapi.NewMessage(chatID, failureText(err)))
		return
	}
	a.sendWithKeyboard(chatID, text)
}

func (a *App) priceText(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	snap, err := a.pricer.GetAllPrices(ctx, a.sel)
	if err != nil {
		a.logger.Warn("get prices", "err", err)
		return "", err
	}
	return a.reporter.Report(snap), nil
}

func failureText(err error) string {
	switch {
	case errors.Is(err, prices.ErrEmptySelection):
		return "⚠️ هیچ دارایی برای نمایش تنظیم نشده است."
	case errors.Is(err, context.DeadlineExceeded):
		return "⌛️ دریافت قیمت‌ها بیش از حد طول کشید. کمی بعد دوباره تلاش کنید."
	default:
		return "❌ در حال حاضر قیمتی در دسترس نیست. کمی بعد دوباره تلاش کنید."
	}
}

func (a *App) statusText(ctx context.Context) string {
	text := a.cacheText()
	if a.history == nil {
		return text
	}
	n, err := a.history.CountSnapshots(ctx, a.now().Add(-24*time.Hour))
	if err != nil {
		a.logger.Warn("count snapshots", "err", err)
		return text
	}
	return text + fmt.Sprintf("\nگزارش‌های ۲۴ ساعت اخیر: %d", n)
}

func (a *App) cacheText() string {
	if a.cache == nil {
		return "🧰 وضعیت: منبع بن‌بست پیکربندی نشده است."
	}
	snap, at, ok := a.cache.Peek()
	if !ok {
		return "🧰 وضعیت: هنوز داده‌ای از بن‌بست دریافت نشده است."
	}
	age := a.now().Sub(at).Truncate(time.Second)
	return fmt.Sprintf("🧰 وضعیت\nآخرین دریافت بن‌بست: %s (%s پیش)\nارزها: %d | سکه‌ها: %d | طلا: %d",
		utils.JalaliDateTime(at), age, len(snap.Currencies), len(snap.Coins), len(snap.Gold))
}

func refreshKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 بروزرسانی", cbRefresh),
		),
	)
}

func (a *App) sendWithKeyboard(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = refreshKeyboard()
	a.send(msg)
}

func (a *App) send(msg tgbotapi.MessageConfig) {
	msg.DisableWebPagePreview = true
	if _, err := a.api.Send(msg); err != nil {
		a.logger.Warn("send message", "chat_id", msg.ChatID, "err", err)
	}
}

const helpText = "👋 سلام!\n\n" +
	"/price قیمت‌های لحظه‌ای بازار\n" +
	"/status وضعیت منبع نرخ‌ها\n\n" +
	"قیمت‌ها حداکثر هر ۵ دقیقه از بن‌بست تازه می‌شوند."
