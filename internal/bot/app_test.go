package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/sources"
)

type fakeAPI struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
	editErr   error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, c)
	if _, ok := c.(tgbotapi.EditMessageTextConfig); ok && f.editErr != nil {
		return nil, f.editErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakePricer struct {
	sel prices.Selection
	err error
}

func (f *fakePricer) GetAllPrices(_ context.Context, sel prices.Selection) (prices.Snapshot, error) {
	f.sel = sel
	if f.err != nil {
		return prices.Snapshot{}, f.err
	}
	return prices.Snapshot{ID: "snap-1"}, nil
}

type fakeReporter struct{}

func (fakeReporter) Report(s prices.Snapshot) string { return "report " + s.ID }

type fakeCache struct {
	at time.Time
	ok bool
}

func (f fakeCache) Peek() (sources.RateSnapshot, time.Time, bool) {
	return sources.RateSnapshot{Currencies: map[string]sources.PairRate{"eur": {}}}, f.at, f.ok
}

type fakeCounter struct {
	since time.Time
	n     int
	err   error
}

func (f *fakeCounter) CountSnapshots(_ context.Context, since time.Time) (int, error) {
	f.since = since
	return f.n, f.err
}

func command(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func TestPriceCommand(t *testing.T) {
	t.Parallel()

	// Arrange
	api := &fakeAPI{}
	pricer := &fakePricer{}
	sel := prices.Selection{Cryptos: []string{"bitcoin"}, LocalFX: true}
	app := New(api, pricer, fakeReporter{}, sel)

	// Act
	app.HandleUpdate(t.Context(), command(42, "/price"))

	// Assert
	assert.Equal(t, sel, pricer.sel)
	require.Len(t, api.sent, 1)
	msg := api.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "report snap-1", msg.Text)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, cbRefresh, *kb.InlineKeyboard[0][0].CallbackData)
}

func TestPriceCommand_Failure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no data", prices.ErrNoData, "❌"},
		{"timeout", context.DeadlineExceeded, "⌛️"},
		{"empty", prices.ErrEmptySelection, "⚠️"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &fakeAPI{}
			app := New(api, &fakePricer{err: tt.err}, fakeReporter{}, prices.Selection{})

			app.HandleUpdate(t.Context(), command(1, "/price"))

			require.Len(t, api.sent, 1)
			msg := api.sent[0].(tgbotapi.MessageConfig)
			assert.Contains(t, msg.Text, tt.want)
			assert.Nil(t, msg.ReplyMarkup)
		})
	}
}

func TestRefreshCallback(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	app := New(api, &fakePricer{}, fakeReporter{}, prices.Selection{Gold: true})

	app.HandleUpdate(t.Context(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    cbRefresh,
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: 42}},
	}})

	require.Len(t, api.requested, 2)
	_, answered := api.requested[0].(tgbotapi.CallbackConfig)
	assert.True(t, answered)
	edit := api.requested[1].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, 7, edit.MessageID)
	assert.Equal(t, "report snap-1", edit.Text)
	assert.Empty(t, api.sent)
}

func TestRefreshCallback_EditFailsSendsNew(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{editErr: errors.New("message is not modified")}
	app := New(api, &fakePricer{}, fakeReporter{}, prices.Selection{Gold: true})

	app.HandleUpdate(t.Context(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    cbRefresh,
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: 42}},
	}})

	require.Len(t, api.sent, 1)
	assert.Equal(t, "report snap-1", api.sent[0].(tgbotapi.MessageConfig).Text)
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 21, 8, 30, 0, 0, time.UTC)
	api := &fakeAPI{}
	app := New(api, &fakePricer{}, fakeReporter{}, prices.Selection{},
		WithCacheStatus(fakeCache{at: now.Add(-90 * time.Second), ok: true}),
		WithClock(func() time.Time { return now }))

	app.HandleUpdate(t.Context(), command(1, "/status"))

	require.Len(t, api.sent, 1)
	text := api.sent[0].(tgbotapi.MessageConfig).Text
	assert.Contains(t, text, "1m30s")
	assert.Contains(t, text, "ارزها: 1")
}

func TestStatusCommand_SnapshotCount(t *testing.T) {
	t.Parallel()

	// Arrange
	now := time.Date(2025, 3, 21, 8, 30, 0, 0, time.UTC)
	counter := &fakeCounter{n: 17}
	api := &fakeAPI{}
	app := New(api, &fakePricer{}, fakeReporter{}, prices.Selection{},
		WithSnapshotCounter(counter),
		WithClock(func() time.Time { return now }))

	// Act
	app.HandleUpdate(t.Context(), command(1, "/status"))

	// Assert
	require.Len(t, api.sent, 1)
	text := api.sent[0].(tgbotapi.MessageConfig).Text
	assert.Contains(t, text, "پیکربندی نشده")
	assert.Contains(t, text, "گزارش‌های ۲۴ ساعت اخیر: 17")
	assert.Equal(t, now.Add(-24*time.Hour), counter.since)
}

func TestStatusCommand_CounterErrorOmitsCount(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	app := New(api, &fakePricer{}, fakeReporter{}, prices.Selection{},
		WithSnapshotCounter(&fakeCounter{err: errors.New("locked")}))

	app.HandleUpdate(t.Context(), command(1, "/status"))

	require.Len(t, api.sent, 1)
	assert.NotContains(t, api.sent[0].(tgbotapi.MessageConfig).Text, "گزارش‌ها")
}

func TestIgnoresPlainText(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	app := New(api, &fakePricer{}, fakeReporter{}, prices.Selection{})

	app.HandleUpdate(t.Context(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hello"}})

	assert.Empty(t, api.sent)
}

func TestRun_StopsWhenChannelCloses(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	app := New(api, &fakePricer{}, fakeReporter{}, prices.Selection{Gold: true})
	updates := make(chan tgbotapi.Update, 2)
	updates <- command(1, "/price")
	updates <- command(2, "/start")
	close(updates)

	err := app.Run(t.Context(), updates)

	require.NoError(t, err)
	assert.Len(t, api.sent, 2)
}
