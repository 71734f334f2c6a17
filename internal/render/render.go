package render

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/Armin-kho/price-snapshot-bot/internal/items"
	"github.com/Armin-kho/price-snapshot-bot/internal/prices"
	"github.com/Armin-kho/price-snapshot-bot/internal/utils"
)

const (
	markerUp   = "📈"
	markerDown = "📉"
	markerFlat = "➡️"

	flagEstimated = "(تخمینی)"
	flagStale     = "(آخرین مقدار)"
)

var categoryTitles = map[prices.Category]string{
	prices.CategoryLocalFX:     "💵 دلار بازار آزاد",
	prices.CategoryGoldWeight:  "🥇 طلا",
	prices.CategoryGoldSpot:    "🥇 طلا",
	prices.CategorySilver:      "🥈 نقره",
	prices.CategoryCrypto:      "💎 ارزهای دیجیتال",
	prices.CategoryCryptoLocal: "💎 ارزهای دیجیتال",
	prices.CategoryCoin:        "🪙 سکه",
	prices.CategoryFiat:        "💱 سایر ارزها",
}

type Renderer struct {
	digits string
	logger *slog.Logger
}

type Option func(*Renderer)

// WithDigits selects "fa" (Persian) or "en" digits for prices and the footer.
func WithDigits(d string) Option {
	return func(r *Renderer) {
		if d == "fa" || d == "en" {
			r.digits = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

func New(opts ...Option) *Renderer {
	r := &Renderer{digits: "en", logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report renders s with default settings.
func Report(s prices.Snapshot) string {
	return New().Report(s)
}

type section struct {
	title string
	parts []func(prices.Snapshot) ([]string, error)
}

// Report renders the snapshot as a plain-text message: a header, one section per
// present category group in fixed order, and a Jalali timestamp footer.
func (r *Renderer) Report(s prices.Snapshot) string {
	sections := []section{
		{categoryTitles[prices.CategoryLocalFX], []func(prices.Snapshot) ([]string, error){
			r.group(prices.CategoryLocalFX, items.CategoryCurrency),
		}},
		{categoryTitles[prices.CategoryGoldWeight], []func(prices.Snapshot) ([]string, error){
			r.group(prices.CategoryGoldWeight, items.CategoryGold),
			r.group(prices.CategoryGoldSpot, items.CategoryMetal),
		}},
		{categoryTitles[prices.CategorySilver], []func(prices.Snapshot) ([]string, error){
			r.group(prices.CategorySilver, items.CategoryMetal),
		}},
		{categoryTitles[prices.CategoryCrypto], []func(prices.Snapshot) ([]string, error){
			r.group(prices.CategoryCrypto, items.CategoryCrypto),
			r.group(prices.CategoryCryptoLocal, items.CategoryCrypto),
		}},
		{categoryTitles[prices.CategoryCoin], []func(prices.Snapshot) ([]string, error){
			r.group(prices.CategoryCoin, items.CategoryCoin),
		}},
		{categoryTitles[prices.CategoryFiat], []func(prices.Snapshot) ([]string, error){
			r.group(prices.CategoryFiat, items.CategoryCurrency),
		}},
	}

	var b strings.Builder
	b.WriteString("📊 قیمت‌های لحظه‌ای بازار\n")
	for _, sec := range sections {
		var lines []string
		for _, part := range sec.parts {
			got, err := safe(part, s)
			if err != nil {
				r.logger.Error("render section", "section", sec.title, "err", err)
				continue
			}
			lines = append(lines, got...)
		}
		if len(lines) == 0 {
			continue
		}
		b.WriteString("\n" + sec.title + "\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}

	if missing := r.missing(s); missing != "" {
		b.WriteString("\n⚠️ ناموجود: " + missing + "\n")
	}

	dt := utils.JalaliDateTime(s.CreatedAt)
	if r.digits == "fa" {
		dt = utils.ToPersianDigits(dt)
	}
	b.WriteString("\n🕒 " + dt)
	return b.String()
}

func safe(part func(prices.Snapshot) ([]string, error), s prices.Snapshot) (lines []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return part(s)
}

// group renders the quotes of one category in catalogue order.
func (r *Renderer) group(c prices.Category, ic items.Category) func(prices.Snapshot) ([]string, error) {
	return func(s prices.Snapshot) ([]string, error) {
		quotes := s.Group(c)
		if len(quotes) == 0 {
			return nil, nil
		}
		var lines []string
		seen := 0
		for _, it := range items.InCategory(ic) {
			q, ok := quotes[it.ID]
			if !ok {
				continue
			}
			seen++
			line, err := r.line(it, q)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", c, it.ID, err)
			}
			lines = append(lines, line)
		}
		if seen < len(quotes) {
			r.logger.Debug("render: assets outside the catalogue skipped", "category", string(c), "count", len(quotes)-seen)
		}
		return lines, nil
	}
}

func (r *Renderer) line(it items.Item, q prices.Quote) (string, error) {
	if math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
		return "", errors.New("non-finite price")
	}

	name := it.NameFa
	if it.Category == items.CategoryCrypto {
		name += " (" + items.Symbol(it.ID) + ")"
	}

	var price string
	switch q.Unit {
	case prices.UnitUSD:
		price = utils.FormatNumber(q.Price, q.Unit, r.digits)
	case prices.UnitToman:
		price = utils.FormatNumber(q.Price, q.Unit, r.digits) + " تومان"
	default:
		return "", fmt.Errorf("unit %q", q.Unit)
	}

	parts := []string{it.Emoji + " " + name + ": " + price}
	if m := Marker(q.Change24h); m != "" {
		parts = append(parts, m)
	}
	if changes := r.changes(q); changes != "" {
		parts = append(parts, changes)
	}
	switch {
	case q.Estimated:
		parts = append(parts, flagEstimated)
	case q.Stale:
		parts = append(parts, flagStale)
	}
	return strings.Join(parts, " "), nil
}

func (r *Renderer) changes(q prices.Quote) string {
	var ch []string
	if q.Change24h != nil {
		ch = append(ch, "24h: "+utils.FormatPercent(*q.Change24h, r.digits))
	}
	if q.Change7d != nil {
		ch = append(ch, "7d: "+utils.FormatPercent(*q.Change7d, r.digits))
	}
	if len(ch) == 0 {
		return ""
	}
	return "(" + strings.Join(ch, "، ") + ")"
}

// Marker maps the sign of a 24h change to a trend marker; nil means no marker.
func Marker(change *float64) string {
	switch {
	case change == nil || math.IsNaN(*change):
		return ""
	case *change > 0:
		return markerUp
	case *change < 0:
		return markerDown
	default:
		return markerFlat
	}
}

func (r *Renderer) missing(s prices.Snapshot) string {
	if len(s.Failures) == 0 {
		return ""
	}
	order := []prices.Category{
		prices.CategoryLocalFX, prices.CategoryGoldWeight, prices.CategoryGoldSpot, prices.CategorySilver,
		prices.CategoryCrypto, prices.CategoryCryptoLocal, prices.CategoryCoin, prices.CategoryFiat,
	}
	var names []string
	for _, c := range order {
		if _, failed := s.Failures[c]; failed {
			names = append(names, categoryLabels[c])
		}
	}
	return strings.Join(names, "، ")
}

var categoryLabels = map[prices.Category]string{
	prices.CategoryLocalFX:     "دلار آزاد",
	prices.CategoryGoldWeight:  "طلای داخلی",
	prices.CategoryGoldSpot:    "طلای جهانی",
	prices.CategorySilver:      "نقره",
	prices.CategoryCrypto:      "ارز دیجیتال",
	prices.CategoryCryptoLocal: "ارز دیجیتال (تومان)",
	prices.CategoryCoin:        "سکه",
	prices.CategoryFiat:        "سایر ارزها",
}
