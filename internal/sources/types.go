package sources

import (
	"context"
	"time"
)

// Session is the short-lived credential set observed during one capture cycle.
// It is never persisted.
type Session struct {
	Token      string
	Cookies    map[string]string
	CapturedAt time.Time
}

// Capturer obtains a fresh Session from the rate site.
type Capturer interface {
	Capture(ctx context.Context) (Session, error)
}

// Fetcher exchanges a Session for the raw rates payload.
type Fetcher interface {
	Fetch(ctx context.Context, s Session) (RawRates, error)
}

// RawRates is the undecoded key/value payload returned by the data endpoint.
// Numbers are json.Number.
type RawRates map[string]any

// PairRate is a buy/sell quote in toman.
type PairRate struct {
	Name   string
	Symbol string
	Buy    int64
	Sell   int64
	Unit   string
}

// SpotRate is a single-valued quote.
type SpotRate struct {
	Name   string
	Symbol string
	Price  float64
	Unit   string
}

// RateSnapshot holds the fully parsed assets of one payload.
type RateSnapshot struct {
	Currencies      map[string]PairRate
	Coins           map[string]PairRate
	Gold            map[string]SpotRate
	ReferenceCrypto map[string]SpotRate
	MarketIndex     map[string]SpotRate

	// Created is the provider's own timestamp string, if it sent one.
	Created string
}

// Empty reports whether nothing at all could be parsed.
func (s RateSnapshot) Empty() bool {
	return len(s.Currencies) == 0 && len(s.Coins) == 0 && len(s.Gold) == 0 &&
		len(s.ReferenceCrypto) == 0 && len(s.MarketIndex) == 0
}
