package prices

import "time"

type Category string

const (
	CategoryLocalFX     Category = "local_fx"
	CategoryGoldWeight  Category = "gold_weight"
	CategoryGoldSpot    Category = "gold_spot"
	CategorySilver      Category = "silver"
	CategoryCrypto      Category = "crypto"
	CategoryCryptoLocal Category = "crypto_local"
	CategoryCoin        Category = "coin"
	CategoryFiat        Category = "fiat"
)

const (
	UnitUSD   = "usd"
	UnitToman = "toman"
	UnitRial  = "rial"
)

// SubunitFactor converts rial (the unit most Iranian providers quote in) to toman.
const SubunitFactor = 10

// Asset IDs used by the single-asset categories.
const (
	AssetUSD    = "usd"
	AssetGold   = "xau"
	AssetSilver = "xag"
)

// Quote is one resolved price. Nil pointers mean the provider had no such figure.
type Quote struct {
	Price     float64
	Buy       *float64
	Sell      *float64
	Change24h *float64
	Change7d  *float64
	Unit      string
	Source    string

	// Estimated marks a designated constant used because every provider failed.
	Estimated bool
	// Stale marks a last-known-good value loaded from the store.
	Stale bool
}

// Selection is the caller's request. It is read-only for the engine.
type Selection struct {
	Cryptos     []string
	Fiats       []string
	Coins       []string
	GoldWeights []string

	Gold        bool
	Silver      bool
	LocalFX     bool
	CryptoLocal bool
}

// Empty reports whether the selection asks for nothing at all.
func (s Selection) Empty() bool {
	return len(s.Cryptos) == 0 && len(s.Fiats) == 0 && len(s.Coins) == 0 && len(s.GoldWeights) == 0 &&
		!s.Gold && !s.Silver && !s.LocalFX
}

// Snapshot is the aggregate answer to one Selection. It is never mutated after construction.
type Snapshot struct {
	ID        string
	CreatedAt time.Time
	Groups    map[Category]map[string]Quote
	Failures  map[Category]error
}

// Group returns the quotes of one category, or nil.
func (s Snapshot) Group(c Category) map[string]Quote {
	return s.Groups[c]
}

// Float returns a pointer to v, for the optional Quote fields.
func Float(v float64) *float64 { return &v }
