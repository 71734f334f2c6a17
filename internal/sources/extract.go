package sources

import (
	"strings"

	"github.com/Armin-kho/price-snapshot-bot/internal/items"
	"github.com/Armin-kho/price-snapshot-bot/internal/utils"
)

// Extract maps a raw payload onto the known asset list. It never fails: an asset
// whose keys are missing or malformed is simply absent from the result.
func Extract(raw RawRates) RateSnapshot {
	snap := RateSnapshot{
		Currencies:      map[string]PairRate{},
		Coins:           map[string]PairRate{},
		Gold:            map[string]SpotRate{},
		ReferenceCrypto: map[string]SpotRate{},
		MarketIndex:     map[string]SpotRate{},
	}
	if raw == nil {
		return snap
	}
	if created, ok := raw["created"].(string); ok {
		snap.Created = strings.TrimSpace(created)
	}

	for _, it := range items.All {
		switch it.Category {
		case items.CategoryCurrency:
			if p, ok := pair(raw, it); ok {
				snap.Currencies[it.ID] = p
			}
		case items.CategoryCoin:
			if p, ok := pair(raw, it); ok {
				snap.Coins[it.ID] = p
			}
		case items.CategoryGold:
			if s, ok := spot(raw, it); ok {
				snap.Gold[it.ID] = s
			}
		case items.CategoryCrypto:
			if s, ok := spot(raw, it); ok {
				snap.ReferenceCrypto[it.ID] = s
			}
		case items.CategoryIndex:
			if s, ok := spot(raw, it); ok {
				snap.MarketIndex[it.ID] = s
			}
		}
	}
	return snap
}

func pair(raw RawRates, it items.Item) (PairRate, bool) {
	if it.BonbastBuyKey == "" || it.BonbastSellKey == "" {
		return PairRate{}, false
	}
	buy, ok := utils.ToInt(raw[it.BonbastBuyKey])
	if !ok {
		return PairRate{}, false
	}
	sell, ok := utils.ToInt(raw[it.BonbastSellKey])
	if !ok {
		return PairRate{}, false
	}
	return PairRate{Name: it.NameFa, Symbol: it.Symbol, Buy: buy, Sell: sell, Unit: unitOf(it)}, true
}

func spot(raw RawRates, it items.Item) (SpotRate, bool) {
	if it.BonbastKey == "" {
		return SpotRate{}, false
	}
	v, ok := utils.ToFloat(raw[it.BonbastKey])
	if !ok {
		return SpotRate{}, false
	}
	return SpotRate{Name: it.NameFa, Symbol: it.Symbol, Price: v, Unit: unitOf(it)}, true
}

func unitOf(it items.Item) string {
	switch {
	case it.BonbastUnit != "":
		return it.BonbastUnit
	case it.Category == items.CategoryIndex:
		return ""
	case it.Category == items.CategoryCrypto:
		return items.UnitUSD
	default:
		return items.UnitToman
	}
}
