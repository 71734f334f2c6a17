package items

import "strings"

type Category string

const (
	CategoryCurrency Category = "currency"
	CategoryCoin     Category = "coin"
	CategoryGold     Category = "gold"
	CategoryCrypto   Category = "crypto"
	CategoryMetal    Category = "metal"
	CategoryIndex    Category = "index"
)

type Item struct {
	ID       string
	Category Category

	NameFa string
	Emoji  string
	Symbol string

	// Bonbast keys. Paired items (currencies, coins) read BonbastBuyKey/BonbastSellKey,
	// single-valued items read BonbastKey.
	BonbastKey     string
	BonbastBuyKey  string
	BonbastSellKey string
	BonbastUnit    string

	CoinGeckoID   string
	NobitexSymbol string
	GoldAPISymbol string

	// Estimate is the flagged constant served when every provider failed, in USD for
	// crypto/metals and toman for the local rate. Zero means no estimate.
	Estimate float64
}

const (
	UnitToman = "toman"
	UnitUSD   = "usd"
)

func currency(code, name, emoji string) Item {
	return Item{
		ID: code, Category: CategoryCurrency, NameFa: name, Emoji: emoji, Symbol: strings.ToUpper(code),
		BonbastBuyKey: code + "1", BonbastSellKey: code + "2", BonbastUnit: UnitToman,
	}
}

func coin(key, name string) Item {
	return Item{
		ID: key, Category: CategoryCoin, NameFa: name, Emoji: "🪙",
		BonbastBuyKey: key, BonbastSellKey: key + "2", BonbastUnit: UnitToman,
	}
}

func crypto(id, symbol, name string, estimate float64) Item {
	return Item{
		ID: id, Category: CategoryCrypto, NameFa: name, Emoji: "▫️", Symbol: symbol,
		CoinGeckoID: id, NobitexSymbol: strings.ToLower(symbol), Estimate: estimate,
	}
}

var All = []Item{
	// -------- CURRENCIES --------
	func() Item {
		it := currency("usd", "دلار آمریکا", "💵")
		it.Estimate = 580000
		return it
	}(),
	currency("eur", "یورو", "💶"),
	currency("gbp", "پوند انگلیس", "💷"),
	currency("chf", "فرانک سوئیس", "💱"),
	currency("cad", "دلار کانادا", "💱"),
	currency("aud", "دلار استرالیا", "💱"),
	currency("sek", "کرون سوئد", "💱"),
	currency("nok", "کرون نروژ", "💱"),
	currency("dkk", "کرون دانمارک", "💱"),
	currency("jpy", "ین ژاپن", "💴"),
	currency("cny", "یوان چین", "💱"),
	currency("try", "لیر ترکیه", "💱"),
	currency("rub", "روبل روسیه", "💱"),
	currency("inr", "روپیه هند", "💱"),
	currency("aed", "درهم امارات", "💱"),
	currency("sar", "ریال عربستان", "💱"),
	currency("qar", "ریال قطر", "💱"),
	currency("kwd", "دینار کویت", "💱"),
	currency("omr", "ریال عمان", "💱"),
	currency("bhd", "دینار بحرین", "💱"),
	currency("iqd", "دینار عراق", "💱"),
	currency("myr", "رینگیت مالزی", "💱"),
	currency("sgd", "دلار سنگاپور", "💱"),
	currency("hkd", "دلار هنگ کنگ", "💱"),
	currency("azn", "منات آذربایجان", "💱"),
	currency("amd", "درام ارمنستان", "💱"),
	currency("afn", "افغانی افغانستان", "💱"),
	currency("thb", "بات تایلند", "💱"),

	// -------- COINS --------
	coin("azadi1", "سکه بهار آزادی"),
	coin("azadi1_2", "نیم سکه"),
	coin("azadi1_4", "ربع سکه"),
	coin("azadi1g", "سکه یک گرمی"),
	coin("emami1", "سکه امامی"),

	// -------- GOLD (by weight) --------
	{ID: "gol18", Category: CategoryGold, NameFa: "طلای ۱۸ عیار (گرم)", Emoji: "🥇", BonbastKey: "gol18", BonbastUnit: UnitToman},
	{ID: "mithqal", Category: CategoryGold, NameFa: "مثقال طلا", Emoji: "🥇", BonbastKey: "mithqal", BonbastUnit: UnitToman},
	{ID: "ounce", Category: CategoryGold, NameFa: "اونس طلا", Emoji: "🌍", BonbastKey: "ounce", BonbastUnit: UnitUSD},

	// -------- METALS (spot) --------
	{ID: "xau", Category: CategoryMetal, NameFa: "طلا (اونس جهانی)", Emoji: "🥇", Symbol: "XAU", GoldAPISymbol: "XAU", CoinGeckoID: "pax-gold", BonbastKey: "ounce", Estimate: 1900},
	{ID: "xag", Category: CategoryMetal, NameFa: "نقره (اونس جهانی)", Emoji: "🥈", Symbol: "XAG", GoldAPISymbol: "XAG", CoinGeckoID: "silver-token", Estimate: 24},

	// -------- CRYPTO --------
	func() Item {
		it := crypto("bitcoin", "BTC", "بیت‌کوین", 45000)
		it.BonbastKey = "bitcoin"
		return it
	}(),
	crypto("ethereum", "ETH", "اتریوم", 2500),
	crypto("binancecoin", "BNB", "بایننس کوین", 300),
	crypto("cardano", "ADA", "کاردانو", 0.5),
	crypto("ripple", "XRP", "ریپل", 0.6),
	crypto("solana", "SOL", "سولانا", 100),
	crypto("polkadot", "DOT", "پولکادات", 7),
	crypto("dogecoin", "DOGE", "دوج کوین", 0.08),
	crypto("tether", "USDT", "تتر", 1),
	crypto("usd-coin", "USDC", "یو اس دی کوین", 1),
	crypto("litecoin", "LTC", "لایت کوین", 70),
	crypto("chainlink", "LINK", "چین لینک", 15),
	crypto("avalanche-2", "AVAX", "آوالانچ", 35),
	crypto("tron", "TRX", "ترون", 0.1),
	crypto("stellar", "XLM", "استلار", 0.12),

	// -------- MARKET --------
	{ID: "bourse", Category: CategoryIndex, NameFa: "شاخص بورس", Emoji: "📊", BonbastKey: "bourse"},
}

var byKey map[string]Item

func init() {
	byKey = map[string]Item{}
	for _, it := range All {
		byKey[key(it.Category, it.ID)] = it
	}
}

func key(c Category, id string) string { return string(c) + "|" + id }

// Lookup returns the catalogue entry for id within category c.
func Lookup(c Category, id string) (Item, bool) {
	it, ok := byKey[key(c, id)]
	return it, ok
}

// InCategory returns the catalogue entries of c in declaration order.
func InCategory(c Category) []Item {
	var out []Item
	for _, it := range All {
		if it.Category == c {
			out = append(out, it)
		}
	}
	return out
}

// Symbol returns the display symbol for a crypto id, falling back to the upper-cased id.
func Symbol(id string) string {
	if it, ok := Lookup(CategoryCrypto, id); ok && it.Symbol != "" {
		return it.Symbol
	}
	return strings.ToUpper(id)
}

// DefaultCryptos is the crypto list used when the configuration names none.
func DefaultCryptos() []string {
	return []string{"bitcoin", "ethereum", "binancecoin", "cardano", "ripple", "solana", "polkadot", "dogecoin"}
}
