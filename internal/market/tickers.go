package market

// Symbols lists the supported commodity codes in display order.
var Symbols = []string{"Au", "Ag", "Cu", "Pt", "Pd", "Al"}

// FuturesTickers maps symbols to front-month futures contracts.
var FuturesTickers = map[string]string{
	"Au": "GC=F",
	"Ag": "SI=F",
	"Cu": "HG=F",
	"Pt": "PL=F",
	"Pd": "PA=F",
	"Al": "ALI=F",
}

// ETFTickers maps symbols to physically backed or futures ETFs.
var ETFTickers = map[string]string{
	"Au": "GLD",
	"Ag": "SLV",
	"Cu": "CPER",
	"Pt": "PPLT",
	"Pd": "PALL",
	"Al": "JJUB",
}

// EquityTickers maps symbols to a listed miner used as a last-resort proxy.
var EquityTickers = map[string]string{
	"Au": "NEM",
	"Ag": "SLW",
	"Cu": "FCX",
	"Pt": "SIBN.L",
	"Pd": "SIBN.L",
	"Al": "ACH",
}

// TickerLookup resolves a symbol to a provider instrument id.
type TickerLookup func(symbol string) (string, bool)

// TickersFrom looks symbols up in a static registry.
func TickersFrom(m map[string]string) TickerLookup {
	return func(symbol string) (string, bool) {
		t, ok := m[symbol]
		return t, ok && t != ""
	}
}

// firstOf tries each lookup in order.
func firstOf(lookups ...TickerLookup) TickerLookup {
	return func(symbol string) (string, bool) {
		for _, l := range lookups {
			if t, ok := l(symbol); ok {
				return t, true
			}
		}
		return "", false
	}
}
