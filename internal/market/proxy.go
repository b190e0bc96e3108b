package market

import "context"

const proxyHistoryLen = 5

// ProxySource reads an exchange-traded instrument that tracks the metal (an
// ETF or a miner's equity) through the shared chart session. It is a
// fallback: one attempt, and only the last few bars are returned.
type ProxySource struct {
	name  string
	chart *ChartClient
}

func NewETFSource(chart *ChartClient) *ProxySource {
	return &ProxySource{name: SourceETFProxy, chart: chart}
}

func NewEquitySource(chart *ChartClient) *ProxySource {
	return &ProxySource{name: SourceEquityProxy, chart: chart}
}

func (s *ProxySource) Name() string { return s.name }

func (s *ProxySource) Fetch(ctx context.Context, symbol, ticker string) (Quote, error) {
	logFetch(s.name, symbol, ticker)

	data, err := s.chart.daily(ctx, ticker)
	if err != nil {
		return Quote{}, err
	}
	valid := data.validIndices()
	if len(valid) < 2 {
		return Quote{}, newSourceError(KindUpstreamData, "Insufficient data points")
	}
	last := valid[len(valid)-1]
	prev := valid[len(valid)-2]

	// newest first
	n := min(proxyHistoryLen, len(valid))
	history := make([]Bar, 0, n)
	for k := 1; k <= n; k++ {
		history = append(history, data.bar(valid[len(valid)-k]))
	}
	return data.quote(symbol, ticker, s.name, last, prev, history), nil
}
