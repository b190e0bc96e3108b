package market

import (
	"context"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// Source is one upstream price provider.
//
//go:generate mockgen -package=market_test -destination=mock_source_test.go -source=resolver.go Source
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol, ticker string) (Quote, error)
}

// Route binds a source to the ticker registry it reads from.
type Route struct {
	Source  Source
	Tickers TickerLookup
}

// Resolver tries each route in priority order and returns the first success.
type Resolver struct {
	routes    []Route
	supported []string
}

func NewResolver(routes []Route, supported []string) *Resolver {
	return &Resolver{routes: routes, supported: supported}
}

// DefaultRoutes is futures, keyed daily series, ETF, then miner equity.
func DefaultRoutes(futures, daily, etf, equity Source) []Route {
	return []Route{
		{Source: futures, Tickers: TickersFrom(FuturesTickers)},
		{Source: daily, Tickers: firstOf(TickersFrom(ETFTickers), TickersFrom(FuturesTickers))},
		{Source: etf, Tickers: TickersFrom(ETFTickers)},
		{Source: equity, Tickers: TickersFrom(EquityTickers)},
	}
}

// Resolve returns a quote from the highest-priority source that succeeds, or
// an *AggregateFailure listing every source's reason in order.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (Quote, error) {
	q, _, err := r.ResolveDetailed(ctx, symbol)
	return q, err
}

// ResolveDetailed is Resolve that also reports the failures of the sources
// tried before the one that succeeded.
func (r *Resolver) ResolveDetailed(ctx context.Context, symbol string) (Quote, []FailureRecord, error) {
	failures := make([]FailureRecord, 0, len(r.routes))
	for _, route := range r.routes {
		name := route.Source.Name()
		ticker, ok := route.Tickers(symbol)
		if !ok {
			failures = append(failures, FailureRecord{Source: name, Reason: "No ticker symbol configured"})
			continue
		}
		q, err := route.Source.Fetch(ctx, symbol, ticker)
		if err == nil {
			return q, failures, nil
		}
		hlog.Warnf("source %s failed for %s: %v", name, symbol, err)
		failures = append(failures, FailureRecord{Source: name, Reason: err.Error()})
	}
	return Quote{}, failures, &AggregateFailure{
		Symbol:    symbol,
		Failures:  failures,
		Supported: r.supported,
	}
}

// Supported lists the symbols with a configured primary ticker.
func (r *Resolver) Supported() []string {
	return r.supported
}
