package market_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"metals-dashboard/internal/market"
)

func mockSource(ctrl *gomock.Controller, name string) *MockSource {
	m := NewMockSource(ctrl)
	m.EXPECT().Name().Return(name).AnyTimes()
	return m
}

func TestResolve_PrimaryHealthy_ShortCircuits(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)

	futures := mockSource(ctrl, market.SourceFutures)
	// Assert: lower-priority sources have no expectations, so any call fails the test.
	daily := NewMockSource(ctrl)
	etf := NewMockSource(ctrl)
	equity := NewMockSource(ctrl)

	want := market.Quote{Symbol: "Cu", Ticker: "HG=F", Available: true, Source: market.SourceFutures, Price: 4.52}
	futures.EXPECT().Fetch(gomock.Any(), "Cu", "HG=F").Return(want, nil).Times(1)

	r := market.NewResolver(market.DefaultRoutes(futures, daily, etf, equity), market.Symbols)

	got, err := r.Resolve(testContext(t), "Cu")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_SecondaryAfterPrimaryFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	futures := mockSource(ctrl, market.SourceFutures)
	daily := mockSource(ctrl, market.SourceAlphaVantage)
	etf := NewMockSource(ctrl)
	equity := NewMockSource(ctrl)

	futures.EXPECT().Fetch(gomock.Any(), "Ag", "SI=F").
		Return(market.Quote{}, &market.SourceError{Kind: market.KindTransient, Reason: "Request timeout after 3 attempts"})
	// the keyed source reads the ETF registry first
	daily.EXPECT().Fetch(gomock.Any(), "Ag", "SLV").
		Return(market.Quote{Symbol: "Ag", Available: true, Source: market.SourceAlphaVantage, Price: 27.1}, nil)

	r := market.NewResolver(market.DefaultRoutes(futures, daily, etf, equity), market.Symbols)

	got, failures, err := r.ResolveDetailed(testContext(t), "Ag")
	require.NoError(t, err)
	assert.Equal(t, market.SourceAlphaVantage, got.Source)
	require.Len(t, failures, 1)
	assert.Equal(t, market.FailureRecord{Source: market.SourceFutures, Reason: "Request timeout after 3 attempts"}, failures[0])
}

func TestResolve_AllFail_PreservesOrderAndReasons(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	futures := mockSource(ctrl, market.SourceFutures)
	daily := mockSource(ctrl, market.SourceAlphaVantage)
	etf := mockSource(ctrl, market.SourceETFProxy)
	equity := mockSource(ctrl, market.SourceEquityProxy)

	futures.EXPECT().Fetch(gomock.Any(), "Au", "GC=F").Return(market.Quote{}, errors.New("HTTP 503"))
	daily.EXPECT().Fetch(gomock.Any(), "Au", "GLD").Return(market.Quote{}, errors.New("Alpha Vantage API key not configured"))
	etf.EXPECT().Fetch(gomock.Any(), "Au", "GLD").Return(market.Quote{}, errors.New("Insufficient data points"))
	equity.EXPECT().Fetch(gomock.Any(), "Au", "NEM").Return(market.Quote{}, errors.New("HTTP 404"))

	r := market.NewResolver(market.DefaultRoutes(futures, daily, etf, equity), market.Symbols)

	_, err := r.Resolve(testContext(t), "Au")
	var agg *market.AggregateFailure
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, []market.FailureRecord{
		{Source: market.SourceFutures, Reason: "HTTP 503"},
		{Source: market.SourceAlphaVantage, Reason: "Alpha Vantage API key not configured"},
		{Source: market.SourceETFProxy, Reason: "Insufficient data points"},
		{Source: market.SourceEquityProxy, Reason: "HTTP 404"},
	}, agg.Failures)
}

func TestResolve_UnknownSymbol_NoAdapterCalled(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	futures := mockSource(ctrl, market.SourceFutures)
	daily := mockSource(ctrl, market.SourceAlphaVantage)
	etf := mockSource(ctrl, market.SourceETFProxy)
	equity := mockSource(ctrl, market.SourceEquityProxy)

	r := market.NewResolver(market.DefaultRoutes(futures, daily, etf, equity), market.Symbols)

	_, err := r.Resolve(testContext(t), "Xx")
	var agg *market.AggregateFailure
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures, 4)
	for _, f := range agg.Failures {
		assert.Equal(t, "No ticker symbol configured", f.Reason)
	}

	p := agg.Payload()
	assert.False(t, p.Available)
	assert.Equal(t, "Xx", p.Symbol)
	assert.Equal(t, market.SourceAll, p.Source)
	assert.Contains(t, p.Message, "All data sources failed:")
	assert.Contains(t, p.Message, "- futures: No ticker symbol configured")
	assert.Contains(t, p.Message, "Available metals: Au, Ag, Cu, Pt, Pd, Al")
}
