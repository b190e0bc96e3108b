package market_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metals-dashboard/internal/cache"
	"metals-dashboard/internal/market"
)

type countingSource struct {
	calls atomic.Int32
	fail  atomic.Bool
	gate  chan struct{}
}

func (s *countingSource) Name() string { return market.SourceFutures }

func (s *countingSource) Fetch(_ context.Context, symbol, ticker string) (market.Quote, error) {
	n := s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.fail.Load() {
		return market.Quote{}, errors.New("HTTP 503")
	}
	return market.Quote{
		Symbol:    symbol,
		Ticker:    ticker,
		Available: true,
		Source:    market.SourceFutures,
		Price:     100 + float64(n),
	}, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(src market.Source, clock *testClock) (*market.Service, *cache.TTL[any]) {
	c := cache.New(cache.DefaultTTL, cache.WithClock[any](clock.Now))
	r := market.NewResolver([]market.Route{
		{Source: src, Tickers: market.TickersFrom(market.FuturesTickers)},
	}, market.Symbols)
	return market.NewService(r, c), c
}

func TestService_CachedWithinTTL(t *testing.T) {
	t.Parallel()

	// Arrange
	src := &countingSource{}
	clock := &testClock{now: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(src, clock)

	// Act
	first, err := svc.Price(testContext(t), "Cu")
	require.NoError(t, err)
	clock.Advance(299 * time.Second)
	second, err := svc.Price(testContext(t), "Cu")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestService_RefetchesAfterTTL(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	clock := &testClock{now: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(src, clock)

	first, err := svc.Price(testContext(t), "Au")
	require.NoError(t, err)
	clock.Advance(300 * time.Second)
	second, err := svc.Price(testContext(t), "Au")
	require.NoError(t, err)

	assert.Equal(t, int32(2), src.calls.Load())
	assert.NotEqual(t, first.Price, second.Price)
}

func TestService_FailuresAreNotCached(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	src.fail.Store(true)
	clock := &testClock{now: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)}
	svc, c := newTestService(src, clock)

	_, err := svc.Price(testContext(t), "Pt")
	var agg *market.AggregateFailure
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, 0, c.Len())

	src.fail.Store(false)
	q, err := svc.Price(testContext(t), "Pt")
	require.NoError(t, err)
	assert.True(t, q.Available)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestService_ClearOneSymbolKeepsOthers(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	clock := &testClock{now: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)}
	svc, c := newTestService(src, clock)

	_, err := svc.Price(testContext(t), "Au")
	require.NoError(t, err)
	_, err = svc.Price(testContext(t), "Ag")
	require.NoError(t, err)
	require.Equal(t, int32(2), src.calls.Load())

	assert.Equal(t, 1, c.Invalidate(cache.MatchSymbol("Au")))

	_, err = svc.Price(testContext(t), "Au")
	require.NoError(t, err)
	_, err = svc.Price(testContext(t), "Ag")
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestService_ConcurrentMissesShareOneFetch(t *testing.T) {
	t.Parallel()

	src := &countingSource{gate: make(chan struct{})}
	clock := &testClock{now: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(src, clock)

	var wg sync.WaitGroup
	results := make([]market.Quote, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := svc.Price(context.Background(), "Pd")
			assert.NoError(t, err)
			results[i] = q
		}(i)
	}
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// let the other callers pile up on the in-flight fetch
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, q := range results {
		assert.Equal(t, results[0], q)
	}
}

func TestService_CallerCancelDoesNotAbortFetch(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	clock := &testClock{now: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(src, clock)

	ctx, cancel := context.WithCancel(testContext(t))
	cancel()

	q, err := svc.Price(ctx, "Al")
	require.NoError(t, err)
	assert.Equal(t, "ALI=F", q.Ticker)
}

type panickingSource struct{}

func (panickingSource) Name() string { return market.SourceFutures }

func (panickingSource) Fetch(context.Context, string, string) (market.Quote, error) {
	panic("nil chart result")
}

func TestService_PanicBecomesError(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)}
	svc, c := newTestService(panickingSource{}, clock)

	_, err := svc.Price(testContext(t), "Cu")
	var pe *market.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "nil chart result", err.Error())
	assert.Equal(t, 0, c.Len())
}
