package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// FuturesSource is the primary adapter. It pulls the trailing month of daily
// futures bars and retries transient failures with a fixed backoff.
type FuturesSource struct {
	chart    *ChartClient
	attempts int
	backoff  time.Duration
}

type FuturesOption func(*FuturesSource)

func WithAttempts(n int) FuturesOption {
	return func(s *FuturesSource) {
		if n > 0 {
			s.attempts = n
		}
	}
}

func WithBackoff(d time.Duration) FuturesOption {
	return func(s *FuturesSource) {
		if d >= 0 {
			s.backoff = d
		}
	}
}

func NewFuturesSource(chart *ChartClient, opts ...FuturesOption) *FuturesSource {
	s := &FuturesSource{chart: chart, attempts: 3, backoff: time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FuturesSource) Name() string { return SourceFutures }

func (s *FuturesSource) Fetch(ctx context.Context, symbol, ticker string) (Quote, error) {
	logFetch(s.Name(), symbol, ticker)

	var lastErr *SourceError
	for attempt := 0; attempt < s.attempts; attempt++ {
		data, err := s.chart.daily(ctx, ticker)
		if err == nil {
			return buildFuturesQuote(symbol, ticker, data)
		}
		var se *SourceError
		if !errors.As(err, &se) || !se.retryable() {
			return Quote{}, err
		}
		lastErr = se
		if attempt < s.attempts-1 {
			hlog.Warnf("[%s] attempt %d failed for %s: %v, retrying", s.Name(), attempt+1, symbol, se)
			if err := sleepCtx(ctx, s.backoff); err != nil {
				return Quote{}, &SourceError{Kind: KindTransient, Reason: "retry aborted", Err: err}
			}
		}
	}
	return Quote{}, exhausted(lastErr, s.attempts)
}

func buildFuturesQuote(symbol, ticker string, data *series) (Quote, error) {
	valid := data.validIndices()
	if len(valid) == 0 {
		return Quote{}, newSourceError(KindUpstreamData, "No valid price data available")
	}
	last := valid[len(valid)-1]
	prev := last
	if len(valid) > 1 {
		prev = valid[len(valid)-2]
	}
	history := make([]Bar, 0, len(valid))
	for _, i := range valid {
		history = append(history, data.bar(i))
	}
	return data.quote(symbol, ticker, SourceFutures, last, prev, history), nil
}

// exhausted reports the last transient failure after the retry budget ran out.
func exhausted(last *SourceError, attempts int) *SourceError {
	if last == nil {
		return newSourceError(KindTransient, "all retry attempts exhausted")
	}
	switch {
	case last.Reason == "request timeout":
		return newSourceError(KindTransient, "Request timeout after %d attempts", attempts)
	case last.Status != 0:
		return &SourceError{
			Kind:   last.Kind,
			Reason: fmt.Sprintf("Failed after %d attempts. Status: %s", attempts, last.Reason),
			Status: last.Status,
		}
	case last.Err == nil:
		return newSourceError(KindTransient, "Failed after %d attempts. Status: %s", attempts, last.Reason)
	default:
		return &SourceError{Kind: KindTransient, Reason: fmt.Sprintf("Network error after %d attempts", attempts), Err: last.Err}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
