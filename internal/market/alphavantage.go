package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAlphaVantageURL = "https://www.alphavantage.co/query"
	alphaVantageHistoryLen = 30
)

// AlphaVantageSource is the keyed daily-series adapter. It needs an API key
// and never retries: the free tier is a handful of calls per minute.
type AlphaVantageSource struct {
	baseURL string
	apiKey  string
	client  HTTPClient
	limiter *rate.Limiter
}

type AlphaVantageOption func(*AlphaVantageSource)

func WithAlphaVantageURL(u string) AlphaVantageOption {
	return func(s *AlphaVantageSource) {
		if u != "" {
			s.baseURL = u
		}
	}
}

func WithAlphaVantageHTTPClient(hc HTTPClient) AlphaVantageOption {
	return func(s *AlphaVantageSource) {
		if hc != nil {
			s.client = hc
		}
	}
}

func WithLimiter(l *rate.Limiter) AlphaVantageOption {
	return func(s *AlphaVantageSource) {
		s.limiter = l
	}
}

func NewAlphaVantageSource(apiKey string, timeout time.Duration, opts ...AlphaVantageOption) *AlphaVantageSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	s := &AlphaVantageSource{
		baseURL: defaultAlphaVantageURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AlphaVantageSource) Name() string { return SourceAlphaVantage }

type avDay struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type avResponse struct {
	ErrorMessage string           `json:"Error Message"`
	Note         string           `json:"Note"`
	Information  string           `json:"Information"`
	Series       map[string]avDay `json:"Time Series (Daily)"`
}

func (s *AlphaVantageSource) Fetch(ctx context.Context, symbol, ticker string) (Quote, error) {
	if s.apiKey == "" {
		return Quote{}, newSourceError(KindConfiguration, "Alpha Vantage API key not configured")
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return Quote{}, newSourceError(KindRateLimit, "API call frequency limit reached (local quota)")
	}
	logFetch(s.Name(), symbol, ticker)

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return Quote{}, newSourceError(KindConfiguration, "invalid base url: %v", err)
	}
	q := u.Query()
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", ticker)
	q.Set("apikey", s.apiKey)
	q.Set("outputsize", "compact")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Quote{}, newSourceError(KindConfiguration, "build request: %v", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Quote{}, classifyNetErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Quote{}, statusError(resp.StatusCode)
	}

	var payload avResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, &SourceError{Kind: KindUpstreamData, Reason: "decode alpha vantage", Err: err}
	}
	switch {
	case payload.ErrorMessage != "":
		return Quote{}, newSourceError(KindUpstreamData, "%s", payload.ErrorMessage)
	case payload.Note != "" || payload.Information != "":
		return Quote{}, newSourceError(KindRateLimit, "API call frequency limit reached")
	case len(payload.Series) == 0:
		return Quote{}, newSourceError(KindUpstreamData, "No time series data returned")
	}
	return buildDailyQuote(symbol, ticker, payload.Series)
}

func buildDailyQuote(symbol, ticker string, ts map[string]avDay) (Quote, error) {
	dates := make([]string, 0, len(ts))
	for d := range ts {
		dates = append(dates, d)
	}
	// ISO dates sort lexically
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) < 2 {
		return Quote{}, newSourceError(KindUpstreamData, "Insufficient historical data")
	}

	n := min(alphaVantageHistoryLen, len(dates))
	history := make([]Bar, 0, n)
	for _, d := range dates[:n] {
		b, err := parseAVDay(d, ts[d])
		if err != nil {
			return Quote{}, err
		}
		history = append(history, b)
	}

	// both closes already parsed cleanly above
	latest := history[0]
	price, _ := strconv.ParseFloat(ts[dates[0]].Close, 64)
	prevClose, _ := strconv.ParseFloat(ts[dates[1]].Close, 64)
	change, pct := changeFrom(price, prevClose)

	return Quote{
		Symbol:    symbol,
		Ticker:    ticker,
		Available: true,
		Source:    SourceAlphaVantage,
		Price:     round2(price),
		Change:    round2(change),
		ChangePct: round2(pct),
		Currency:  "USD",
		High:      latest.High,
		Low:       latest.Low,
		Open:      latest.Open,
		Volume:    latest.Volume,
		Date:      latest.Date,
		History:   history,
	}, nil
}

func parseAVDay(date string, d avDay) (Bar, error) {
	cl, err := strconv.ParseFloat(d.Close, 64)
	if err != nil {
		return Bar{}, newSourceError(KindUpstreamData, "invalid close for %s", date)
	}
	num := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v == 0 {
			return round2(cl)
		}
		return round2(v)
	}
	var vol int64
	if v, err := strconv.ParseFloat(d.Volume, 64); err == nil && v > 0 {
		vol = int64(v)
	}
	return Bar{
		Date:   date,
		Open:   num(d.Open),
		High:   num(d.High),
		Low:    num(d.Low),
		Close:  round2(cl),
		Volume: vol,
	}, nil
}
