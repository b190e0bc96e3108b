package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

const (
	defaultChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultWarmupURL    = "https://fc.yahoo.com"
	defaultUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// HTTPClient is the subset of *http.Client used by the adapters.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ChartClient is the long-lived session used for the chart endpoint. It keeps
// cookies between calls and is shared by every chart-backed source.
type ChartClient struct {
	baseURL   string
	warmupURL string
	userAgent string
	client    HTTPClient
}

type ChartOption func(*ChartClient)

func WithChartBaseURL(u string) ChartOption {
	return func(c *ChartClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithWarmupURL(u string) ChartOption {
	return func(c *ChartClient) {
		c.warmupURL = u
	}
}

func WithUserAgent(ua string) ChartOption {
	return func(c *ChartClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithChartHTTPClient(hc HTTPClient) ChartOption {
	return func(c *ChartClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

func NewChartClient(timeout time.Duration, opts ...ChartOption) *ChartClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	jar, _ := cookiejar.New(nil)
	c := &ChartClient{
		baseURL:   defaultChartBaseURL,
		warmupURL: defaultWarmupURL,
		userAgent: defaultUserAgent,
		client:    &http.Client{Timeout: timeout, Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Warmup fetches the consent cookie. Callers are expected to ignore the error.
func (c *ChartClient) Warmup(ctx context.Context, timeout time.Duration) error {
	if c.warmupURL == "" {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.warmupURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type chartResponse struct {
	Chart struct {
		Result []*chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Currency string `json:"currency"`
		Symbol   string `json:"symbol"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// series is a decoded daily chart with nullable columns.
type series struct {
	currency   string
	timestamps []int64
	open       []*float64
	high       []*float64
	low        []*float64
	close      []*float64
	volume     []*float64
}

// daily requests one month of daily bars for ticker.
func (c *ChartClient) daily(ctx context.Context, ticker string) (*series, error) {
	u, err := url.Parse(c.baseURL + "/" + url.PathEscape(ticker))
	if err != nil {
		return nil, newSourceError(KindConfiguration, "invalid chart url: %v", err)
	}
	q := u.Query()
	q.Set("range", "1mo")
	q.Set("interval", "1d")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, newSourceError(KindConfiguration, "build request: %v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyNetErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyNetErr(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, newSourceError(KindTransient, "empty response body")
	}
	return parseChart(body)
}

func parseChart(body []byte) (*series, error) {
	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &SourceError{Kind: KindUpstreamData, Reason: "decode chart", Err: err}
	}
	if e := payload.Chart.Error; e != nil {
		desc := e.Description
		if desc == "" {
			desc = "Unknown API error"
		}
		return nil, newSourceError(KindUpstreamData, "API Error: %s", desc)
	}
	if len(payload.Chart.Result) == 0 || payload.Chart.Result[0] == nil {
		return nil, newSourceError(KindUpstreamData, "No data returned from API")
	}
	r := payload.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 || len(r.Timestamp) == 0 || len(r.Indicators.Quote[0].Close) == 0 {
		return nil, newSourceError(KindUpstreamData, "Missing required data fields")
	}
	qt := r.Indicators.Quote[0]
	currency := r.Meta.Currency
	if currency == "" {
		currency = "USD"
	}
	return &series{
		currency:   currency,
		timestamps: r.Timestamp,
		open:       qt.Open,
		high:       qt.High,
		low:        qt.Low,
		close:      qt.Close,
		volume:     qt.Volume,
	}, nil
}

// validIndices returns, in upstream order, the positions that carry a close.
func (s *series) validIndices() []int {
	out := make([]int, 0, len(s.timestamps))
	for i := range s.timestamps {
		if at(s.close, i) != nil {
			out = append(out, i)
		}
	}
	return out
}

// bar normalizes row i. Missing open/high/low fall back to the close.
func (s *series) bar(i int) Bar {
	cl := *at(s.close, i)
	orClose := func(col []*float64) float64 {
		if v := at(col, i); v != nil && *v != 0 {
			return round2(*v)
		}
		return round2(cl)
	}
	var vol int64
	if v := at(s.volume, i); v != nil && *v > 0 {
		vol = int64(*v)
	}
	return Bar{
		Date:   time.Unix(s.timestamps[i], 0).UTC().Format("2006-01-02"),
		Open:   orClose(s.open),
		High:   orClose(s.high),
		Low:    orClose(s.low),
		Close:  round2(cl),
		Volume: vol,
	}
}

// quote assembles the normalized record from the latest and previous rows.
func (s *series) quote(symbol, ticker, source string, last, prev int, history []Bar) Quote {
	price := *at(s.close, last)
	prevClose := *at(s.close, prev)
	change, pct := changeFrom(price, prevClose)
	b := s.bar(last)
	return Quote{
		Symbol:    symbol,
		Ticker:    ticker,
		Available: true,
		Source:    source,
		Price:     round2(price),
		Change:    round2(change),
		ChangePct: round2(pct),
		Currency:  s.currency,
		High:      b.High,
		Low:       b.Low,
		Open:      b.Open,
		Volume:    b.Volume,
		Date:      b.Date,
		History:   history,
	}
}

func at(col []*float64, i int) *float64 {
	if i < 0 || i >= len(col) {
		return nil
	}
	return col[i]
}

func classifyNetErr(err error) *SourceError {
	if isTimeout(err) {
		return &SourceError{Kind: KindTransient, Reason: "request timeout", Err: err}
	}
	return &SourceError{Kind: KindTransient, Reason: "network error", Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func logFetch(source, symbol, ticker string) {
	hlog.Infof("[%s] fetching %s (%s)", source, symbol, ticker)
}
