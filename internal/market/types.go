package market

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Source labels reported in Quote.Source and FailureRecord.Source.
const (
	SourceFutures      = "futures"
	SourceAlphaVantage = "alpha_vantage"
	SourceETFProxy     = "etf_proxy"
	SourceEquityProxy  = "equity_proxy"

	SourceAll       = "all_sources"
	SourceException = "exception"
)

// Bar is one daily OHLCV point.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Quote is the normalized result of a successful price lookup.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Ticker    string  `json:"ticker"`
	Available bool    `json:"available"`
	Source    string  `json:"source"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	Currency  string  `json:"currency"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Open      float64 `json:"open"`
	Volume    int64   `json:"volume"`
	Date      string  `json:"date"`
	History   []Bar   `json:"history"`
}

// Unavailable is the payload returned when no quote could be produced.
type Unavailable struct {
	Symbol    string `json:"symbol"`
	Available bool   `json:"available"`
	Source    string `json:"source"`
	Message   string `json:"message"`
}

// ErrorKind classifies why a source failed.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindTransient     ErrorKind = "transient"
	KindUpstreamData  ErrorKind = "upstream_data"
	KindRateLimit     ErrorKind = "rate_limit"
)

// SourceError is returned by every adapter failure.
type SourceError struct {
	Kind   ErrorKind
	Reason string
	Err    error
	// Status is the upstream HTTP status for non-200 responses, else 0.
	Status int
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func newSourceError(kind ErrorKind, format string, args ...any) *SourceError {
	return &SourceError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// statusError classifies a non-200 upstream response. 429 is explicit
// throttling; everything else is treated as transient.
func statusError(code int) *SourceError {
	kind := KindTransient
	if code == http.StatusTooManyRequests {
		kind = KindRateLimit
	}
	return &SourceError{Kind: kind, Reason: fmt.Sprintf("HTTP %d", code), Status: code}
}

// retryable reports whether the primary adapter should try again.
func (e *SourceError) retryable() bool {
	return e.Kind == KindTransient || e.Status != 0
}

// KindOf reports the classification of err, or "" when err is not a SourceError.
func KindOf(err error) ErrorKind {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// FailureRecord is one source's failure during a resolution.
type FailureRecord struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// AggregateFailure is returned when every source failed for a symbol.
type AggregateFailure struct {
	Symbol    string
	Failures  []FailureRecord
	Supported []string
}

func (e *AggregateFailure) Error() string {
	return fmt.Sprintf("all data sources failed for %s", e.Symbol)
}

// Message renders the failure list the way the dashboard displays it.
func (e *AggregateFailure) Message() string {
	lines := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		lines = append(lines, fmt.Sprintf("- %s: %s", f.Source, f.Reason))
	}
	return fmt.Sprintf("All data sources failed:\n%s\n\nAvailable metals: %s",
		strings.Join(lines, "\n"), strings.Join(e.Supported, ", "))
}

// Payload converts the failure into the response body.
func (e *AggregateFailure) Payload() Unavailable {
	return Unavailable{Symbol: e.Symbol, Source: SourceAll, Message: e.Message()}
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// changeFrom returns the absolute and percentage move from prev to price.
func changeFrom(price, prev float64) (float64, float64) {
	change := price - prev
	if prev == 0 {
		return change, 0
	}
	return change, change / prev * 100
}

// PanicError carries a recovered panic out of a lookup.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}
