package market_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metals-dashboard/internal/market"
)

// day0 is 2025-01-02 00:00:00 UTC.
const day0 int64 = 1735776000

func ptr(v float64) *float64 { return &v }

func days(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = day0 + int64(i)*86400
	}
	return out
}

// chartBody renders a chart payload with only closes and volumes, so
// open/high/low are absent upstream.
func chartBody(t *testing.T, closes []*float64) []byte {
	t.Helper()
	vols := make([]*float64, len(closes))
	for i := range vols {
		vols[i] = ptr(float64(1000 + i))
	}
	body, err := json.Marshal(map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta":      map[string]any{"currency": "USD"},
				"timestamp": days(len(closes)),
				"indicators": map[string]any{
					"quote": []any{map[string]any{"close": closes, "volume": vols}},
				},
			}},
			"error": nil,
		},
	})
	require.NoError(t, err)
	return body
}

func newChartServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func newChartClient(srv *httptest.Server, timeout time.Duration) *market.ChartClient {
	return market.NewChartClient(timeout,
		market.WithChartBaseURL(srv.URL+"/v8/finance/chart"),
		market.WithWarmupURL(""),
	)
}

// assertRoundTrip checks change_pct against price and change.
func assertRoundTrip(t *testing.T, q market.Quote) {
	t.Helper()
	prev := q.Price - q.Change
	if prev == 0 {
		assert.Zero(t, q.ChangePct)
		return
	}
	assert.InDelta(t, q.Change/prev*100, q.ChangePct, 0.01)
}
