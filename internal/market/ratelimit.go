package market

import (
	"time"

	"golang.org/x/time/rate"
)

// NewQuotaLimiter allows perMinute calls with the given burst, for staying
// under an upstream's published quota. perMinute <= 0 disables limiting.
func NewQuotaLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = perMinute
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}
