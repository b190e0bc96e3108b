package market

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"golang.org/x/sync/singleflight"

	"metals-dashboard/internal/cache"
)

// Service answers price lookups from the shared cache, falling back to the
// resolver on a miss. Only successful quotes are cached.
type Service struct {
	resolver *Resolver
	cache    *cache.TTL[any]
	group    singleflight.Group
}

func NewService(resolver *Resolver, c *cache.TTL[any]) *Service {
	return &Service{resolver: resolver, cache: c}
}

// Price returns a quote, an *AggregateFailure, or a *PanicError. In-flight
// upstream calls are not cancelled when the caller goes away.
func (s *Service) Price(ctx context.Context, symbol string) (Quote, error) {
	key := cache.Key("price", symbol)
	if v, ok := s.cache.Get(key); ok {
		if q, ok := v.(Quote); ok && q.Available {
			return q, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				hlog.Errorf("panic resolving %s: %v\n%s", symbol, r, debug.Stack())
				err = &PanicError{Value: r}
			}
		}()
		q, err := s.resolver.Resolve(context.WithoutCancel(ctx), symbol)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, q)
		hlog.Infof("fetched price for %s from %s: %.2f", symbol, q.Source, q.Price)
		return q, nil
	})
	if err != nil {
		var agg *AggregateFailure
		if errors.As(err, &agg) {
			hlog.Warnf("failed to fetch price for %s: %s", symbol, agg.Message())
		}
		return Quote{}, err
	}
	return v.(Quote), nil
}

// Supported lists the symbols the resolver knows about.
func (s *Service) Supported() []string {
	return s.resolver.Supported()
}
