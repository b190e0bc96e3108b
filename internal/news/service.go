package news

import (
	"context"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"golang.org/x/sync/singleflight"

	"metals-dashboard/internal/cache"
)

const DefaultMaxResults = 12

// Service answers news lookups through the shared cache. A lookup never
// fails: when both search flavours error the result has no articles, and
// that empty result is cached like any other.
type Service struct {
	search Searcher
	cache  *cache.TTL[any]
	max    int
	group  singleflight.Group
}

func NewService(search Searcher, c *cache.TTL[any], maxResults int) *Service {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Service{search: search, cache: c, max: maxResults}
}

func (s *Service) Lookup(ctx context.Context, q Query) Result {
	if q.Category == "" {
		q.Category = DefaultCategory
	}
	if q.Lang == "" {
		q.Lang = "en"
	}
	key := cache.Key("news", q.Symbol, q.Category, q.Lang)
	if v, ok := s.cache.Get(key); ok {
		if r, ok := v.(Result); ok {
			return r
		}
	}

	v, _, _ := s.group.Do(key, func() (any, error) {
		r := Result{
			Symbol:   q.Symbol,
			Category: q.Category,
			Articles: s.fetch(context.WithoutCancel(ctx), SearchText(q)),
		}
		s.cache.Set(key, r)
		return r, nil
	})
	return v.(Result)
}

func (s *Service) fetch(ctx context.Context, text string) []Article {
	articles, err := s.search.News(ctx, text, s.max)
	if err == nil {
		return articles
	}
	hlog.Warnf("news search failed for %q, falling back to text search: %v", text, err)

	articles, err = s.search.Text(ctx, text, s.max)
	if err != nil {
		hlog.Errorf("text search also failed for %q: %v", text, err)
		return []Article{}
	}
	return articles
}
