package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"metals-dashboard/internal/cache"
	"metals-dashboard/internal/llm"
	"metals-dashboard/internal/market"
	"metals-dashboard/internal/news"
	"metals-dashboard/internal/settings"
)

// Deps is everything the routes need. One instance is built at startup.
type Deps struct {
	Prices   *market.Service
	Cache    *cache.TTL[any]
	News     *news.Service
	LLM      *llm.Client
	Settings settings.Store
	WebRoot  string
}

type ClearCacheRequest struct {
	Symbol string `json:"symbol"`
}

func RegisterRoutes(h *server.Hertz, d Deps) {
	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	registerStatic(h, d.WebRoot)

	h.GET("/api/price/:symbol", func(ctx context.Context, c *app.RequestContext) {
		symbol := strings.TrimSpace(c.Param("symbol"))
		c.JSON(http.StatusOK, lookupPrice(ctx, d.Prices, symbol))
	})

	h.POST("/api/cache/clear", func(_ context.Context, c *app.RequestContext) {
		var req ClearCacheRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		if req.Symbol != "" {
			n := d.Cache.Invalidate(cache.MatchSymbol(req.Symbol))
			hlog.Infof("cache cleared for %s (%d entries)", req.Symbol, n)
		} else {
			d.Cache.Clear()
			hlog.Infof("cache cleared")
		}
		c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h.GET("/api/news/:symbol", func(ctx context.Context, c *app.RequestContext) {
		symbol := strings.TrimSpace(c.Param("symbol"))
		res := d.News.Lookup(ctx, news.Query{
			Symbol:   symbol,
			Category: c.DefaultQuery("category", news.DefaultCategory),
			Lang:     c.DefaultQuery("lang", "en"),
			Name:     c.DefaultQuery("name", symbol),
		})
		c.JSON(http.StatusOK, res)
	})

	h.POST("/api/ai/summarize", func(ctx context.Context, c *app.RequestContext) {
		if !llmReady(ctx, c, d.LLM) {
			return
		}
		var req llm.SummarizeRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		if len(req.Articles) == 0 {
			c.JSON(http.StatusBadRequest, map[string]any{"error": "No articles provided."})
			return
		}
		summary, err := d.LLM.Complete(ctx, llm.SummarizeMessages(req))
		if err != nil {
			hlog.CtxErrorf(ctx, "ai summarize error: %v", err)
			c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, map[string]any{"summary": summary})
	})

	h.POST("/api/ai/analyze", func(ctx context.Context, c *app.RequestContext) {
		if !llmReady(ctx, c, d.LLM) {
			return
		}
		var req llm.AnalyzeRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		stream(ctx, c, d.LLM, llm.AnalyzeMessages(req))
	})

	h.POST("/api/ai/chat", func(ctx context.Context, c *app.RequestContext) {
		if !llmReady(ctx, c, d.LLM) {
			return
		}
		var req llm.ChatRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		stream(ctx, c, d.LLM, llm.ChatMessages(req))
	})

	h.GET("/api/settings", func(ctx context.Context, c *app.RequestContext) {
		s, err := d.Settings.Get(ctx)
		if err != nil {
			hlog.CtxErrorf(ctx, "load settings: %v", err)
			c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.Masked())
	})

	h.POST("/api/settings", func(ctx context.Context, c *app.RequestContext) {
		var p settings.Patch
		if !bindOptionalJSON(c, &p) {
			return
		}
		if err := d.Settings.Update(ctx, p); err != nil {
			hlog.CtxErrorf(ctx, "update settings: %v", err)
			c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// lookupPrice always yields a JSON-ready payload: a Quote on success, an
// unavailable payload otherwise.
func lookupPrice(ctx context.Context, prices *market.Service, symbol string) (out any) {
	defer func() {
		if r := recover(); r != nil {
			hlog.CtxErrorf(ctx, "unexpected error in price lookup for %s: %v\n%s", symbol, r, debug.Stack())
			out = market.Unavailable{Symbol: symbol, Source: market.SourceException, Message: fmt.Sprint(r)}
		}
	}()

	q, err := prices.Price(ctx, symbol)
	if err == nil {
		return q
	}
	var agg *market.AggregateFailure
	if errors.As(err, &agg) {
		return agg.Payload()
	}
	hlog.CtxErrorf(ctx, "unexpected error in price lookup for %s: %v", symbol, err)
	return market.Unavailable{Symbol: symbol, Source: market.SourceException, Message: err.Error()}
}

func llmReady(ctx context.Context, c *app.RequestContext, client *llm.Client) bool {
	err := client.Ready(ctx)
	if err == nil {
		return true
	}
	if errors.Is(err, llm.ErrNotConfigured) {
		c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
		return false
	}
	hlog.CtxErrorf(ctx, "llm not ready: %v", err)
	c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
	return false
}

// bindOptionalJSON treats an empty body as an empty object.
func bindOptionalJSON(c *app.RequestContext, v any) bool {
	if len(c.Request.Body()) == 0 {
		return true
	}
	if err := c.BindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid json body"})
		return false
	}
	return true
}

func registerStatic(h *server.Hertz, root string) {
	if root == "" {
		return
	}
	index := filepath.Join(root, "index.html")
	if _, err := os.Stat(index); err != nil {
		hlog.Warnf("dashboard page not served: %v", err)
		return
	}
	h.StaticFile("/", index)
	h.Static("/static", root)
}
