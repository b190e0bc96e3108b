package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"metals-dashboard/internal/api"
	"metals-dashboard/internal/cache"
	"metals-dashboard/internal/config"
	"metals-dashboard/internal/llm"
	"metals-dashboard/internal/market"
	"metals-dashboard/internal/news"
	"metals-dashboard/internal/settings"
)

func main() {
	configPath := flag.String("config", "configs/app.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	hlog.SetLevel(parseLevel(cfg.Log.Level))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))

	store, closeStore, err := openSettings(cfg)
	if err != nil {
		log.Fatalf("settings store error: %v", err)
	}
	defer closeStore()

	shared := cache.New[any](time.Duration(cfg.Cache.TTLSec) * time.Second)

	chartOpts := []market.ChartOption{
		market.WithChartBaseURL(cfg.Market.ChartBaseURL),
		market.WithUserAgent(cfg.Market.UserAgent),
	}
	if cfg.Market.WarmupURL != "" {
		chartOpts = append(chartOpts, market.WithWarmupURL(cfg.Market.WarmupURL))
	}
	requestTimeout := time.Duration(cfg.Market.RequestTimeoutMs) * time.Millisecond
	chart := market.NewChartClient(requestTimeout, chartOpts...)
	if err := chart.Warmup(context.Background(), time.Duration(cfg.Market.WarmupTimeoutMs)*time.Millisecond); err != nil {
		hlog.Debugf("chart session warm-up failed: %v", err)
	}

	av := cfg.Market.AlphaVantage
	if av.APIKey == "" {
		hlog.Infof("alpha vantage key not set; keyed daily source will be skipped")
	}
	resolver := market.NewResolver(market.DefaultRoutes(
		market.NewFuturesSource(chart,
			market.WithAttempts(cfg.Market.Retry.Attempts),
			market.WithBackoff(time.Duration(cfg.Market.Retry.BackoffMs)*time.Millisecond),
		),
		market.NewAlphaVantageSource(av.APIKey, requestTimeout,
			market.WithAlphaVantageURL(av.BaseURL),
			market.WithLimiter(market.NewQuotaLimiter(av.PerMinute, av.Burst)),
		),
		market.NewETFSource(chart),
		market.NewEquitySource(chart),
	), market.Symbols)

	ddg := news.NewDuckDuckGo(time.Duration(cfg.News.TimeoutMs)*time.Millisecond,
		news.WithBaseURL(cfg.News.BaseURL),
		news.WithHTMLURL(cfg.News.HTMLURL),
	)

	api.RegisterRoutes(h, api.Deps{
		Prices:   market.NewService(resolver, shared),
		Cache:    shared,
		News:     news.NewService(ddg, shared, cfg.News.MaxResults),
		LLM:      llm.NewClient(store, llm.OpenAIFactory(time.Duration(cfg.LLM.TimeoutMs)*time.Millisecond)),
		Settings: store,
		WebRoot:  cfg.Server.WebRoot,
	})

	hlog.Infof("server starting on %s (log.level=%s, metals=%s)", addr, cfg.Log.Level, strings.Join(market.Symbols, ","))
	h.Spin()
}

func openSettings(cfg *config.Config) (settings.Store, func(), error) {
	defaults := settings.Settings{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	}
	if cfg.Store.Sqlite.Path == "" {
		return settings.NewMemoryStore(defaults), func() {}, nil
	}
	st, err := settings.OpenSQLite(cfg.Store.Sqlite.Path, defaults)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {
		if err := st.Close(); err != nil {
			hlog.Errorf("settings store close error: %v", err)
		}
	}, nil
}

func parseLevel(s string) hlog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return hlog.LevelTrace
	case "debug":
		return hlog.LevelDebug
	case "warn", "warning":
		return hlog.LevelWarn
	case "error":
		return hlog.LevelError
	default:
		return hlog.LevelInfo
	}
}
