package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Cache  CacheConfig  `yaml:"cache"`
	Market MarketConfig `yaml:"market"`
	News   NewsConfig   `yaml:"news"`
	LLM    LLMConfig    `yaml:"llm"`
	Store  StoreConfig  `yaml:"store"`
}

type ServerConfig struct {
	Port    int    `yaml:"port"`
	WebRoot string `yaml:"web_root"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type CacheConfig struct {
	TTLSec int `yaml:"ttl_sec"`
}

type MarketConfig struct {
	RequestTimeoutMs int                `yaml:"request_timeout_ms"`
	WarmupTimeoutMs  int                `yaml:"warmup_timeout_ms"`
	UserAgent        string             `yaml:"user_agent"`
	ChartBaseURL     string             `yaml:"chart_base_url"`
	WarmupURL        string             `yaml:"warmup_url"`
	Retry            RetryConfig        `yaml:"retry"`
	AlphaVantage     AlphaVantageConfig `yaml:"alpha_vantage"`
}

type RetryConfig struct {
	Attempts  int `yaml:"attempts"`
	BackoffMs int `yaml:"backoff_ms"`
}

type AlphaVantageConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	PerMinute int    `yaml:"per_minute"`
	Burst     int    `yaml:"burst"`
}

type NewsConfig struct {
	MaxResults int    `yaml:"max_results"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	BaseURL    string `yaml:"base_url"`
	HTMLURL    string `yaml:"html_url"`
}

type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutMs   int     `yaml:"timeout_ms"`
}

type StoreConfig struct {
	Sqlite SqliteConfig `yaml:"sqlite"`
}

// SqliteConfig.Path empty keeps settings in memory.
type SqliteConfig struct {
	Path string `yaml:"path"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: 5001, WebRoot: "web"},
		Log:    LogConfig{Level: "info"},
		Cache:  CacheConfig{TTLSec: 300},
		Market: MarketConfig{
			RequestTimeoutMs: 15000,
			WarmupTimeoutMs:  5000,
			Retry:            RetryConfig{Attempts: 3, BackoffMs: 1000},
			AlphaVantage: AlphaVantageConfig{
				PerMinute: 5,
				Burst:     5,
			},
		},
		News: NewsConfig{
			MaxResults: 12,
			TimeoutMs:  10000,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 0.7,
			TimeoutMs:   60000,
		},
	}
}

// Load reads path over the defaults and applies env overrides. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.Market.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	return nil
}
