package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	// RefreshCron schedules an automatic (non-forced) refresh of all
	// holdings. Empty disables the schedule.
	RefreshCron string `json:"refresh_cron"`
}

type Store struct {
	SQLitePath string `json:"sqlite_path"`
}

type AlphaVantage struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	// CooldownSec is the pause after each real upstream call. The free
	// plan allows 5 requests per minute.
	CooldownSec int `json:"cooldown_sec"`
}

type Config struct {
	Server       Server       `json:"server"`
	Store        Store        `json:"store"`
	AlphaVantage AlphaVantage `json:"alphavantage"`
	BaseCurrency string       `json:"base_currency"`
}

func Default() Config {
	return Config{
		Server: Server{
			Port:              "8080",
			RequestTimeoutSec: 30,
		},
		Store: Store{
			SQLitePath: "data/portfolio.db",
		},
		AlphaVantage: AlphaVantage{
			BaseURL:     "https://www.alphavantage.co/query",
			CooldownSec: 12,
		},
		BaseCurrency: "CAD",
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields so that
// secrets stay out of the config file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("REFRESH_CRON"); v != "" {
		cfg.Server.RefreshCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("ALPHAVANTAGE_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_BASE_URL"); v != "" {
		cfg.AlphaVantage.BaseURL = v
	}
	if v := os.Getenv("ALPHAVANTAGE_COOLDOWN_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.AlphaVantage.CooldownSec = x
		}
	}
	if v := os.Getenv("BASE_CURRENCY"); v != "" {
		cfg.BaseCurrency = v
	}
}

// Validate checks the fields the process cannot run without. A missing
// Alpha Vantage key is deliberately not an error: it disables fetching,
// while cached data can still be served.
func (c *Config) Validate() error {
	if c.Store.SQLitePath == "" {
		return fmt.Errorf("store.sqlite_path is required")
	}
	if c.Server.RequestTimeoutSec <= 0 {
		return fmt.Errorf("server.request_timeout_sec must be positive")
	}
	return nil
}
