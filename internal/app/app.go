// Package app wires configuration into the store, market-data providers and
// import service shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/portfolio-import/internal/config"
	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/JonMunkholm/portfolio-import/internal/marketdata"
	"github.com/JonMunkholm/portfolio-import/internal/store/postgres"
	"github.com/JonMunkholm/portfolio-import/internal/store/sqlite"
)

// OpenStore connects to the store selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config) (core.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolOptions{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Providers returns the market-data providers in resolution order. Alpha
// Vantage is only used when an API key is configured.
func Providers(cfg *config.Config, logger *slog.Logger) []core.MarketDataProvider {
	if !cfg.MarketData.Enabled {
		logger.Info("market data disabled; unknown securities get minimal records")
		return nil
	}

	client := &http.Client{Timeout: cfg.MarketData.Timeout}
	var providers []core.MarketDataProvider
	if cfg.MarketData.AlphaVantageKey != "" {
		providers = append(providers, marketdata.NewAlphaVantage(marketdata.Options{
			BaseURL:    cfg.MarketData.AlphaVantageURL,
			APIKey:     cfg.MarketData.AlphaVantageKey,
			HTTPClient: client,
		}))
	} else {
		logger.Info("ALPHAVANTAGE_API_KEY not set; skipping Alpha Vantage")
	}
	providers = append(providers, marketdata.NewYahoo(marketdata.Options{
		BaseURL:    cfg.MarketData.YahooURL,
		HTTPClient: client,
	}))
	return providers
}

// NewService builds the import service over store.
func NewService(cfg *config.Config, store core.Store, logger *slog.Logger) *core.Service {
	return core.NewService(store, Providers(cfg, logger), core.ServiceOptions{
		MaxConcurrent:   cfg.Import.MaxConcurrent,
		MaxWait:         cfg.Import.MaxWait,
		ImportTimeout:   cfg.Import.Timeout,
		ProviderTimeout: cfg.MarketData.Timeout,
		DefaultCurrency: cfg.Import.DefaultCurrency,
		Logger:          logger,
	})
}
