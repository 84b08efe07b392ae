// Package app assembles the futures client stack from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"binance-futures-client/config"
	"binance-futures-client/internal/binance"
	"binance-futures-client/internal/cache"
	"binance-futures-client/internal/orders"
	"binance-futures-client/internal/vault"
)

// App holds the wired components
type App struct {
	Client   *binance.Client
	Limiter  *binance.RateLimiter
	Router   *orders.Router
	BanStore *cache.BanStore // nil when Redis is disabled
}

// Build creates the executor, rate limiter and order router. Credentials come from
// configuration first and from Vault when the configured key is empty.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	apiKey, secretKey, err := resolveCredentials(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	limiter := binance.NewRateLimiter(logger)
	if cfg.BinanceConfig.RateLimitWait > 0 {
		limiter.SetMaxWait(cfg.BinanceConfig.RateLimitWait)
	}

	a := &App{Limiter: limiter}

	if cfg.RedisConfig.Enabled {
		store, err := cache.NewBanStore(cfg.RedisConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create ban store: %w", err)
		}
		limiter.SetBanStore(store)
		a.BanStore = store
	}

	a.Client = binance.NewClient(binance.Options{
		APIKey:         apiKey,
		SecretKey:      secretKey,
		Testnet:        cfg.BinanceConfig.TestNet,
		BaseURL:        cfg.BinanceConfig.BaseURL,
		RecvWindow:     cfg.BinanceConfig.RecvWindow,
		Timeout:        cfg.BinanceConfig.Timeout,
		MaxRetries:     cfg.BinanceConfig.MaxRetries,
		RetryBaseDelay: cfg.BinanceConfig.RetryBaseDelay,
		Limiter:        limiter,
		Logger:         logger,
	})

	a.Router = orders.NewRouter(a.Client, RouterConfig(cfg.RouterConfig), logger)

	logger.Info().
		Str("base_url", a.Client.BaseURL()).
		Bool("auto_switch", cfg.RouterConfig.AutoSwitch()).
		Bool("algo_on_not_found", cfg.RouterConfig.AttemptAlgoOnNotFound).
		Bool("shared_ban_store", a.BanStore != nil).
		Msg("Futures client ready")

	return a, nil
}

// Close releases external connections
func (a *App) Close() error {
	if a.BanStore != nil {
		return a.BanStore.Close()
	}
	return nil
}

// RouterConfig converts the config section into router settings
func RouterConfig(rc config.RouterConfig) orders.Config {
	return orders.Config{
		AutoSwitchConditionalToAlgo: rc.AutoSwitch(),
		AttemptAlgoOnNotFound:       rc.AttemptAlgoOnNotFound,
		BatchConcurrency:            rc.BatchConcurrency,
		ClientOrderIDPrefix:         rc.ClientOrderIDPrefix,
	}
}

func resolveCredentials(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (string, string, error) {
	if cfg.BinanceConfig.APIKey != "" || !cfg.VaultConfig.Enabled {
		return cfg.BinanceConfig.APIKey, cfg.BinanceConfig.SecretKey, nil
	}

	vc, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		return "", "", fmt.Errorf("failed to create vault client: %w", err)
	}

	creds, err := vc.GetCredentials(ctx, cfg.VaultConfig.Profile, cfg.BinanceConfig.TestNet)
	if errors.Is(err, vault.ErrNotFound) {
		logger.Warn().
			Str("profile", cfg.VaultConfig.Profile).
			Bool("testnet", cfg.BinanceConfig.TestNet).
			Msg("No credentials in Vault, signed endpoints will be unavailable")
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to load credentials from vault: %w", err)
	}

	logger.Info().Str("profile", cfg.VaultConfig.Profile).Msg("Loaded API credentials from Vault")
	return creds.APIKey, creds.SecretKey, nil
}
