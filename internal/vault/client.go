package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"binance-futures-client/config"
)

var (
	// ErrNotFound is returned when no credentials exist for a profile
	ErrNotFound = errors.New("credentials not found")

	// ErrDisabled is returned by NewClient when Vault is not enabled
	ErrDisabled = errors.New("vault is not enabled in configuration")
)

// Credentials represents the exchange API key pair stored in Vault
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	IsTestnet bool   `json:"is_testnet"`
}

// Client wraps the HashiCorp Vault KV v2 engine. Reads are cached per
// profile and network for the life of the client.
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cache  map[string]*Credentials // profile/network -> Credentials
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
		cache:  make(map[string]*Credentials),
	}, nil
}

// StoreCredentials writes credentials for a profile
func (c *Client) StoreCredentials(ctx context.Context, profile string, creds Credentials) error {
	if creds.APIKey == "" || creds.SecretKey == "" {
		return fmt.Errorf("api key and secret key are required")
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":    creds.APIKey,
			"secret_key": creds.SecretKey,
			"is_testnet": creds.IsTestnet,
		},
	}

	_, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(profile, creds.IsTestnet), secretData)
	if err != nil {
		return fmt.Errorf("failed to store credentials in vault: %w", err)
	}

	c.mu.Lock()
	c.cache[cacheKey(profile, creds.IsTestnet)] = &creds
	c.mu.Unlock()

	return nil
}

// GetCredentials reads credentials for a profile and network
func (c *Client) GetCredentials(ctx context.Context, profile string, isTestnet bool) (*Credentials, error) {
	c.mu.RLock()
	cached, ok := c.cache[cacheKey(profile, isTestnet)]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(profile, isTestnet))
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w for profile %q", ErrNotFound, profile)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	creds := &Credentials{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
		IsTestnet: getBool(data, "is_testnet"),
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("%w for profile %q: incomplete secret", ErrNotFound, profile)
	}

	c.mu.Lock()
	c.cache[cacheKey(profile, isTestnet)] = creds
	c.mu.Unlock()

	return creds, nil
}

// DeleteCredentials removes all versions of a profile's credentials
func (c *Client) DeleteCredentials(ctx context.Context, profile string, isTestnet bool) error {
	c.mu.Lock()
	delete(c.cache, cacheKey(profile, isTestnet))
	c.mu.Unlock()

	_, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(profile, isTestnet))
	if err != nil {
		return fmt.Errorf("failed to delete credentials from vault: %w", err)
	}

	return nil
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path for a profile
func (c *Client) secretPath(profile string, isTestnet bool) string {
	return fmt.Sprintf("%s/data/%s/%s_%s", c.config.MountPath, c.config.SecretPath, profile, network(isTestnet))
}

// metadataPath returns the KV v2 metadata path for a profile
func (c *Client) metadataPath(profile string, isTestnet bool) string {
	return fmt.Sprintf("%s/metadata/%s/%s_%s", c.config.MountPath, c.config.SecretPath, profile, network(isTestnet))
}

func cacheKey(profile string, isTestnet bool) string {
	return profile + "/" + network(isTestnet)
}

func network(isTestnet bool) string {
	if isTestnet {
		return "testnet"
	}
	return "mainnet"
}

// Helper functions
func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getBool(data map[string]interface{}, key string) bool {
	if val, ok := data[key]; ok {
		switch v := val.(type) {
		case bool:
			return v
		case string:
			return v == "true"
		case json.Number:
			n, _ := v.Int64()
			return n != 0
		}
	}
	return false
}
