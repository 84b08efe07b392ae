package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	BinanceConfig BinanceConfig `json:"binance"`
	RouterConfig  RouterConfig  `json:"router"`
	LoggingConfig LoggingConfig `json:"logging"`
	ServerConfig  ServerConfig  `json:"server"`
	AuthConfig    AuthConfig    `json:"auth"`
	VaultConfig   VaultConfig   `json:"vault"`
	RedisConfig   RedisConfig   `json:"redis"`
	MetricsConfig MetricsConfig `json:"metrics"`
}

// BinanceConfig holds exchange connection settings. Credentials may come from
// here, the environment, or Vault (see VaultConfig.Profile).
type BinanceConfig struct {
	APIKey         string        `json:"api_key"`
	SecretKey      string        `json:"secret_key"`
	BaseURL        string        `json:"base_url"` // overrides testnet selection when set
	TestNet        bool          `json:"testnet"`
	RecvWindow     int64         `json:"recv_window"` // milliseconds
	Timeout        time.Duration `json:"timeout"`
	MaxRetries     int           `json:"max_retries"`
	RetryBaseDelay time.Duration `json:"retry_base_delay"`
	RateLimitWait  time.Duration `json:"rate_limit_wait"` // max time to wait for a weight slot
}

// RouterConfig holds order routing behavior
type RouterConfig struct {
	AutoSwitchConditionalToAlgo *bool  `json:"auto_switch_conditional_to_algo"` // nil means true
	AttemptAlgoOnNotFound       bool   `json:"attempt_algo_on_not_found"`
	BatchConcurrency            int    `json:"batch_concurrency"`
	ClientOrderIDPrefix         string `json:"client_order_id_prefix"` // empty disables generated ids
}

// AutoSwitch resolves the auto-switch flag, defaulting to true
func (r RouterConfig) AutoSwitch() bool {
	if r.AutoSwitchConditionalToAlgo == nil {
		return true
	}
	return *r.AutoSwitchConditionalToAlgo
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// ServerConfig holds HTTP gateway configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins, comma separated
	TLSEnabled      bool   `json:"tls_enabled"`
	TLSCertFile     string `json:"tls_cert_file"`
	TLSKeyFile      string `json:"tls_key_file"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// AuthConfig holds gateway service-token configuration
type AuthConfig struct {
	Enabled       bool          `json:"enabled"`
	JWTSecret     string        `json:"jwt_secret"`
	Issuer        string        `json:"issuer"`
	TokenDuration time.Duration `json:"token_duration"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV v2 secrets engine mount path
	SecretPath string `json:"secret_path"` // Path prefix for API credentials
	Profile    string `json:"profile"`     // credential profile loaded at startup
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// RedisConfig holds Redis configuration for shared rate-limit state
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	BanKey   string `json:"ban_key"`
}

// MetricsConfig holds the Prometheus listener. An empty address serves /metrics
// on the gateway port only.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
}

// Load reads CONFIG_FILE (default config.json) when present, then applies
// environment overrides and defaults.
func Load() (*Config, error) {
	filename := getEnvOrDefault("CONFIG_FILE", "config.json")

	cfg, err := loadFromFile(filename)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Variables that are unset leave file values untouched.
func applyEnvOverrides(cfg *Config) {
	// Binance config
	cfg.BinanceConfig.APIKey = getEnvOrDefault("BINANCE_API_KEY", cfg.BinanceConfig.APIKey)
	cfg.BinanceConfig.SecretKey = getEnvOrDefault("BINANCE_SECRET_KEY", cfg.BinanceConfig.SecretKey)
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.BinanceConfig.TestNet = getEnvBoolOrDefault("BINANCE_TESTNET", cfg.BinanceConfig.TestNet)
	cfg.BinanceConfig.RecvWindow = int64(getEnvIntOrDefault("BINANCE_RECV_WINDOW", int(cfg.BinanceConfig.RecvWindow)))
	cfg.BinanceConfig.Timeout = getEnvDurationOrDefault("BINANCE_TIMEOUT", cfg.BinanceConfig.Timeout)
	cfg.BinanceConfig.MaxRetries = getEnvIntOrDefault("BINANCE_MAX_RETRIES", cfg.BinanceConfig.MaxRetries)
	cfg.BinanceConfig.RetryBaseDelay = getEnvDurationOrDefault("BINANCE_RETRY_BASE_DELAY", cfg.BinanceConfig.RetryBaseDelay)
	cfg.BinanceConfig.RateLimitWait = getEnvDurationOrDefault("BINANCE_RATE_LIMIT_WAIT", cfg.BinanceConfig.RateLimitWait)

	// Router config
	if value := os.Getenv("ROUTER_AUTO_SWITCH_ALGO"); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			cfg.RouterConfig.AutoSwitchConditionalToAlgo = &b
		}
	}
	cfg.RouterConfig.AttemptAlgoOnNotFound = getEnvBoolOrDefault("ROUTER_ALGO_ON_NOT_FOUND", cfg.RouterConfig.AttemptAlgoOnNotFound)
	cfg.RouterConfig.BatchConcurrency = getEnvIntOrDefault("ROUTER_BATCH_CONCURRENCY", cfg.RouterConfig.BatchConcurrency)
	cfg.RouterConfig.ClientOrderIDPrefix = getEnvOrDefault("ROUTER_CLIENT_ID_PREFIX", cfg.RouterConfig.ClientOrderIDPrefix)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.TLSEnabled = getEnvBoolOrDefault("SERVER_TLS_ENABLED", cfg.ServerConfig.TLSEnabled)
	cfg.ServerConfig.TLSCertFile = getEnvOrDefault("SERVER_TLS_CERT", cfg.ServerConfig.TLSCertFile)
	cfg.ServerConfig.TLSKeyFile = getEnvOrDefault("SERVER_TLS_KEY", cfg.ServerConfig.TLSKeyFile)
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", cfg.ServerConfig.ReadTimeout)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", cfg.ServerConfig.WriteTimeout)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.ServerConfig.ShutdownTimeout)

	// Auth config
	cfg.AuthConfig.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.AuthConfig.Enabled)
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.Issuer = getEnvOrDefault("AUTH_ISSUER", cfg.AuthConfig.Issuer)
	cfg.AuthConfig.TokenDuration = getEnvDurationOrDefault("AUTH_TOKEN_DURATION", cfg.AuthConfig.TokenDuration)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)
	cfg.VaultConfig.Profile = getEnvOrDefault("VAULT_PROFILE", cfg.VaultConfig.Profile)
	cfg.VaultConfig.TLSEnabled = getEnvBoolOrDefault("VAULT_TLS_ENABLED", cfg.VaultConfig.TLSEnabled)
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CACERT", cfg.VaultConfig.CACert)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)
	cfg.RedisConfig.BanKey = getEnvOrDefault("REDIS_BAN_KEY", cfg.RedisConfig.BanKey)

	// Metrics config
	cfg.MetricsConfig.Enabled = getEnvBoolOrDefault("METRICS_ENABLED", cfg.MetricsConfig.Enabled)
	cfg.MetricsConfig.Address = getEnvOrDefault("METRICS_ADDR", cfg.MetricsConfig.Address)
}

// applyDefaults fills zero values
func applyDefaults(cfg *Config) {
	if cfg.BinanceConfig.RecvWindow <= 0 {
		cfg.BinanceConfig.RecvWindow = 5000
	}
	if cfg.BinanceConfig.Timeout <= 0 {
		cfg.BinanceConfig.Timeout = 10 * time.Second
	}
	if cfg.BinanceConfig.MaxRetries <= 0 {
		cfg.BinanceConfig.MaxRetries = 3
	}
	if cfg.BinanceConfig.RetryBaseDelay <= 0 {
		cfg.BinanceConfig.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.BinanceConfig.RateLimitWait <= 0 {
		cfg.BinanceConfig.RateLimitWait = 30 * time.Second
	}

	if cfg.RouterConfig.BatchConcurrency <= 0 {
		cfg.RouterConfig.BatchConcurrency = 4
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "INFO"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}

	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ReadTimeout == 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout == 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}

	if cfg.AuthConfig.Issuer == "" {
		cfg.AuthConfig.Issuer = "binance-futures-gateway"
	}
	if cfg.AuthConfig.TokenDuration <= 0 {
		cfg.AuthConfig.TokenDuration = 24 * time.Hour
	}

	if cfg.VaultConfig.Address == "" {
		cfg.VaultConfig.Address = "http://localhost:8200"
	}
	if cfg.VaultConfig.MountPath == "" {
		cfg.VaultConfig.MountPath = "secret"
	}
	if cfg.VaultConfig.SecretPath == "" {
		cfg.VaultConfig.SecretPath = "futures-client/api-keys"
	}
	if cfg.VaultConfig.Profile == "" {
		cfg.VaultConfig.Profile = "default"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.PoolSize == 0 {
		cfg.RedisConfig.PoolSize = 10
	}
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	if c.AuthConfig.Enabled && len(c.AuthConfig.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters when auth is enabled")
	}
	if c.ServerConfig.TLSEnabled && (c.ServerConfig.TLSCertFile == "" || c.ServerConfig.TLSKeyFile == "") {
		return fmt.Errorf("server.tls_cert_file and server.tls_key_file are required when TLS is enabled")
	}
	if c.RouterConfig.BatchConcurrency < 1 {
		return fmt.Errorf("router.batch_concurrency must be positive")
	}
	return nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	autoSwitch := true
	config := Config{
		BinanceConfig: BinanceConfig{
			APIKey:     "your_api_key_here",
			SecretKey:  "your_secret_key_here",
			TestNet:    true,
			RecvWindow: 5000,
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
		RouterConfig: RouterConfig{
			AutoSwitchConditionalToAlgo: &autoSwitch,
			BatchConcurrency:            4,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
		ServerConfig: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: "*",
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
