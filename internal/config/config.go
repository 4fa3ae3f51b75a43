package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server   ServerConfig             `yaml:"server"`
	Database DatabaseConfig           `yaml:"database"`
	NATS     NATSConfig               `yaml:"nats"`
	Networks map[string]NetworkConfig `yaml:"networks"`
	Sync     SyncConfig               `yaml:"sync"`
	Prover   ProverConfig             `yaml:"prover"`
	Security SecurityConfig           `yaml:"security"`
	CORS     CORSConfig               `yaml:"cors"`
	Log      LogConfig                `yaml:"log"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig configures the note database. When Enabled is false the
// daemon runs in ephemeral mode with an in-memory note store.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// NATSConfig configures the optional event fan-out. Empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
}

// NetworkConfig describes one shielded pool deployment.
type NetworkConfig struct {
	ChainID         uint64 `yaml:"chainId"`
	Name            string `yaml:"name"`
	RPCEndpoint     string `yaml:"rpcEndpoint"`
	PoolAddress     string `yaml:"poolAddress"`
	DeploymentBlock uint64 `yaml:"deploymentBlock"`
	TreeHeight      int    `yaml:"treeHeight"`
	Enabled         bool   `yaml:"enabled"`
}

// SyncConfig controls the background tree synchronizer.
type SyncConfig struct {
	IntervalSeconds int    `yaml:"intervalSeconds"`
	AutoStart       bool   `yaml:"autoStart"`
	DataDir         string `yaml:"dataDir"`
}

// ProverConfig points at the external proving service that turns witness
// inputs into Groth16 proofs.
type ProverConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// SecurityConfig holds the optional API protections. Empty values disable
// the corresponding guard.
type SecurityConfig struct {
	JWTSecret  string `yaml:"jwtSecret"`
	TOTPSecret string `yaml:"totpSecret"`
}

// CORSConfig configures cross-origin access for the local UI.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// LogConfig configures logrus output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the loaded configuration, set by LoadConfig.
var AppConfig *Config

// LoadConfig reads the configuration file, preferring config.local.yaml when
// no explicit path is given, and applies environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	AppConfig = &cfg
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8547
	}
	if cfg.Sync.IntervalSeconds == 0 {
		cfg.Sync.IntervalSeconds = 30
	}
	if cfg.Sync.DataDir == "" {
		cfg.Sync.DataDir = "data"
	}
	if cfg.NATS.Timeout == 0 {
		cfg.NATS.Timeout = 5
	}
	if cfg.NATS.ReconnectWait == 0 {
		cfg.NATS.ReconnectWait = 2
	}
	if cfg.Prover.TimeoutSeconds == 0 {
		cfg.Prover.TimeoutSeconds = 120
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	for name, network := range cfg.Networks {
		if network.TreeHeight == 0 {
			network.TreeHeight = 20
		}
		cfg.Networks[name] = network
	}
}

func overrideFromEnv(cfg *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
		cfg.Database.Enabled = true
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		cfg.NATS.URL = natsURL
	}
	if proverURL := os.Getenv("PROVER_URL"); proverURL != "" {
		cfg.Prover.URL = proverURL
	}
	if dataDir := os.Getenv("SHIELDSWAP_DATA_DIR"); dataDir != "" {
		cfg.Sync.DataDir = dataDir
	}
	if interval := os.Getenv("SYNC_INTERVAL_SECONDS"); interval != "" {
		if n, err := strconv.Atoi(interval); err == nil && n > 0 {
			cfg.Sync.IntervalSeconds = n
		}
	}
	if secret := os.Getenv("SHIELDSWAP_JWT_SECRET"); secret != "" {
		cfg.Security.JWTSecret = secret
	}
	if secret := os.Getenv("SHIELDSWAP_TOTP_SECRET"); secret != "" {
		cfg.Security.TOTPSecret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	for name, network := range cfg.Networks {
		envRPC := fmt.Sprintf("%s_RPC_URL", strings.ToUpper(name))
		if rpc := os.Getenv(envRPC); rpc != "" {
			network.RPCEndpoint = rpc
		}
		envPool := fmt.Sprintf("%s_POOL_ADDRESS", strings.ToUpper(name))
		if pool := os.Getenv(envPool); pool != "" {
			network.PoolAddress = pool
		}
		cfg.Networks[name] = network
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		cfg.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}

// GetNetworkConfig returns the named network if it is enabled.
func GetNetworkConfig(name string) (*NetworkConfig, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	network, exists := AppConfig.Networks[name]
	if !exists {
		return nil, fmt.Errorf("network %s not found in config", name)
	}
	if !network.Enabled {
		return nil, fmt.Errorf("network %s is disabled", name)
	}
	return &network, nil
}
