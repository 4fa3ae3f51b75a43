package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scrubEnv blanks the override variables so assertions see file values and
// defaults only, regardless of the invoking shell.
func scrubEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_DSN", "SERVER_HOST", "SERVER_PORT", "NATS_URL", "PROVER_URL",
		"SHIELDSWAP_DATA_DIR", "SYNC_INTERVAL_SECONDS", "SHIELDSWAP_JWT_SECRET",
		"SHIELDSWAP_TOTP_SECRET", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS",
		"HARDHAT_RPC_URL", "HARDHAT_POOL_ADDRESS",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
networks:
  hardhat:
    chainId: 31337
    name: Hardhat
    rpcEndpoint: http://127.0.0.1:8545
    poolAddress: "0xAbC0000000000000000000000000000000000001"
    deploymentBlock: 1
    enabled: true
`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	scrubEnv(t)
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8547, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Sync.IntervalSeconds)
	assert.Equal(t, "data", cfg.Sync.DataDir)
	assert.Equal(t, 120, cfg.Prover.TimeoutSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Database.Enabled, "ephemeral mode is the default")

	network := cfg.Networks["hardhat"]
	assert.Equal(t, uint64(31337), network.ChainID)
	assert.Equal(t, 20, network.TreeHeight, "tree height defaults to the pool contract's height")
}

func TestLoadConfigReadsExplicitValues(t *testing.T) {
	scrubEnv(t)
	cfg, err := LoadConfig(writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9999
database:
  enabled: true
  dsn: host=localhost dbname=shieldswap
sync:
  intervalSeconds: 5
  autoStart: true
  dataDir: /var/lib/shieldswap
security:
  jwtSecret: topsecret
cors:
  allowedOrigins:
    - http://localhost:3000
  allowCredentials: true
  maxAge: 600
networks:
  hardhat:
    chainId: 31337
    rpcEndpoint: http://127.0.0.1:8545
    poolAddress: "0xPool"
    deploymentBlock: 7
    treeHeight: 10
    enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.True(t, cfg.Database.Enabled)
	assert.True(t, cfg.Sync.AutoStart)
	assert.Equal(t, "/var/lib/shieldswap", cfg.Sync.DataDir)
	assert.Equal(t, "topsecret", cfg.Security.JWTSecret)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 10, cfg.Networks["hardhat"].TreeHeight, "explicit tree height must not be overwritten")
	assert.Equal(t, uint64(7), cfg.Networks["hardhat"].DeploymentBlock)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	scrubEnv(t)
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("SHIELDSWAP_JWT_SECRET", "from-env")
	t.Setenv("HARDHAT_RPC_URL", "http://10.0.0.5:8545")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example ,")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Security.JWTSecret)
	assert.Equal(t, "http://10.0.0.5:8545", cfg.Networks["hardhat"].RPCEndpoint)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "no-such-config.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "networks: [not: a: map"))
	assert.Error(t, err)
}

func TestGetNetworkConfig(t *testing.T) {
	scrubEnv(t)
	_, err := LoadConfig(writeConfig(t, minimalConfig+`
  disabled_pool:
    chainId: 5
    rpcEndpoint: http://127.0.0.1:8546
    poolAddress: "0xPool"
    enabled: false
`))
	require.NoError(t, err)

	network, err := GetNetworkConfig("hardhat")
	require.NoError(t, err)
	assert.Equal(t, uint64(31337), network.ChainID)

	_, err = GetNetworkConfig("mainnet")
	assert.Error(t, err, "unknown networks must be rejected")

	_, err = GetNetworkConfig("disabled_pool")
	assert.Error(t, err, "disabled networks must be rejected")
}
