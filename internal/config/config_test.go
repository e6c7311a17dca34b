package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const protocolSection = `
protocol:
  factory_address: "0x1111111111111111111111111111111111111111"
  helper_address: "0x2222222222222222222222222222222222222222"
  referrals_address: "0x3333333333333333333333333333333333333333"
  global_storage_address: "0x4444444444444444444444444444444444444444"
  deploy_block: 21549398
  instruments:
    - "0x7B430c5842ce7dBa29b910c018369FA2Fa0ac2e3"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0600))
	return configFile
}

func TestLoadEthereumEmitterConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *EthereumEmitterConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
environment: staging
database:
  host: localhost
  port: 5433
  user: testuser
  password: testpass
  dbname: testdb
  sslmode: require
nats:
  url: "nats://localhost:4222"
  stream_name: "TEST_STREAM"
ethereum:
  websocket_url: "ws://localhost:8545"
  rpc_url: "http://localhost:8545"
  chain_id: "eip155:998"
  start_block: 1000
emitter:
  cursor_save_freq: 5
  block_ticks: false
` + protocolSection,
			validate: func(t *testing.T, cfg *EthereumEmitterConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, "staging", cfg.Environment)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.Equal(t, "TEST_STREAM", cfg.NATS.StreamName)
				assert.Equal(t, "eip155:998", string(cfg.Ethereum.ChainID))
				assert.Equal(t, uint64(1000), cfg.Ethereum.StartBlock)
				assert.Equal(t, uint64(5), cfg.Emitter.CursorSaveFreq)
				assert.False(t, cfg.Emitter.BlockTicks)
				assert.Equal(t, uint64(21549398), cfg.Protocol.DeployBlock)
				assert.Equal(t, []string{"0x7B430c5842ce7dBa29b910c018369FA2Fa0ac2e3"}, cfg.Protocol.Instruments)
			},
		},
		{
			name: "config with defaults",
			configFile: `
database:
  host: localhost
  dbname: testdb
ethereum:
  websocket_url: "ws://localhost:8545"
` + protocolSection,
			validate: func(t *testing.T, cfg *EthereumEmitterConfig) {
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, 10, cfg.NATS.MaxReconnects)
				assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
				assert.Equal(t, "LEDGER_EVENTS", cfg.NATS.StreamName)
				assert.Equal(t, "ledger", cfg.NATS.SubjectPrefix)
				assert.Equal(t, "eip155:999", string(cfg.Ethereum.ChainID))
				assert.Equal(t, uint64(10000), cfg.Ethereum.LogPageSize)
				assert.Equal(t, uint64(10), cfg.Emitter.CursorSaveFreq)
				assert.Equal(t, 30*time.Second, cfg.Emitter.CursorSaveDelay)
				assert.True(t, cfg.Emitter.BlockTicks)
				assert.Equal(t, 20, cfg.RateLimit.RequestsPerSecond)
				assert.True(t, cfg.RateLimit.EnableLocalFallback)
			},
		},
		{
			name: "missing websocket url",
			configFile: `
database:
  host: localhost
` + protocolSection,
			expectError: true,
		},
		{
			name: "invalid factory address",
			configFile: `
ethereum:
  websocket_url: "ws://localhost:8545"
protocol:
  factory_address: "not-an-address"
  helper_address: "0x2222222222222222222222222222222222222222"
`,
			expectError: true,
		},
		{
			name: "invalid yaml",
			configFile: `
database:
  host: localhost
  port: invalid
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadEthereumEmitterConfig(writeConfig(t, tt.configFile), "")

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadEventBridgeConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadEventBridgeConfig(writeConfig(t, `
database:
  host: localhost
ethereum:
  rpc_url: "http://localhost:8545"
redis:
  addr: "localhost:6379"
`+protocolSection), "")
		require.NoError(t, err)

		assert.Equal(t, "event-bridge", cfg.NATS.ConsumerName)
		assert.Equal(t, 30*time.Second, cfg.NATS.AckWait)
		assert.Equal(t, -1, cfg.NATS.MaxDeliver)
		assert.Equal(t, 5*time.Second, cfg.NATS.NakDelay)
		assert.Equal(t, ":9090", cfg.MetricsAddr)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
		assert.Equal(t, "lt:indexer:", cfg.Redis.KeyPrefix)
		assert.Equal(t, 10*time.Minute, cfg.Redis.RateTTL)
		assert.Equal(t, "0x1111111111111111111111111111111111111111", cfg.Protocol.FactoryAddress)
	})

	t.Run("missing rpc url", func(t *testing.T) {
		cfg, err := LoadEventBridgeConfig(writeConfig(t, protocolSection), "")
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})
}

func TestLoadAPIConfig(t *testing.T) {
	cfg, err := LoadAPIConfig(writeConfig(t, `
server:
  port: 9000
auth:
  api_keys: ["key-1", "key-2"]
database:
  host: db
  read_host: replica
`), "")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.ReadTimeout)
	assert.Equal(t, 120, cfg.Server.IdleTimeout)
	assert.Equal(t, []string{"key-1", "key-2"}, cfg.Auth.APIKeys)
	assert.Equal(t, "replica", cfg.Database.ReadHost)
	assert.Equal(t, int64(1), cfg.Reconciliation.Tolerance)
}

func TestLoadSweeperConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadSweeperConfig(writeConfig(t, `
database:
  host: localhost
  dbname: ledger
`), "")
		require.NoError(t, err)

		assert.Equal(t, 15*time.Minute, cfg.Reconciliation.Interval)
		assert.Equal(t, int64(1), cfg.Reconciliation.Tolerance)
		assert.Equal(t, 500, cfg.Reconciliation.BatchSize)
		assert.Equal(t, 8, cfg.Reconciliation.PoolSize)
		assert.True(t, cfg.Reconciliation.RunOnStart)
		assert.Equal(t, 5, cfg.Database.MaxOpenConns)
		assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	})

	t.Run("database is required", func(t *testing.T) {
		cfg, err := LoadSweeperConfig(writeConfig(t, `
reconciliation:
  interval: 1m
`), "")
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "primary",
		Port:     5432,
		User:     "indexer",
		Password: "secret",
		DBName:   "ledger",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=primary port=5432 user=indexer password=secret dbname=ledger sslmode=disable", cfg.DSN())
	assert.Empty(t, cfg.ReadDSN())

	cfg.ReadHost = "replica"
	assert.Equal(t, "host=replica port=5432 user=indexer password=secret dbname=ledger sslmode=disable", cfg.ReadDSN())

	cfg.ReadPort = 6432
	assert.Equal(t, "host=replica port=6432 user=indexer password=secret dbname=ledger sslmode=disable", cfg.ReadDSN())
}

func TestConfigWithEnvironmentVariables(t *testing.T) {
	t.Setenv("LT_INDEXER_DATABASE_HOST", "env-host")
	t.Setenv("LT_INDEXER_DATABASE_DBNAME", "env-db")
	t.Setenv("LT_INDEXER_RECONCILIATION_INTERVAL", "5m")
	t.Setenv("LT_INDEXER_DEBUG", "true")

	cfg, err := LoadSweeperConfig(writeConfig(t, "environment: test\n"), "")
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, "env-db", cfg.Database.DBName)
	assert.Equal(t, 5*time.Minute, cfg.Reconciliation.Interval)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "test", cfg.Environment)
}
