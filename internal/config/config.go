package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/lt-indexer/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug       bool   `mapstructure:"debug"`
	SentryDSN   string `mapstructure:"sentry_dsn"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadHost        string        `mapstructure:"read_host"`
	ReadPort        int           `mapstructure:"read_port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // e.g. "5m", "1h"
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // e.g. "10m"
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	ConsumerName   string        `mapstructure:"consumer_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	AckWait        time.Duration `mapstructure:"ack_wait"`
	MaxDeliver     int           `mapstructure:"max_deliver"`
	NakDelay       time.Duration `mapstructure:"nak_delay"`
}

// EthereumConfig holds EVM chain configuration
type EthereumConfig struct {
	WebSocketURL         string        `mapstructure:"websocket_url"`
	RPCURL               string        `mapstructure:"rpc_url"`
	ChainID              domain.Chain  `mapstructure:"chain_id"`
	StartBlock           uint64        `mapstructure:"start_block"`
	BlockHeadTTL         time.Duration `mapstructure:"block_head_ttl"`
	BlockHeadStaleWindow time.Duration `mapstructure:"block_head_stale_window"`
	LogPageSize          uint64        `mapstructure:"log_page_size"`
	CallRetries          uint64        `mapstructure:"call_retries"`
}

// ProtocolConfig holds the addresses of the protocol contracts
type ProtocolConfig struct {
	FactoryAddress       string `mapstructure:"factory_address"`
	HelperAddress        string `mapstructure:"helper_address"`
	ReferralsAddress     string `mapstructure:"referrals_address"`
	GlobalStorageAddress string `mapstructure:"global_storage_address"`
	// Instruments lists leveraged tokens deployed before the factory emitted creation events
	Instruments []string `mapstructure:"instruments"`
	// DeployBlock is the first block scanned for leveraged token creations
	DeployBlock uint64 `mapstructure:"deploy_block"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	RateTTL   time.Duration `mapstructure:"rate_ttl"`
}

// RateLimitConfig holds RPC rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond       int     `mapstructure:"requests_per_second"`
	Burst                   int     `mapstructure:"burst"`
	KeyPrefix               string  `mapstructure:"key_prefix"`
	EnableLocalFallback     bool    `mapstructure:"enable_local_fallback"`
	LocalFallbackMultiplier float64 `mapstructure:"local_fallback_multiplier"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// EmitterConfig holds block cursor settings of the emitter
type EmitterConfig struct {
	CursorSaveFreq  uint64        `mapstructure:"cursor_save_freq"`
	CursorSaveDelay time.Duration `mapstructure:"cursor_save_delay"`
	BlockTicks      bool          `mapstructure:"block_ticks"`
}

// ReconciliationConfig holds settings of the reconciliation sweeper
type ReconciliationConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// Tolerance is the accepted drift in base asset units (6 decimals)
	Tolerance  int64 `mapstructure:"tolerance"`
	BatchSize  int   `mapstructure:"batch_size"`
	PoolSize   int   `mapstructure:"pool_size"`
	RunOnStart bool  `mapstructure:"run_on_start"`
}

// EthereumEmitterConfig holds configuration for ethereum-event-emitter
type EthereumEmitterConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig  `mapstructure:"database"`
	NATS       NATSConfig      `mapstructure:"nats"`
	Ethereum   EthereumConfig  `mapstructure:"ethereum"`
	Protocol   ProtocolConfig  `mapstructure:"protocol"`
	Emitter    EmitterConfig   `mapstructure:"emitter"`
	Redis      RedisConfig     `mapstructure:"redis"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
}

// EventBridgeConfig holds configuration for event-bridge
type EventBridgeConfig struct {
	BaseConfig  `mapstructure:",squash"`
	Database    DatabaseConfig  `mapstructure:"database"`
	NATS        NATSConfig      `mapstructure:"nats"`
	Ethereum    EthereumConfig  `mapstructure:"ethereum"`
	Protocol    ProtocolConfig  `mapstructure:"protocol"`
	Redis       RedisConfig     `mapstructure:"redis"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	MetricsAddr string          `mapstructure:"metrics_addr"`
}

// APIConfig holds configuration for API server
type APIConfig struct {
	BaseConfig     `mapstructure:",squash"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
}

// SweeperConfig holds configuration for the sweeper program
type SweeperConfig struct {
	BaseConfig     `mapstructure:",squash"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	MetricsAddr    string               `mapstructure:"metrics_addr"`
}

func setNATSDefaults(v *viper.Viper) {
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "LEDGER_EVENTS")
	v.SetDefault("nats.subject_prefix", "ledger")
}

func setChainDefaults(v *viper.Viper) {
	v.SetDefault("ethereum.chain_id", string(domain.ChainHyperEVMMainnet))
	v.SetDefault("ethereum.block_head_ttl", "2s")
	v.SetDefault("ethereum.block_head_stale_window", "1m")
	v.SetDefault("ethereum.log_page_size", 10000)
	v.SetDefault("ethereum.call_retries", 5)
	v.SetDefault("redis.key_prefix", "lt:indexer:")
	v.SetDefault("redis.rate_ttl", "10m")
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.enable_local_fallback", true)
	v.SetDefault("rate_limit.local_fallback_multiplier", 0.5)
}

// LoadEthereumEmitterConfig loads configuration for ethereum-event-emitter
func LoadEthereumEmitterConfig(configFile string, envPath string) (*EthereumEmitterConfig, error) {
	v := configureViper("ethereum-event-emitter", configFile, envPath)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	setNATSDefaults(v)
	setChainDefaults(v)
	v.SetDefault("emitter.cursor_save_freq", 10)
	v.SetDefault("emitter.cursor_save_delay", "30s")
	v.SetDefault("emitter.block_ticks", true)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg EthereumEmitterConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Ethereum.WebSocketURL == "" {
		return nil, errors.New("ethereum.websocket_url is required")
	}
	if err := cfg.Protocol.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadEventBridgeConfig loads configuration for event-bridge
func LoadEventBridgeConfig(configFile string, envPath string) (*EventBridgeConfig, error) {
	v := configureViper("event-bridge", configFile, envPath)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	setNATSDefaults(v)
	setChainDefaults(v)
	v.SetDefault("nats.consumer_name", "event-bridge")
	v.SetDefault("nats.ack_wait", "30s")
	// Unlimited: dropping an event would corrupt every later figure
	v.SetDefault("nats.max_deliver", -1)
	v.SetDefault("nats.nak_delay", "5s")
	v.SetDefault("metrics_addr", ":9090")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg EventBridgeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Ethereum.RPCURL == "" {
		return nil, errors.New("ethereum.rpc_url is required")
	}
	if err := cfg.Protocol.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadAPIConfig loads configuration for API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.key_prefix", "lt:indexer:")
	v.SetDefault("reconciliation.tolerance", 1)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg APIConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadSweeperConfig loads configuration for the sweeper program
func LoadSweeperConfig(configFile string, envPath string) (*SweeperConfig, error) {
	v := configureViper("sweeper", configFile, envPath)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("reconciliation.interval", "15m")
	v.SetDefault("reconciliation.tolerance", 1)
	v.SetDefault("reconciliation.batch_size", 500)
	v.SetDefault("reconciliation.pool_size", 8)
	v.SetDefault("reconciliation.run_on_start", true)
	v.SetDefault("metrics_addr", ":9091")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg SweeperConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Database.Host == "" {
		return nil, errors.New("database.host is required")
	}
	if cfg.Database.DBName == "" {
		return nil, errors.New("database.dbname is required")
	}

	return &cfg, nil
}

// Validate checks that the protocol addresses are well formed
func (c *ProtocolConfig) Validate() error {
	if !domain.IsValidAddress(c.FactoryAddress) {
		return fmt.Errorf("protocol.factory_address is invalid: %q", c.FactoryAddress)
	}
	if !domain.IsValidAddress(c.HelperAddress) {
		return fmt.Errorf("protocol.helper_address is invalid: %q", c.HelperAddress)
	}
	for _, address := range []string{c.ReferralsAddress, c.GlobalStorageAddress} {
		if address != "" && !domain.IsValidAddress(address) {
			return fmt.Errorf("protocol address is invalid: %q", address)
		}
	}
	for _, address := range c.Instruments {
		if !domain.IsValidAddress(address) {
			return fmt.Errorf("protocol.instruments contains an invalid address: %q", address)
		}
	}
	return nil
}

// readConfig reads the config file. A missing file falls back to environment variables.
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("LT_INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables.
// Viper only maps env vars onto struct fields it knows about when no config file exists.
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		"environment",
		"metrics_addr",
		// Database
		"database.host",
		"database.port",
		"database.read_host",
		"database.read_port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.subject_prefix",
		"nats.consumer_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.ack_wait",
		"nats.max_deliver",
		"nats.nak_delay",
		// Chain
		"ethereum.websocket_url",
		"ethereum.rpc_url",
		"ethereum.chain_id",
		"ethereum.start_block",
		"ethereum.block_head_ttl",
		"ethereum.block_head_stale_window",
		"ethereum.log_page_size",
		"ethereum.call_retries",
		// Protocol
		"protocol.factory_address",
		"protocol.helper_address",
		"protocol.referrals_address",
		"protocol.global_storage_address",
		"protocol.instruments",
		"protocol.deploy_block",
		// Emitter
		"emitter.cursor_save_freq",
		"emitter.cursor_save_delay",
		"emitter.block_ticks",
		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",
		"redis.key_prefix",
		"redis.rate_ttl",
		// Rate limit
		"rate_limit.requests_per_second",
		"rate_limit.burst",
		"rate_limit.key_prefix",
		"rate_limit.enable_local_fallback",
		"rate_limit.local_fallback_multiplier",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		// Reconciliation
		"reconciliation.interval",
		"reconciliation.tolerance",
		"reconciliation.batch_size",
		"reconciliation.pool_size",
		"reconciliation.run_on_start",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Shared base first, then local, then the optional per-service local file
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		_ = godotenv.Overload(filepath.Join(envPath, envFile))
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ReadDSN returns the read-replica connection string, or an empty string when no
// replica is configured. ReadPort falls back to Port.
func (c *DatabaseConfig) ReadDSN() string {
	if c.ReadHost == "" {
		return ""
	}
	port := c.ReadPort
	if port == 0 {
		port = c.Port
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.ReadHost, port, c.User, c.Password, c.DBName, c.SSLMode)
}
