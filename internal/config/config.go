package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server         ServerConfig             `yaml:"server"`
	Database       DatabaseConfig           `yaml:"database"`
	NATS           NATSConfig               `yaml:"nats"`
	Chain          ChainConfig              `yaml:"chain"`
	Vault          VaultConfig              `yaml:"vault"`
	Networks       map[string]NetworkConfig `yaml:"networks"`
	Admin          AdminConfig              `yaml:"admin"`
	CORS           CORSConfig               `yaml:"cors"`
	Oracle         OracleConfig             `yaml:"oracle"`
	Reconciliation ReconciliationConfig     `yaml:"reconciliation"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig message server configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ChainConfig identity of the chain this orchestrator instance runs for
type ChainConfig struct {
	ChainID uint32 `yaml:"chainId"`
	Name    string `yaml:"name"`
}

// VaultConfig ledger manager parameters
type VaultConfig struct {
	// MaxAllocationBps bounds allocatedOut at totalPooled * bps / 10000
	MaxAllocationBps int64 `yaml:"maxAllocationBps"`
	// MinShares floor applied to the very first deposit of a ledger
	MinShares string `yaml:"minShares"`
}

// NetworkConfig per-chain network configuration (remote orchestrator targets)
type NetworkConfig struct {
	ChainID uint32 `yaml:"chainId"`
	Name    string `yaml:"name"`
	// BaseFee quoted per cross-chain message, native units, decimal string
	BaseFee string `yaml:"baseFee"`
}

// AdminConfig API access control configuration
type AdminConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	TOTPSecret      string `yaml:"totp_secret"`
	PasswordHash    string `yaml:"password_hash"` // bcrypt hash of the admin password
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
	// InitialFeeBalance credited to the orchestrator fee account at boot
	InitialFeeBalance string `yaml:"initial_fee_balance"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// OracleConfig price oracle endpoint (informational only)
type OracleConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ReconciliationConfig stuck-pending sweep configuration
type ReconciliationConfig struct {
	IntervalSeconds   int `yaml:"interval_seconds"`
	PendingTTLSeconds int `yaml:"pending_ttl_seconds"`
}

// AppConfig global application configuration
var AppConfig *Config

// LoadConfig loads the YAML configuration file and applies environment overrides
func LoadConfig(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	applyDefaults(&config)
	applyEnvOverrides(&config)

	if err := validate(&config); err != nil {
		return err
	}

	AppConfig = &config
	log.Printf("Configuration loaded from %s (chain %d/%s, %d remote networks)",
		configPath, config.Chain.ChainID, config.Chain.Name, len(config.Networks))
	return nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
	}
	if config.NATS.Timeout == 0 {
		config.NATS.Timeout = 10
	}
	if config.NATS.ReconnectWait == 0 {
		config.NATS.ReconnectWait = 5
	}
	if config.NATS.SubjectPrefix == "" {
		config.NATS.SubjectPrefix = "vault"
	}
	if config.Vault.MaxAllocationBps == 0 {
		config.Vault.MaxAllocationBps = 9000
	}
	if config.Vault.MinShares == "" {
		config.Vault.MinShares = "1000"
	}
	if config.Admin.TokenTTLMinutes == 0 {
		config.Admin.TokenTTLMinutes = 60
	}
	if config.Reconciliation.IntervalSeconds == 0 {
		config.Reconciliation.IntervalSeconds = 60
	}
	if config.Reconciliation.PendingTTLSeconds == 0 {
		config.Reconciliation.PendingTTLSeconds = 3600
	}
	if config.Oracle.TimeoutSeconds == 0 {
		config.Oracle.TimeoutSeconds = 5
	}
}

func applyEnvOverrides(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseUint(chainID, 10, 32); err == nil {
			config.Chain.ChainID = uint32(id)
		}
	}
	if secret := os.Getenv("ADMIN_JWT_SECRET"); secret != "" {
		config.Admin.JWTSecret = secret
	}
	if totp := os.Getenv("ADMIN_TOTP_SECRET"); totp != "" {
		config.Admin.TOTPSecret = totp
	}
	if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" {
		config.Admin.PasswordHash = hash
	}
	if fee := os.Getenv("INITIAL_FEE_BALANCE"); fee != "" {
		config.Admin.InitialFeeBalance = fee
	}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		config.CORS.AllowedOrigins = config.CORS.AllowedOrigins[:0]
		for _, o := range parts {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
	if oracleURL := os.Getenv("ORACLE_URL"); oracleURL != "" {
		config.Oracle.URL = oracleURL
	}
}

func validate(config *Config) error {
	if config.Chain.ChainID == 0 {
		return fmt.Errorf("chain.chainId is required")
	}
	if config.Vault.MaxAllocationBps < 0 || config.Vault.MaxAllocationBps > 10000 {
		return fmt.Errorf("vault.maxAllocationBps must be within [0, 10000], got %d", config.Vault.MaxAllocationBps)
	}
	for name, network := range config.Networks {
		if network.ChainID == 0 {
			return fmt.Errorf("networks.%s.chainId is required", name)
		}
	}
	return nil
}

// GetNetworkByChainID resolves a remote network configuration by chain id
func GetNetworkByChainID(chainID uint32) (*NetworkConfig, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	for name := range AppConfig.Networks {
		network := AppConfig.Networks[name]
		if network.ChainID == chainID {
			return &network, nil
		}
	}
	return nil, fmt.Errorf("network with chain id %d not configured", chainID)
}

// SupportedChainIDs lists every configured remote chain id
func SupportedChainIDs() []uint32 {
	if AppConfig == nil {
		return nil
	}
	ids := make([]uint32, 0, len(AppConfig.Networks))
	for _, network := range AppConfig.Networks {
		ids = append(ids, network.ChainID)
	}
	return ids
}
