package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/stellar/go/network"
)

// Config holds infrastructure-level configuration for the custody service
type Config struct {
	// Database. Demo mode swaps Postgres for the in-memory store.
	PostgresDSN string
	DemoMode    bool

	// Master key source
	MasterKeySource    string // env, aws-kms, vault, or shamir
	MasterKeyHex       string
	KMSKeyID           string
	KMSRegion          string
	KMSEncryptedKeyB64 string
	VaultAddress       string
	VaultToken         string
	VaultSecretPath    string
	VaultKeyField      string
	ShamirShares       []string

	// Ledger
	NetworkPassphrase string

	// Server
	Port             int
	RateLimitRPS     int
	RateLimitBurst   int
	RateLimitEnabled bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		PostgresDSN:        getEnv("POSTGRES_DSN", ""),
		DemoMode:           getEnvBool("DEMO_MODE", false),
		MasterKeySource:    getEnv("MASTER_KEY_SOURCE", "env"),
		MasterKeyHex:       getEnv("MASTER_KEY_HEX", ""),
		KMSKeyID:           getEnv("KMS_KEY_ID", ""),
		KMSRegion:          getEnv("KMS_REGION", ""),
		KMSEncryptedKeyB64: getEnv("KMS_ENCRYPTED_MASTER_KEY", ""),
		VaultAddress:       getEnv("VAULT_ADDR", ""),
		VaultToken:         getEnv("VAULT_TOKEN", ""),
		VaultSecretPath:    getEnv("VAULT_SECRET_PATH", ""),
		VaultKeyField:      getEnv("VAULT_KEY_FIELD", "master_key"),
		ShamirShares:       getEnvList("MASTER_KEY_SHARES"),
		NetworkPassphrase:  getEnv("NETWORK_PASSPHRASE", network.TestNetworkPassphrase),
		Port:               getEnvInt("PORT", 8080),
		RateLimitRPS:       getEnvInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),
		RateLimitEnabled:   getEnvBool("RATE_LIMIT_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.DemoMode && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required unless DEMO_MODE is enabled")
	}

	switch c.MasterKeySource {
	case "env":
		if c.MasterKeyHex == "" {
			return fmt.Errorf("MASTER_KEY_HEX is required when MASTER_KEY_SOURCE is 'env'")
		}
	case "aws-kms":
		if c.KMSKeyID == "" || c.KMSRegion == "" || c.KMSEncryptedKeyB64 == "" {
			return fmt.Errorf("KMS_KEY_ID, KMS_REGION, and KMS_ENCRYPTED_MASTER_KEY are required when MASTER_KEY_SOURCE is 'aws-kms'")
		}
	case "vault":
		if c.VaultAddress == "" || c.VaultToken == "" || c.VaultSecretPath == "" {
			return fmt.Errorf("VAULT_ADDR, VAULT_TOKEN, and VAULT_SECRET_PATH are required when MASTER_KEY_SOURCE is 'vault'")
		}
	case "shamir":
		if len(c.ShamirShares) < 2 {
			return fmt.Errorf("MASTER_KEY_SHARES must carry at least 2 shares when MASTER_KEY_SOURCE is 'shamir'")
		}
	default:
		return fmt.Errorf("MASTER_KEY_SOURCE must be 'env', 'aws-kms', 'vault', or 'shamir', got: %s", c.MasterKeySource)
	}

	if c.NetworkPassphrase == "" {
		return fmt.Errorf("NETWORK_PASSPHRASE must not be empty")
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}

// getEnvList gets a comma-separated environment variable as a slice
func getEnvList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
