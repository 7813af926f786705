// Package masterkey loads the process master key at startup from a
// configured secret source. The key is loaded exactly once; nothing here
// runs after initialization and no code path replaces the key at runtime.
package masterkey

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	vault "github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/shamir"

	"github.com/lumensave/lumensave/internal/envelope"
	apperrors "github.com/lumensave/lumensave/pkg/errors"
)

// SourceType identifies where the master key material comes from.
type SourceType string

const (
	// SourceEnv reads a hex-encoded key from configuration (environment).
	SourceEnv SourceType = "env"

	// SourceAWSKMS decrypts a stored ciphertext blob with AWS KMS.
	SourceAWSKMS SourceType = "aws-kms"

	// SourceVault reads the key from a HashiCorp Vault KV path.
	SourceVault SourceType = "vault"

	// SourceShamir combines operator-held Shamir shares, the same pattern
	// Vault uses for unseal keys.
	SourceShamir SourceType = "shamir"
)

// Config carries the settings for every supported source; only the fields
// for the selected source are consulted.
type Config struct {
	Source string

	// env source
	KeyHex string

	// aws-kms source: the key ciphertext as produced by kms encrypt,
	// base64-encoded.
	AWSKMSKeyID        string
	AWSKMSRegion       string
	AWSEncryptedKeyB64 string

	// vault source
	VaultAddress    string
	VaultToken      string
	VaultSecretPath string
	VaultKeyField   string

	// shamir source: base64-encoded shares, threshold many required.
	ShamirShares []string
}

// Load resolves the configured source and returns exactly 32 bytes of key
// material, or fails so the process never starts with a malformed key.
func Load(ctx context.Context, cfg *Config) ([]byte, error) {
	var (
		key []byte
		err error
	)

	switch SourceType(cfg.Source) {
	case SourceEnv, "":
		key, err = loadEnv(cfg)
	case SourceAWSKMS:
		key, err = loadAWSKMS(ctx, cfg)
	case SourceVault:
		key, err = loadVault(ctx, cfg)
	case SourceShamir:
		key, err = loadShamir(cfg)
	default:
		return nil, fmt.Errorf("unsupported master key source: %s (supported: %s, %s, %s, %s)",
			cfg.Source, SourceEnv, SourceAWSKMS, SourceVault, SourceShamir)
	}
	if err != nil {
		return nil, err
	}

	if len(key) != envelope.KeySize {
		return nil, apperrors.ErrInvalidKeyLength
	}

	return key, nil
}

func loadEnv(cfg *Config) ([]byte, error) {
	if cfg.KeyHex == "" {
		return nil, fmt.Errorf("MASTER_KEY_HEX is required for the env master key source")
	}

	key, err := hex.DecodeString(cfg.KeyHex)
	if err != nil {
		return nil, fmt.Errorf("MASTER_KEY_HEX is not valid hex")
	}

	return key, nil
}

func loadAWSKMS(ctx context.Context, cfg *Config) ([]byte, error) {
	if cfg.AWSKMSKeyID == "" {
		return nil, fmt.Errorf("AWS KMS key ID is required")
	}
	if cfg.AWSKMSRegion == "" {
		return nil, fmt.Errorf("AWS region is required")
	}
	if cfg.AWSEncryptedKeyB64 == "" {
		return nil, fmt.Errorf("encrypted master key blob is required")
	}

	blob, err := base64.StdEncoding.DecodeString(cfg.AWSEncryptedKeyB64)
	if err != nil {
		return nil, fmt.Errorf("encrypted master key blob is not valid base64")
	}

	// Uses the default credential chain: env vars, shared config, IAM role.
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSKMSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := kms.NewFromConfig(awsCfg)
	output, err := client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          &cfg.AWSKMSKeyID,
		CiphertextBlob: blob,
	})
	if err != nil {
		return nil, fmt.Errorf("AWS KMS decrypt failed: %w", err)
	}

	return output.Plaintext, nil
}

func loadVault(ctx context.Context, cfg *Config) ([]byte, error) {
	if cfg.VaultAddress == "" {
		return nil, fmt.Errorf("Vault address is required")
	}
	if cfg.VaultToken == "" {
		return nil, fmt.Errorf("Vault token is required")
	}
	if cfg.VaultSecretPath == "" {
		return nil, fmt.Errorf("Vault secret path is required")
	}

	field := cfg.VaultKeyField
	if field == "" {
		field = "master_key"
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.VaultAddress

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(cfg.VaultToken)

	secret, err := client.Logical().ReadWithContext(ctx, cfg.VaultSecretPath)
	if err != nil {
		return nil, fmt.Errorf("Vault read failed: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("Vault secret not found at configured path")
	}

	data := secret.Data
	// KV v2 nests the payload under "data".
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	keyHex, ok := data[field].(string)
	if !ok {
		return nil, fmt.Errorf("Vault secret is missing the %q field", field)
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("Vault master key field is not valid hex")
	}

	return key, nil
}

func loadShamir(cfg *Config) ([]byte, error) {
	if len(cfg.ShamirShares) < 2 {
		return nil, fmt.Errorf("at least 2 Shamir shares are required, got %d", len(cfg.ShamirShares))
	}

	shares := make([][]byte, 0, len(cfg.ShamirShares))
	for i, encoded := range cfg.ShamirShares {
		share, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("Shamir share %d is not valid base64", i+1)
		}
		shares = append(shares, share)
	}

	key, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("failed to combine Shamir shares: %w", err)
	}

	return key, nil
}
