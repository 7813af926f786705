// Package ledger wraps the Stellar SDK behind the narrow surface the
// custody core needs: generate a keypair, and add a signature to an
// externally-built transaction envelope. Transaction contents are never
// interpreted here.
package ledger

import (
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// Stellar signs base64 XDR transaction envelopes for one network.
type Stellar struct {
	networkPassphrase string
}

// NewStellar creates a Stellar ledger backend for the given network
// passphrase (pubnet or testnet).
func NewStellar(networkPassphrase string) (*Stellar, error) {
	if networkPassphrase == "" {
		return nil, fmt.Errorf("network passphrase is required")
	}
	return &Stellar{networkPassphrase: networkPassphrase}, nil
}

// NetworkPassphrase returns the passphrase transactions are signed against.
func (s *Stellar) NetworkPassphrase() string {
	return s.networkPassphrase
}

// GenerateKeypair creates a new random ed25519 keypair and returns the
// account address and the secret seed in strkey form.
func (s *Stellar) GenerateKeypair() (publicKey, secret string, err error) {
	kp, err := keypair.Random()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate keypair: %w", err)
	}
	return kp.Address(), kp.Seed(), nil
}

// SignTransaction parses the unsigned envelope, appends a signature from
// the given secret seed, and re-encodes it. The seed only exists inside
// this call; the returned envelope is the only output.
func (s *Stellar) SignTransaction(unsignedXDR, secret string) (string, error) {
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return "", fmt.Errorf("failed to parse signing key: invalid seed")
	}

	generic, err := txnbuild.TransactionFromXDR(unsignedXDR)
	if err != nil {
		return "", fmt.Errorf("failed to parse transaction envelope: %w", err)
	}

	tx, ok := generic.Transaction()
	if !ok {
		return "", fmt.Errorf("fee-bump envelopes are not supported")
	}

	signed, err := tx.Sign(s.networkPassphrase, kp)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	signedXDR, err := signed.Base64()
	if err != nil {
		return "", fmt.Errorf("failed to encode signed transaction: %w", err)
	}

	return signedXDR, nil
}
