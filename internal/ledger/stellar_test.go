package ledger

import (
	"strings"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildUnsignedEnvelope(t *testing.T, sourceAddress string) string {
	t.Helper()

	destination := keypair.MustRandom().Address()
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: sourceAddress, Sequence: 1},
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: destination,
				Amount:      "25",
				Asset:       txnbuild.NativeAsset{},
			},
		},
		BaseFee:       txnbuild.MinBaseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	})
	require.NoError(t, err)

	unsignedXDR, err := tx.Base64()
	require.NoError(t, err)
	return unsignedXDR
}

func TestNewStellar(t *testing.T) {
	t.Run("requires a passphrase", func(t *testing.T) {
		_, err := NewStellar("")
		require.Error(t, err)
	})

	t.Run("keeps the passphrase", func(t *testing.T) {
		s, err := NewStellar(network.TestNetworkPassphrase)
		require.NoError(t, err)
		assert.Equal(t, network.TestNetworkPassphrase, s.NetworkPassphrase())
	})
}

func TestGenerateKeypair(t *testing.T) {
	s, err := NewStellar(network.TestNetworkPassphrase)
	require.NoError(t, err)

	t.Run("produces valid strkeys", func(t *testing.T) {
		publicKey, secret, err := s.GenerateKeypair()
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(publicKey, "G"))
		assert.True(t, strings.HasPrefix(secret, "S"))

		kp, err := keypair.ParseFull(secret)
		require.NoError(t, err)
		assert.Equal(t, publicKey, kp.Address())
	})

	t.Run("produces unique keypairs", func(t *testing.T) {
		pub1, _, err := s.GenerateKeypair()
		require.NoError(t, err)
		pub2, _, err := s.GenerateKeypair()
		require.NoError(t, err)

		assert.NotEqual(t, pub1, pub2)
	})
}

func TestSignTransaction(t *testing.T) {
	s, err := NewStellar(network.TestNetworkPassphrase)
	require.NoError(t, err)

	t.Run("appends a verifiable signature", func(t *testing.T) {
		publicKey, secret, err := s.GenerateKeypair()
		require.NoError(t, err)

		unsignedXDR := buildUnsignedEnvelope(t, publicKey)

		signedXDR, err := s.SignTransaction(unsignedXDR, secret)
		require.NoError(t, err)
		require.NotEqual(t, unsignedXDR, signedXDR)

		generic, err := txnbuild.TransactionFromXDR(signedXDR)
		require.NoError(t, err)
		tx, ok := generic.Transaction()
		require.True(t, ok)

		sigs := tx.Signatures()
		require.Len(t, sigs, 1)

		hash, err := tx.Hash(network.TestNetworkPassphrase)
		require.NoError(t, err)

		verifier, err := keypair.ParseAddress(publicKey)
		require.NoError(t, err)
		require.NoError(t, verifier.Verify(hash[:], sigs[0].Signature))
	})

	t.Run("rejects an invalid seed", func(t *testing.T) {
		publicKey, _, err := s.GenerateKeypair()
		require.NoError(t, err)

		unsignedXDR := buildUnsignedEnvelope(t, publicKey)

		_, err = s.SignTransaction(unsignedXDR, "not-a-seed")
		require.Error(t, err)
		// The seed value itself must never appear in the error.
		assert.NotContains(t, err.Error(), "not-a-seed")
	})

	t.Run("rejects a malformed envelope", func(t *testing.T) {
		_, secret, err := s.GenerateKeypair()
		require.NoError(t, err)

		_, err = s.SignTransaction("definitely not XDR", secret)
		require.Error(t, err)
	})
}
