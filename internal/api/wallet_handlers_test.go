package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumensave/lumensave/internal/config"
	"github.com/lumensave/lumensave/internal/envelope"
	"github.com/lumensave/lumensave/internal/keystore"
	"github.com/lumensave/lumensave/internal/ledger"
	"github.com/lumensave/lumensave/internal/middleware"
	"github.com/lumensave/lumensave/internal/storage"
	apperrors "github.com/lumensave/lumensave/pkg/errors"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	key := make([]byte, envelope.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	cipher, err := envelope.NewCipher(key)
	require.NoError(t, err)

	stellar, err := ledger.NewStellar(network.TestNetworkPassphrase)
	require.NoError(t, err)

	svc := keystore.NewService(cipher, storage.NewMemoryWalletStore(), stellar)

	cfg := &config.Config{
		DemoMode:          true,
		NetworkPassphrase: network.TestNetworkPassphrase,
		Port:              0,
	}
	server := NewServer(cfg, svc, middleware.NewRateLimiter(0, 0, false))

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func unsignedEnvelopeFor(t *testing.T, sourceAddress string) string {
	t.Helper()
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: sourceAddress, Sequence: 3},
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: keypair.MustRandom().Address(),
				Amount:      "10",
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

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateWalletEndpoint(t *testing.T) {
	t.Run("creates and returns the wallet", func(t *testing.T) {
		ts := newTestServer(t)

		resp := postJSON(t, ts.URL+"/v1/wallets", CreateWalletRequest{UserID: "alice"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var wallet WalletResponse
		decodeBody(t, resp, &wallet)
		assert.Equal(t, "alice", wallet.UserID)
		assert.True(t, strings.HasPrefix(wallet.PublicKey, "G"))
		assert.NotEmpty(t, wallet.WalletID)
	})

	t.Run("repeated creation returns the same wallet", func(t *testing.T) {
		ts := newTestServer(t)

		var first, second WalletResponse
		decodeBody(t, postJSON(t, ts.URL+"/v1/wallets", CreateWalletRequest{UserID: "alice"}), &first)
		decodeBody(t, postJSON(t, ts.URL+"/v1/wallets", CreateWalletRequest{UserID: "alice"}), &second)

		assert.Equal(t, first.WalletID, second.WalletID)
		assert.Equal(t, first.PublicKey, second.PublicKey)
	})

	t.Run("rejects an empty user id", func(t *testing.T) {
		ts := newTestServer(t)

		resp := postJSON(t, ts.URL+"/v1/wallets", CreateWalletRequest{UserID: ""})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects a non-JSON body", func(t *testing.T) {
		ts := newTestServer(t)

		resp, err := http.Post(ts.URL+"/v1/wallets", "application/json", strings.NewReader("not json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects GET on the collection", func(t *testing.T) {
		ts := newTestServer(t)

		resp, err := http.Get(ts.URL + "/v1/wallets")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestGetAddressEndpoint(t *testing.T) {
	t.Run("returns the wallet address", func(t *testing.T) {
		ts := newTestServer(t)

		var wallet WalletResponse
		decodeBody(t, postJSON(t, ts.URL+"/v1/wallets", CreateWalletRequest{UserID: "bob"}), &wallet)

		resp, err := http.Get(ts.URL + "/v1/wallets/bob/address")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var address AddressResponse
		decodeBody(t, resp, &address)
		assert.Equal(t, wallet.PublicKey, address.PublicKey)
	})

	t.Run("404 for an unknown user", func(t *testing.T) {
		ts := newTestServer(t)

		resp, err := http.Get(ts.URL + "/v1/wallets/nobody/address")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSignEndpoint(t *testing.T) {
	t.Run("signs a transaction for an existing wallet", func(t *testing.T) {
		ts := newTestServer(t)

		var wallet WalletResponse
		decodeBody(t, postJSON(t, ts.URL+"/v1/wallets", CreateWalletRequest{UserID: "carol"}), &wallet)

		unsignedXDR := unsignedEnvelopeFor(t, wallet.PublicKey)
		resp := postJSON(t, ts.URL+"/v1/wallets/carol/sign", SignTransactionRequest{TransactionXDR: unsignedXDR})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var signed SignTransactionResponse
		decodeBody(t, resp, &signed)
		require.NotEmpty(t, signed.SignedXDR)
		assert.NotEqual(t, unsignedXDR, signed.SignedXDR)

		generic, err := txnbuild.TransactionFromXDR(signed.SignedXDR)
		require.NoError(t, err)
		tx, ok := generic.Transaction()
		require.True(t, ok)
		assert.Len(t, tx.Signatures(), 1)
	})

	t.Run("404 for an unknown user", func(t *testing.T) {
		ts := newTestServer(t)

		unsignedXDR := unsignedEnvelopeFor(t, keypair.MustRandom().Address())
		resp := postJSON(t, ts.URL+"/v1/wallets/nobody/sign", SignTransactionRequest{TransactionXDR: unsignedXDR})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("rejects an empty envelope", func(t *testing.T) {
		ts := newTestServer(t)

		decodeBody(t, postJSON(t, ts.URL+"/v1/wallets", CreateWalletRequest{UserID: "carol"}), &WalletResponse{})

		resp := postJSON(t, ts.URL+"/v1/wallets/carol/sign", SignTransactionRequest{TransactionXDR: ""})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown operation is a 404", func(t *testing.T) {
		ts := newTestServer(t)

		resp := postJSON(t, ts.URL+"/v1/wallets/carol/export", struct{}{})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

// failingKeyStore simulates a service whose stored key material fails
// authentication on every signing attempt.
type failingKeyStore struct{}

func (failingKeyStore) GetOrCreateWallet(ctx context.Context, userID string) (*keystore.Wallet, error) {
	return nil, apperrors.StorageFailure("unavailable")
}

func (failingKeyStore) GetPublicAddress(ctx context.Context, userID string) (string, error) {
	return "", apperrors.WalletNotFound(userID)
}

func (failingKeyStore) SignForUser(ctx context.Context, userID, unsignedXDR string) (string, error) {
	return "", apperrors.AuthenticationFailure(userID)
}

func TestServiceErrorMapping(t *testing.T) {
	t.Run("crypto failures surface as a generic internal error", func(t *testing.T) {
		cfg := &config.Config{NetworkPassphrase: network.TestNetworkPassphrase}
		server := NewServer(cfg, failingKeyStore{}, middleware.NewRateLimiter(0, 0, false))

		req := httptest.NewRequest(http.MethodPost, "/v1/wallets/erin/sign",
			strings.NewReader(`{"transaction_xdr":"AAAA"}`))
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "internal_error", body["code"])
		assert.NotContains(t, rec.Body.String(), "authentication")
	})
}

func TestRateLimiting(t *testing.T) {
	key := make([]byte, envelope.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	cipher, err := envelope.NewCipher(key)
	require.NoError(t, err)
	stellar, err := ledger.NewStellar(network.TestNetworkPassphrase)
	require.NoError(t, err)
	svc := keystore.NewService(cipher, storage.NewMemoryWalletStore(), stellar)

	cfg := &config.Config{NetworkPassphrase: network.TestNetworkPassphrase}
	server := NewServer(cfg, svc, middleware.NewRateLimiter(1, 2, true))
	handler := server.Handler()

	var lastCode int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/wallets/alice/address", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}
