// Package keystore owns the custodial wallet lifecycle: one keypair per
// user, encrypted at rest, decrypted only transiently inside a signing
// call. It is the sole component allowed to materialize a plaintext
// secret seed in memory.
package keystore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lumensave/lumensave/internal/envelope"
	"github.com/lumensave/lumensave/internal/logger"
	"github.com/lumensave/lumensave/internal/metrics"
	apperrors "github.com/lumensave/lumensave/pkg/errors"
	"github.com/lumensave/lumensave/pkg/types"
)

// ErrWalletExists is returned by WalletStore.Insert when a record for the
// same user already exists. The service treats it as "someone else just
// created it" and falls back to a read.
var ErrWalletExists = errors.New("wallet already exists for user")

// WalletStore is the persistence collaborator. Implementations must
// enforce user_id uniqueness at the storage layer; that constraint is the
// authoritative guard against concurrent double-creation.
type WalletStore interface {
	// FindByUserID returns the record for a user, or (nil, nil) if absent.
	FindByUserID(ctx context.Context, userID string) (*types.WalletRecord, error)

	// Insert persists a new record. Returns ErrWalletExists if a record
	// for the same user_id is already present.
	Insert(ctx context.Context, record *types.WalletRecord) error

	// TouchLastUsed updates the advisory last_used_at timestamp.
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Ledger is the keypair generator and transaction signer collaborator,
// backed by the chain SDK. The service treats transaction blobs as opaque.
type Ledger interface {
	GenerateKeypair() (publicKey, secret string, err error)
	SignTransaction(unsignedXDR, secret string) (signedXDR string, err error)
}

// Wallet is the caller-visible view of a wallet. It never carries secret
// key material.
type Wallet struct {
	WalletID  uuid.UUID `json:"wallet_id"`
	UserID    string    `json:"user_id"`
	PublicKey string    `json:"public_key"`
}

// Service mediates all wallet creation and signing. It is safe for
// concurrent use; it holds no per-request mutable state.
type Service struct {
	cipher *envelope.Cipher
	store  WalletStore
	ledger Ledger
	now    func() time.Time
}

// NewService creates a key store service. The cipher carries the master
// key for the process lifetime; store and ledger are injected so demo and
// test deployments can swap backends at construction time.
func NewService(cipher *envelope.Cipher, store WalletStore, ledger Ledger) *Service {
	return &Service{
		cipher: cipher,
		store:  store,
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateWallet returns the wallet for a user, creating it on first
// request. Creation is idempotent: two calls for the same user can never
// produce two keypairs. When a concurrent caller wins the insert race,
// the loser reads back and returns the winner's public key.
func (s *Service) GetOrCreateWallet(ctx context.Context, userID string) (*Wallet, error) {
	if userID == "" {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid request parameters", "user_id is required", 400)
	}

	record, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.StorageFailure("wallet lookup failed")
	}
	if record != nil {
		return walletFromRecord(record), nil
	}

	// Generate and encrypt before any write so a storage failure can never
	// leave a partial record behind.
	publicKey, secret, err := s.ledger.GenerateKeypair()
	if err != nil {
		return nil, apperrors.ErrInternalError
	}

	sealed, err := s.cipher.Encrypt([]byte(secret))
	secret = ""
	if err != nil {
		return nil, err
	}

	record = &types.WalletRecord{
		ID:              uuid.New(),
		UserID:          userID,
		PublicKey:       publicKey,
		EncryptedSecret: sealed.Ciphertext,
		Nonce:           sealed.Nonce,
		AuthTag:         sealed.AuthTag,
		CreatedAt:       s.now(),
	}

	err = s.store.Insert(ctx, record)
	if errors.Is(err, ErrWalletExists) {
		// Lost the race: another request created the wallet between our
		// read and insert. The winner's record is authoritative.
		metrics.CreateRacesLost.Inc()
		winner, ferr := s.store.FindByUserID(ctx, userID)
		if ferr != nil || winner == nil {
			return nil, apperrors.StorageFailure("wallet re-read after create race failed")
		}
		return walletFromRecord(winner), nil
	}
	if err != nil {
		return nil, apperrors.StorageFailure("wallet insert failed")
	}

	metrics.WalletsCreated.Inc()
	logger.Info(ctx, "wallet created", "user_id", userID, "public_key", publicKey)

	return walletFromRecord(record), nil
}

// GetPublicAddress returns the public key for a user's wallet. It is a
// pure read and never triggers creation.
func (s *Service) GetPublicAddress(ctx context.Context, userID string) (string, error) {
	record, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return "", apperrors.StorageFailure("wallet lookup failed")
	}
	if record == nil {
		return "", apperrors.WalletNotFound(userID)
	}
	return record.PublicKey, nil
}

// SignForUser signs an externally-built transaction envelope with the
// user's key. The secret seed is decrypted fresh on every call, used to
// produce exactly one signature, and discarded before returning; nothing
// is cached across calls.
func (s *Service) SignForUser(ctx context.Context, userID, unsignedXDR string) (string, error) {
	start := s.now()
	defer func() { metrics.SignDuration.Observe(time.Since(start).Seconds()) }()

	if unsignedXDR == "" {
		metrics.SignRequests.WithLabelValues(metrics.OutcomeMalformed).Inc()
		return "", apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid request parameters", "transaction envelope is required", 400)
	}

	record, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		metrics.SignRequests.WithLabelValues(metrics.OutcomeStorage).Inc()
		return "", apperrors.StorageFailure("wallet lookup failed")
	}
	if record == nil {
		metrics.SignRequests.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return "", apperrors.WalletNotFound(userID)
	}

	seed, err := s.cipher.Decrypt(&envelope.SealedSecret{
		Ciphertext: record.EncryptedSecret,
		Nonce:      record.Nonce,
		AuthTag:    record.AuthTag,
	})
	if err != nil {
		// Tampered record or master-key mismatch. Fatal for this record;
		// never retried with the same inputs.
		metrics.DecryptFailures.Inc()
		if apperrors.HasCode(err, apperrors.ErrCodeMalformedInput) {
			metrics.SignRequests.WithLabelValues(metrics.OutcomeMalformed).Inc()
			logger.Error(ctx, "wallet record has malformed encryption metadata", "user_id", userID)
			return "", err
		}
		metrics.SignRequests.WithLabelValues(metrics.OutcomeAuthFail).Inc()
		logger.Error(ctx, "wallet record failed authenticated decryption", "user_id", userID)
		return "", apperrors.AuthenticationFailure(userID)
	}

	signedXDR, err := s.ledger.SignTransaction(unsignedXDR, string(seed))
	envelope.Zero(seed)
	if err != nil {
		metrics.SignRequests.WithLabelValues(metrics.OutcomeMalformed).Inc()
		return "", apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Could not sign transaction envelope", err.Error(), 400)
	}

	if err := s.store.TouchLastUsed(ctx, record.ID, s.now()); err != nil {
		metrics.SignRequests.WithLabelValues(metrics.OutcomeStorage).Inc()
		return "", apperrors.StorageFailure("last_used_at update failed")
	}

	metrics.SignRequests.WithLabelValues(metrics.OutcomeOK).Inc()
	logger.Debug(ctx, "transaction signed", "user_id", userID, "public_key", record.PublicKey)

	return signedXDR, nil
}

func walletFromRecord(record *types.WalletRecord) *Wallet {
	return &Wallet{
		WalletID:  record.ID,
		UserID:    record.UserID,
		PublicKey: record.PublicKey,
	}
}
