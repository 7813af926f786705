package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lumensave/lumensave/internal/keystore"
	"github.com/lumensave/lumensave/pkg/types"
)

// uniqueViolation is the Postgres error code raised when an insert hits a
// unique constraint.
const uniqueViolation = "23505"

// WalletRepository is the durable WalletStore backed by Postgres. The
// unique indexes on user_id and public_key are the authoritative guards
// for the one-wallet-per-user and address-uniqueness invariants.
type WalletRepository struct {
	store *Store
}

// NewWalletRepository creates a new WalletRepository
func NewWalletRepository(store *Store) *WalletRepository {
	return &WalletRepository{store: store}
}

// FindByUserID retrieves the wallet record for a user, or nil if absent.
func (r *WalletRepository) FindByUserID(ctx context.Context, userID string) (*types.WalletRecord, error) {
	query := `
		SELECT id, user_id, public_key, encrypted_secret, nonce, auth_tag, created_at, last_used_at
		FROM wallets
		WHERE user_id = $1
	`

	var record types.WalletRecord
	err := r.store.pool.QueryRow(ctx, query, userID).Scan(
		&record.ID,
		&record.UserID,
		&record.PublicKey,
		&record.EncryptedSecret,
		&record.Nonce,
		&record.AuthTag,
		&record.CreatedAt,
		&record.LastUsedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet by user ID: %w", err)
	}

	return &record, nil
}

// Insert persists a new wallet record. A unique violation on user_id maps
// to keystore.ErrWalletExists so the service can fall back to a read. The
// insert is a single statement: either the whole record lands or nothing
// does.
func (r *WalletRepository) Insert(ctx context.Context, record *types.WalletRecord) error {
	query := `
		INSERT INTO wallets (id, user_id, public_key, encrypted_secret, nonce, auth_tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.store.pool.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.PublicKey,
		record.EncryptedSecret,
		record.Nonce,
		record.AuthTag,
		record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return keystore.ErrWalletExists
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// TouchLastUsed updates the advisory last_used_at timestamp. Concurrent
// updates race last-write-wins, which is acceptable for bookkeeping.
func (r *WalletRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE wallets SET last_used_at = $2 WHERE id = $1`

	tag, err := r.store.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last_used_at: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found")
	}

	return nil
}

var _ keystore.WalletStore = (*WalletRepository)(nil)
