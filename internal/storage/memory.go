package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumensave/lumensave/internal/keystore"
	"github.com/lumensave/lumensave/pkg/types"
)

// MemoryWalletStore is the in-process WalletStore used by demo mode and
// tests. It enforces the same user_id and public_key uniqueness as the
// Postgres schema, so the service's race handling behaves identically.
type MemoryWalletStore struct {
	mu        sync.RWMutex
	byUser    map[string]*types.WalletRecord
	byID      map[uuid.UUID]*types.WalletRecord
	addresses map[string]struct{}
}

// NewMemoryWalletStore creates an empty in-memory store.
func NewMemoryWalletStore() *MemoryWalletStore {
	return &MemoryWalletStore{
		byUser:    make(map[string]*types.WalletRecord),
		byID:      make(map[uuid.UUID]*types.WalletRecord),
		addresses: make(map[string]struct{}),
	}
}

// FindByUserID returns a copy of the record for a user, or nil if absent.
func (m *MemoryWalletStore) FindByUserID(ctx context.Context, userID string) (*types.WalletRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.byUser[userID].Clone(), nil
}

// Insert stores a copy of the record, enforcing uniqueness on both
// user_id and public_key.
func (m *MemoryWalletStore) Insert(ctx context.Context, record *types.WalletRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byUser[record.UserID]; exists {
		return keystore.ErrWalletExists
	}
	if _, exists := m.addresses[record.PublicKey]; exists {
		return fmt.Errorf("public key already in use")
	}

	stored := record.Clone()
	m.byUser[stored.UserID] = stored
	m.byID[stored.ID] = stored
	m.addresses[stored.PublicKey] = struct{}{}

	return nil
}

// TouchLastUsed updates the advisory last_used_at timestamp.
func (m *MemoryWalletStore) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	t := at
	record.LastUsedAt = &t

	return nil
}

// Len returns the number of stored records.
func (m *MemoryWalletStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.byUser)
}

var _ keystore.WalletStore = (*MemoryWalletStore)(nil)
