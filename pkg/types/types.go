// Package types contains the persisted data model shared between the
// custody core and its storage backends.
package types

import (
	"time"

	"github.com/google/uuid"
)

// WalletRecord is the persisted unit per user: the Stellar public key plus
// the user's secret seed encrypted under the process master key.
//
// EncryptedSecret, Nonce, and AuthTag travel together as a unit. Losing or
// mismatching any of the three makes decryption of the record permanently
// impossible; there is no recovery path short of manual remediation.
type WalletRecord struct {
	ID       uuid.UUID
	UserID   string
	PublicKey string

	EncryptedSecret []byte
	Nonce           []byte
	AuthTag         []byte

	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// Clone returns a deep copy of the record. Storage backends hand out copies
// so callers can never mutate persisted state in place.
func (r *WalletRecord) Clone() *WalletRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.EncryptedSecret = append([]byte(nil), r.EncryptedSecret...)
	out.Nonce = append([]byte(nil), r.Nonce...)
	out.AuthTag = append([]byte(nil), r.AuthTag...)
	if r.LastUsedAt != nil {
		t := *r.LastUsedAt
		out.LastUsedAt = &t
	}
	return &out
}
