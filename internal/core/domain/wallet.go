package domain

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeySeedSize is the number of random bytes behind a demo keypair.
const KeySeedSize = 32

const maxWalletNameLength = 120

// Wallet is an account bucket owned by exactly one user. It carries no
// balance; balances are derived from the ledger.
type Wallet struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	PubKey     string    `json:"pub_key"`
	PrivKeyEnc string    `json:"-"` // demo hash, never exposed
	CreatedAt  time.Time `json:"created_at"`
}

// OwnedBy reports whether the wallet belongs to userID.
func (w *Wallet) OwnedBy(userID uuid.UUID) bool {
	return w.UserID == userID
}

// IsDefaultWalletName reports whether name marks a user's default wallet.
func IsDefaultWalletName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), "default")
}

// ValidateWalletName checks the display name length.
func ValidateWalletName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("wallet name is required")
	}
	if len(name) > maxWalletNameLength {
		return errors.New("wallet name is too long")
	}
	return nil
}

// DeriveKeypair turns a random seed into the demo keypair: the public key is
// the hex seed and the private placeholder is sha256 over the base64 seed.
func DeriveKeypair(seed []byte) (pubKey, privKeyEnc string) {
	sum := sha256.Sum256([]byte(base64.StdEncoding.EncodeToString(seed)))
	return hex.EncodeToString(seed), hex.EncodeToString(sum[:])
}
