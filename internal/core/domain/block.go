package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenesisPrevHash is the prev_hash of the block at height 0.
var GenesisPrevHash = strings.Repeat("0", 64)

const maxBlockFieldLength = 64

// Block is a checkpoint on the single linear chain.
type Block struct {
	ID         uuid.UUID `json:"id"`
	Height     int64     `json:"height"`
	PrevHash   string    `json:"prev_hash"`
	MerkleRoot string    `json:"merkle_root"`
	Nonce      string    `json:"nonce"`
	Hash       string    `json:"hash"`
	MinedAt    time.Time `json:"mined_at"`
}

// BlockHash digests the "height:prev_hash:merkle_root:nonce" header.
func BlockHash(height int64, prevHash, merkleRoot, nonce string) string {
	header := fmt.Sprintf("%d:%s:%s:%s", height, prevHash, merkleRoot, nonce)
	sum := sha256.Sum256([]byte(header))
	return hex.EncodeToString(sum[:])
}

// NextBlock builds the block that follows tip, or the genesis block when the
// chain is empty. merkleRoot is taken as given.
func NextBlock(tip *Block, merkleRoot, nonce string, now time.Time) *Block {
	height := int64(0)
	prevHash := GenesisPrevHash
	if tip != nil {
		height = tip.Height + 1
		prevHash = tip.Hash
	}
	return &Block{
		ID:         uuid.New(),
		Height:     height,
		PrevHash:   prevHash,
		MerkleRoot: merkleRoot,
		Nonce:      nonce,
		Hash:       BlockHash(height, prevHash, merkleRoot, nonce),
		MinedAt:    now,
	}
}

// ValidateBlockInput bounds the caller-supplied header fields.
func ValidateBlockInput(merkleRoot, nonce string) error {
	if merkleRoot == "" || nonce == "" {
		return errors.New("merkle_root and nonce are required")
	}
	if len(merkleRoot) > maxBlockFieldLength || len(nonce) > maxBlockFieldLength {
		return errors.New("merkle_root and nonce allow at most 64 characters")
	}
	return nil
}
