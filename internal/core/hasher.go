package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const GenesisHashSeed = "escrowd:genesis:v1"

// SwapID is the deterministic identifier of a swap, derived from its full
// parameter tuple. Identical tuples always derive the identical id.
type SwapID [32]byte

func (id SwapID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseSwapID decodes a 64-character hex identifier.
func ParseSwapID(s string) (SwapID, error) {
	var id SwapID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse swap id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("parse swap id: want %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// DeriveSwapID computes SHA-256 over a fixed, order-preserving encoding of
// the swap tuple. Accounts are fixed-width 16 bytes, asset references are
// length-prefixed, amounts and expiry are 8-byte little-endian. The
// encoding is unambiguous, so distinct tuples cannot collide by field
// boundary shifting. Callers may derive the id before creation; the
// creation path recomputes the same value from the stored parameters.
func DeriveSwapID(
	initiator, counterparty uuid.UUID,
	assetA, assetB string,
	amountA, amountB int64,
	expiry time.Time,
) SwapID {
	h := sha256.New()

	h.Write(initiator[:])
	h.Write(counterparty[:])

	writeString := func(s string) {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeString(assetA)
	writeString(assetB)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(amountA))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(amountB))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(expiry.UnixMicro()))
	h.Write(buf[:])

	var id SwapID
	copy(id[:], h.Sum(nil))
	return id
}

// ChainHasher computes the per-event state hash chain:
// state_hash[N] = SHA-256(prev_hash || sequence || event_digest).
// The chain tip lets external auditors verify the event log was neither
// reordered nor truncated.
type ChainHasher struct {
	prevHash [32]byte
}

// NewChainHasher initializes with the genesis hash.
func NewChainHasher() *ChainHasher {
	return &ChainHasher{prevHash: sha256.Sum256([]byte(GenesisHashSeed))}
}

// ComputeHash advances the chain by one event and returns the new tip.
func (h *ChainHasher) ComputeHash(sequence int64, eventDigest []byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])

	hasher.Write(eventDigest)

	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))
	h.prevHash = hash
	return hash
}

// GetPrevHash returns the current chain tip.
func (h *ChainHasher) GetPrevHash() [32]byte {
	return h.prevHash
}

// SetPrevHash restores the chain tip from a snapshot.
func (h *ChainHasher) SetPrevHash(hash [32]byte) {
	h.prevHash = hash
}
