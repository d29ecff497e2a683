package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotManager stores and loads full-state snapshots for warm restart.
// A snapshot plus a replay of the event log from snapshot.sequence+1
// reconstructs the exact in-memory state.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serializable full state at a point in time.
type SnapshotData struct {
	Sequence  int64             `json:"sequence"`
	StateHash []byte            `json:"state_hash"`
	Swaps     []SwapSnap        `json:"swaps"`
	Items     []ItemSnap        `json:"items"`
	NextItem  uint64            `json:"next_item_id"`
	Balances  map[string]int64  `json:"balances"`
	Purchases map[string][]TradeSnap `json:"purchases"`
	Sales     map[string][]TradeSnap `json:"sales"`
	Usernames map[string]string `json:"usernames"`
	CreatedAt time.Time         `json:"created_at"`
}

// SwapSnap is a serializable live swap.
type SwapSnap struct {
	ID           string    `json:"id"`
	Initiator    uuid.UUID `json:"initiator"`
	Counterparty uuid.UUID `json:"counterparty"`
	AssetA       string    `json:"asset_a"`
	AssetB       string    `json:"asset_b"`
	AmountA      int64     `json:"amount_a"`
	AmountB      int64     `json:"amount_b"`
	Expiry       time.Time `json:"expiry"`
}

// ItemSnap is a serializable item record.
type ItemSnap struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Owner       uuid.UUID `json:"owner"`
	Sold        bool      `json:"sold"`
}

// TradeSnap is a serializable history entry.
type TradeSnap struct {
	ItemID    uint64    `json:"item_id"`
	Price     int64     `json:"price"`
	Buyer     uuid.UUID `json:"buyer"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot, replacing any prior snapshot at the
// same sequence.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO escrow.snapshots (snapshot_id, sequence, data, state_hash, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $5
	`, uuid.New(), snap.Sequence, data, snap.StateHash, len(data), snap.CreatedAt)

	return err
}

// LoadLatestSnapshot returns the most recent snapshot, or nil when none
// exists (cold start).
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	var data []byte
	err := sm.db.QueryRowContext(ctx, `
		SELECT data FROM escrow.snapshots ORDER BY sequence DESC LIMIT 1
	`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
