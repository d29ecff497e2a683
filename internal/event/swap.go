package event

import (
	"time"

	"github.com/google/uuid"
)

// SwapCreated carries the full parameter tuple plus the derived identifier
// so external indexers can verify the derivation.
type SwapCreated struct {
	SwapID       string    `json:"swap_id"`
	Initiator    uuid.UUID `json:"initiator"`
	Counterparty uuid.UUID `json:"counterparty"`
	AssetA       string    `json:"asset_a"`
	AssetB       string    `json:"asset_b"`
	AmountA      int64     `json:"amount_a"`
	AmountB      int64     `json:"amount_b"`
	Expiry       time.Time `json:"expiry"`
}

// SwapExecuted is emitted after both transfer legs settled and the record
// was cleared.
type SwapExecuted struct {
	SwapID       string    `json:"swap_id"`
	Initiator    uuid.UUID `json:"initiator"`
	Counterparty uuid.UUID `json:"counterparty"`
	AssetA       string    `json:"asset_a"`
	AssetB       string    `json:"asset_b"`
	AmountA      int64     `json:"amount_a"`
	AmountB      int64     `json:"amount_b"`
}

// SwapCancelled is emitted when the initiator withdraws the offer. No value
// moved: nothing was custodied before execution.
type SwapCancelled struct {
	SwapID    string    `json:"swap_id"`
	Initiator uuid.UUID `json:"initiator"`
}
