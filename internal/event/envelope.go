package event

import (
	"time"
)

// Type discriminates event payloads. The string values double as the
// outbound subject suffix and the event_type column in the log.
type Type string

const (
	TypeSwapCreated       Type = "swap.created"
	TypeSwapExecuted      Type = "swap.executed"
	TypeSwapCancelled     Type = "swap.cancelled"
	TypeItemListed        Type = "item.listed"
	TypeItemPriceUpdated  Type = "item.price_updated"
	TypeItemRelisted      Type = "item.relisted"
	TypeItemPurchased     Type = "item.purchased"
	TypeFundsWithdrawn    Type = "funds.withdrawn"
	TypeAccountRegistered Type = "account.registered"
)

// Envelope wraps every event in the log. Exactly one envelope is emitted
// per successful mutating operation.
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Payload discriminator
	Type Type

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Typed payload (one of the structs in this package)
	Payload any

	// SHA-256 of the hash chain AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}
