package core

import (
	"time"

	"github.com/google/uuid"
)

// OpContext carries the authenticated caller and the ledger time for one
// operation. The core MUST NOT call time.Now(); both values are versioned
// inputs supplied by the edge, which keeps every operation replayable and
// testable against a fixed clock.
type OpContext struct {
	Caller uuid.UUID
	Now    time.Time
}

// AssetTransferPort moves a quantified asset between accounts. It is the
// only external collaborator the core calls while holding the reentrancy
// guard; any non-nil error is treated as a hard failure of the enclosing
// operation. Implementations must be safe to call a second time only when
// the first call failed.
type AssetTransferPort interface {
	Transfer(asset string, from, to uuid.UUID, amount int64) error
}

// AccountDirectory is the username bookkeeping collaborator. The ledger
// only needs the registration gate; registration itself lives outside the
// core state machine.
type AccountDirectory interface {
	Register(account uuid.UUID, username string) error
	IsRegistered(account uuid.UUID) bool
}
