package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mn-coding-cop/EigenLabsTask/internal/event"
)

// SwapStatus is the lifecycle marker of a swap slot. Cleared records keep
// their map slot with StatusAbsent (tombstone) rather than being deleted,
// which makes the Nonexistent → Live → Nonexistent cycle explicit.
type SwapStatus uint8

const (
	SwapAbsent SwapStatus = iota
	SwapLive
)

// SwapParams is the caller-supplied half of the swap tuple. The initiator
// is taken from the operation context, never from the params.
type SwapParams struct {
	Counterparty uuid.UUID
	AssetA       string
	AssetB       string
	AmountA      int64
	AmountB      int64
	Expiry       time.Time
}

// Swap is a bilateral, time-bounded agreement to exchange two asset
// quantities. Fields other than Status are immutable once created.
type Swap struct {
	ID           SwapID
	Initiator    uuid.UUID
	Counterparty uuid.UUID
	AssetA       string
	AssetB       string
	AmountA      int64
	AmountB      int64
	Expiry       time.Time
	Status       SwapStatus
}

func (s *Swap) live() bool {
	return s != nil && s.Status == SwapLive
}

// SwapRegistry owns the swap-id keyed store and the create/execute/cancel
// lifecycle. Not thread-safe: only accessed from the single-threaded
// operation loop.
type SwapRegistry struct {
	swaps    map[SwapID]*Swap
	guard    *ReentrancyGuard
	transfer AssetTransferPort
}

func NewSwapRegistry(transfer AssetTransferPort) *SwapRegistry {
	return &SwapRegistry{
		swaps:    make(map[SwapID]*Swap),
		guard:    NewReentrancyGuard(),
		transfer: transfer,
	}
}

// Create validates the tuple, derives the deterministic id, and stores a
// live record. The caller becomes the initiator. Validation runs in a
// fixed order, before any state read: party, assets, amounts, expiry.
func (r *SwapRegistry) Create(ctx OpContext, p SwapParams) (SwapID, *event.SwapCreated, error) {
	if p.Counterparty == uuid.Nil {
		return SwapID{}, nil, fmt.Errorf("%w: counterparty is the zero account", ErrInvalidParty)
	}
	if p.AssetA == "" || p.AssetB == "" {
		return SwapID{}, nil, fmt.Errorf("%w: both legs need an asset reference", ErrInvalidAsset)
	}
	if p.AmountA <= 0 || p.AmountB <= 0 {
		return SwapID{}, nil, fmt.Errorf("%w: amounts must be positive", ErrInvalidAmount)
	}
	if !p.Expiry.After(ctx.Now) {
		return SwapID{}, nil, fmt.Errorf("%w: expiry %s is not after %s", ErrExpiryNotFuture, p.Expiry, ctx.Now)
	}

	id := DeriveSwapID(ctx.Caller, p.Counterparty, p.AssetA, p.AssetB, p.AmountA, p.AmountB, p.Expiry)
	if r.swaps[id].live() {
		return SwapID{}, nil, fmt.Errorf("%w: id %s", ErrSwapExists, id)
	}

	r.swaps[id] = &Swap{
		ID:           id,
		Initiator:    ctx.Caller,
		Counterparty: p.Counterparty,
		AssetA:       p.AssetA,
		AssetB:       p.AssetB,
		AmountA:      p.AmountA,
		AmountB:      p.AmountB,
		Expiry:       p.Expiry,
		Status:       SwapLive,
	}

	return id, &event.SwapCreated{
		SwapID:       id.String(),
		Initiator:    ctx.Caller,
		Counterparty: p.Counterparty,
		AssetA:       p.AssetA,
		AssetB:       p.AssetB,
		AmountA:      p.AmountA,
		AmountB:      p.AmountB,
		Expiry:       p.Expiry,
	}, nil
}

// Execute settles both legs of a live swap. Only the stored counterparty
// may execute, and only up to (and including) the expiry instant.
//
// The record is cleared BEFORE the transfer legs run, so a reentrant call
// from the transfer primitive observes the swap as already settled and
// fails with ErrSwapNotFound. If either leg fails the record is restored,
// and a completed first leg is compensated, so the operation is
// all-or-nothing.
func (r *SwapRegistry) Execute(ctx OpContext, id SwapID) (*event.SwapExecuted, error) {
	s := r.swaps[id]
	if !s.live() {
		return nil, fmt.Errorf("%w: id %s", ErrSwapNotFound, id)
	}
	if ctx.Now.After(s.Expiry) {
		return nil, fmt.Errorf("%w: expired at %s, now %s", ErrSwapExpired, s.Expiry, ctx.Now)
	}
	if ctx.Caller != s.Counterparty {
		return nil, fmt.Errorf("%w: only the counterparty may execute", ErrUnauthorized)
	}

	saved := *s
	var evt *event.SwapExecuted

	err := r.guard.Do(func() error {
		// Effects before interactions: tombstone the record first.
		r.clear(id)

		if err := r.transfer.Transfer(saved.AssetA, saved.Initiator, saved.Counterparty, saved.AmountA); err != nil {
			r.restore(&saved)
			return fmt.Errorf("%w: leg A (%s x%d): %v", ErrTransferFailed, saved.AssetA, saved.AmountA, err)
		}
		if err := r.transfer.Transfer(saved.AssetB, saved.Counterparty, saved.Initiator, saved.AmountB); err != nil {
			// Unwind leg A. The counterparty holds the funds we just moved,
			// so the reverse transfer cannot legitimately fail; if it does,
			// the ledger and the transfer backend have diverged.
			if cerr := r.transfer.Transfer(saved.AssetA, saved.Counterparty, saved.Initiator, saved.AmountA); cerr != nil {
				panic(fmt.Sprintf("FATAL: compensation transfer failed for swap %s: %v", id, cerr))
			}
			r.restore(&saved)
			return fmt.Errorf("%w: leg B (%s x%d): %v", ErrTransferFailed, saved.AssetB, saved.AmountB, err)
		}

		evt = &event.SwapExecuted{
			SwapID:       id.String(),
			Initiator:    saved.Initiator,
			Counterparty: saved.Counterparty,
			AssetA:       saved.AssetA,
			AssetB:       saved.AssetB,
			AmountA:      saved.AmountA,
			AmountB:      saved.AmountB,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evt, nil
}

// Cancel clears a live swap. Only the stored initiator may cancel.
// Cancellation has no time limit: it is always permitted before
// execution, even after expiry. No value moves, nothing was custodied.
func (r *SwapRegistry) Cancel(ctx OpContext, id SwapID) (*event.SwapCancelled, error) {
	s := r.swaps[id]
	if !s.live() {
		return nil, fmt.Errorf("%w: id %s", ErrSwapNotFound, id)
	}
	if ctx.Caller != s.Initiator {
		return nil, fmt.Errorf("%w: only the initiator may cancel", ErrUnauthorized)
	}

	initiator := s.Initiator
	r.clear(id)

	return &event.SwapCancelled{SwapID: id.String(), Initiator: initiator}, nil
}

// Get returns a copy of the live record at id.
func (r *SwapRegistry) Get(id SwapID) (Swap, bool) {
	s := r.swaps[id]
	if !s.live() {
		return Swap{}, false
	}
	return *s, true
}

// ResolveID derives the id for a parameter tuple and reports whether a
// live swap occupies it. Liveness is judged by the status marker alone,
// never by inspecting individual fields.
func (r *SwapRegistry) ResolveID(initiator uuid.UUID, p SwapParams) (SwapID, bool) {
	id := DeriveSwapID(initiator, p.Counterparty, p.AssetA, p.AssetB, p.AmountA, p.AmountB, p.Expiry)
	return id, r.swaps[id].live()
}

// clear tombstones the slot: status Absent, all fields zeroed. Recreating
// with identical parameters afterwards succeeds again, as a fresh intent
// to swap.
func (r *SwapRegistry) clear(id SwapID) {
	r.swaps[id] = &Swap{ID: id, Status: SwapAbsent}
}

func (r *SwapRegistry) restore(s *Swap) {
	saved := *s
	r.swaps[s.ID] = &saved
}

// Snapshot returns copies of all live swaps.
func (r *SwapRegistry) Snapshot() []Swap {
	out := make([]Swap, 0, len(r.swaps))
	for _, s := range r.swaps {
		if s.live() {
			out = append(out, *s)
		}
	}
	return out
}

// RestoreSwap reinstates a record during warm restart.
func (r *SwapRegistry) RestoreSwap(s Swap) {
	saved := s
	r.swaps[s.ID] = &saved
}
