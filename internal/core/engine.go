package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mn-coding-cop/EigenLabsTask/internal/event"
	"github.com/mn-coding-cop/EigenLabsTask/internal/observability"
)

// Engine is the single-threaded operation processor. It owns the swap
// registry and the marketplace ledger, assigns the global event sequence,
// maintains the state hash chain, and emits exactly one event envelope per
// successful mutating operation. Callers (the HTTP layer, tests) must
// serialize access; the engine itself holds no locks other than the
// per-ledger reentrancy guards.
type Engine struct {
	sequence int64
	hasher   *ChainHasher

	swaps     *SwapRegistry
	ledger    *EscrowLedger
	directory AccountDirectory

	metrics *observability.Metrics

	persistChan chan<- Output
	publishChan chan<- Output
}

// Output is what the engine hands to the persistence and publish workers.
type Output struct {
	Envelope *event.Envelope
}

func NewEngine(
	startSequence int64,
	persistChan, publishChan chan<- Output,
	transfer AssetTransferPort,
	directory AccountDirectory,
	payoutAsset string,
	treasury uuid.UUID,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		sequence:    startSequence,
		hasher:      NewChainHasher(),
		swaps:       NewSwapRegistry(transfer),
		ledger:      NewEscrowLedger(transfer, directory, payoutAsset, treasury),
		directory:   directory,
		metrics:     metrics,
		persistChan: persistChan,
		publishChan: publishChan,
	}
}

// --- Swap operations ---

func (e *Engine) CreateSwap(ctx OpContext, p SwapParams) (SwapID, error) {
	const op = "create_swap"
	start := time.Now()

	id, evt, err := e.swaps.Create(ctx, p)
	if err != nil {
		e.reject(op, err)
		return SwapID{}, err
	}

	e.emit(event.TypeSwapCreated, ctx.Now, evt)
	e.applied(op, start)
	return id, nil
}

func (e *Engine) ExecuteSwap(ctx OpContext, id SwapID) error {
	const op = "execute_swap"
	start := time.Now()

	evt, err := e.swaps.Execute(ctx, id)
	if err != nil {
		e.reject(op, err)
		return err
	}

	e.emit(event.TypeSwapExecuted, ctx.Now, evt)
	e.applied(op, start)
	return nil
}

func (e *Engine) CancelSwap(ctx OpContext, id SwapID) error {
	const op = "cancel_swap"
	start := time.Now()

	evt, err := e.swaps.Cancel(ctx, id)
	if err != nil {
		e.reject(op, err)
		return err
	}

	e.emit(event.TypeSwapCancelled, ctx.Now, evt)
	e.applied(op, start)
	return nil
}

func (e *Engine) GetSwap(id SwapID) (Swap, bool) {
	return e.swaps.Get(id)
}

func (e *Engine) ResolveSwapID(initiator uuid.UUID, p SwapParams) (SwapID, bool) {
	return e.swaps.ResolveID(initiator, p)
}

// --- Marketplace operations ---

func (e *Engine) ListItem(ctx OpContext, name, description string, price int64) (uint64, error) {
	const op = "list_item"
	start := time.Now()

	id, evt, err := e.ledger.List(ctx, name, description, price)
	if err != nil {
		e.reject(op, err)
		return 0, err
	}

	e.emit(event.TypeItemListed, ctx.Now, evt)
	e.applied(op, start)
	return id, nil
}

func (e *Engine) UpdateItemPrice(ctx OpContext, itemID uint64, newPrice int64) error {
	const op = "update_item_price"
	start := time.Now()

	evt, err := e.ledger.UpdatePrice(ctx, itemID, newPrice)
	if err != nil {
		e.reject(op, err)
		return err
	}

	e.emit(event.TypeItemPriceUpdated, ctx.Now, evt)
	e.applied(op, start)
	return nil
}

func (e *Engine) RelistItem(ctx OpContext, itemID uint64, newPrice int64) error {
	const op = "relist_item"
	start := time.Now()

	evt, err := e.ledger.Relist(ctx, itemID, newPrice)
	if err != nil {
		e.reject(op, err)
		return err
	}

	e.emit(event.TypeItemRelisted, ctx.Now, evt)
	e.applied(op, start)
	return nil
}

func (e *Engine) PurchaseItem(ctx OpContext, itemID uint64, payment int64) error {
	const op = "purchase_item"
	start := time.Now()

	evt, err := e.ledger.Purchase(ctx, itemID, payment)
	if err != nil {
		e.reject(op, err)
		return err
	}

	e.emit(event.TypeItemPurchased, ctx.Now, evt)
	e.applied(op, start)
	return nil
}

func (e *Engine) WithdrawFunds(ctx OpContext) error {
	const op = "withdraw_funds"
	start := time.Now()

	evt, err := e.ledger.Withdraw(ctx)
	if err != nil {
		e.reject(op, err)
		return err
	}

	e.emit(event.TypeFundsWithdrawn, ctx.Now, evt)
	e.applied(op, start)
	return nil
}

func (e *Engine) GetItem(itemID uint64) Item {
	return e.ledger.GetItem(itemID)
}

func (e *Engine) BalanceOf(account uuid.UUID) int64 {
	return e.ledger.BalanceOf(account)
}

func (e *Engine) PurchasesOf(account uuid.UUID) []Transaction {
	return e.ledger.PurchasesOf(account)
}

func (e *Engine) SalesOf(account uuid.UUID) []Transaction {
	return e.ledger.SalesOf(account)
}

// --- Account registration ---

func (e *Engine) RegisterAccount(ctx OpContext, username string) error {
	const op = "register_account"
	start := time.Now()

	if err := e.directory.Register(ctx.Caller, username); err != nil {
		e.reject(op, err)
		return err
	}

	e.emit(event.TypeAccountRegistered, ctx.Now, &event.AccountRegistered{
		Account:  ctx.Caller,
		Username: username,
	})
	e.applied(op, start)
	return nil
}

// --- Emission ---

// emit wraps a payload in an envelope, advances the hash chain, and hands
// the output to the workers. The persist channel uses a BLOCKING send so
// the engine stalls rather than lose an event; the publish channel uses a
// non-blocking send with drop accounting, since subscribers can rebuild
// from the event log.
func (e *Engine) emit(typ event.Type, ts time.Time, payload any) {
	digest, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("FATAL: marshal %s payload: %v", typ, err))
	}

	prev := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, digest)

	out := Output{Envelope: &event.Envelope{
		Sequence:  e.sequence,
		Type:      typ,
		Timestamp: ts,
		Payload:   payload,
		StateHash: stateHash,
		PrevHash:  prev,
	}}
	e.sequence++

	e.persistChan <- out

	select {
	case e.publishChan <- out:
	default:
		if e.metrics != nil {
			e.metrics.PublishDrops.Inc()
		}
	}

	if e.metrics != nil {
		e.metrics.Sequence.Set(float64(e.sequence))
	}
}

func (e *Engine) applied(op string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpsApplied.WithLabelValues(op).Inc()
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (e *Engine) reject(op string, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpsRejected.WithLabelValues(op, RejectReason(err)).Inc()
}

// --- Snapshot & restore ---

// SnapshotState holds the serializable in-memory state for warm restart.
type SnapshotState struct {
	Sequence  int64
	StateHash [32]byte
	Swaps     []Swap
	Ledger    LedgerSnapshot
}

// CreateSnapshotState captures the current in-memory state.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		Sequence:  e.sequence - 1, // last assigned sequence
		StateHash: e.hasher.GetPrevHash(),
		Swaps:     e.swaps.Snapshot(),
		Ledger:    e.ledger.Snapshot(),
	}
}

// RestoreFromSnapshot reinstates state captured by CreateSnapshotState.
// Usernames are restored separately by the account directory's own
// snapshot path.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) {
	e.sequence = snap.Sequence + 1
	e.hasher.SetPrevHash(snap.StateHash)
	for _, s := range snap.Swaps {
		e.swaps.RestoreSwap(s)
	}
	e.ledger.Restore(snap.Ledger)
}

// GetSequence returns the next sequence the engine will assign.
func (e *Engine) GetSequence() int64 {
	return e.sequence
}

// GetStateHash returns the current hash-chain tip.
func (e *Engine) GetStateHash() [32]byte {
	return e.hasher.GetPrevHash()
}
