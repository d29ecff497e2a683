package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mn-coding-cop/EigenLabsTask/internal/event"
)

// Item is a marketplace listing. Identity is a monotonically increasing
// counter assigned at listing time and never reused; items are never
// deleted. Any item visible to buyers has Price > 0.
type Item struct {
	ID          uint64
	Name        string
	Description string
	Price       int64
	Owner       uuid.UUID
	Sold        bool
}

// Transaction is an append-only purchase record, retained twice: once in
// the buyer's history and once in the seller's.
type Transaction struct {
	ItemID    uint64
	Price     int64
	Buyer     uuid.UUID
	Timestamp time.Time
}

// EscrowLedger owns the item store, the per-account withdrawable balances,
// and the purchase histories. Sale proceeds are held as ledger balance and
// only leave the system through Withdraw, which pays out via the transfer
// port from the treasury account. Not thread-safe: only accessed from the
// single-threaded operation loop.
type EscrowLedger struct {
	items      map[uint64]*Item
	nextItemID uint64

	balances  map[uuid.UUID]int64
	purchases map[uuid.UUID][]Transaction
	sales     map[uuid.UUID][]Transaction

	guard    *ReentrancyGuard
	transfer AssetTransferPort
	roster   AccountDirectory

	payoutAsset string
	treasury    uuid.UUID
}

func NewEscrowLedger(transfer AssetTransferPort, roster AccountDirectory, payoutAsset string, treasury uuid.UUID) *EscrowLedger {
	return &EscrowLedger{
		items:       make(map[uint64]*Item),
		nextItemID:  1,
		balances:    make(map[uuid.UUID]int64),
		purchases:   make(map[uuid.UUID][]Transaction),
		sales:       make(map[uuid.UUID][]Transaction),
		guard:       NewReentrancyGuard(),
		transfer:    transfer,
		roster:      roster,
		payoutAsset: payoutAsset,
		treasury:    treasury,
	}
}

// List creates a new unsold listing owned by the caller. Listing is gated
// on username registration.
func (l *EscrowLedger) List(ctx OpContext, name, description string, price int64) (uint64, *event.ItemListed, error) {
	if !l.roster.IsRegistered(ctx.Caller) {
		return 0, nil, fmt.Errorf("%w: account %s", ErrNotRegistered, ctx.Caller)
	}
	if price <= 0 {
		return 0, nil, fmt.Errorf("%w: price must be positive", ErrInvalidPrice)
	}

	id := l.nextItemID
	l.nextItemID++

	l.items[id] = &Item{
		ID:          id,
		Name:        name,
		Description: description,
		Price:       price,
		Owner:       ctx.Caller,
		Sold:        false,
	}

	return id, &event.ItemListed{ItemID: id, Owner: ctx.Caller, Name: name, Price: price}, nil
}

// UpdatePrice mutates the price of an unsold listing in place. The inverse
// precondition of Relist: an item is either purchasable-and-editable or
// sold-and-relistable, never both.
func (l *EscrowLedger) UpdatePrice(ctx OpContext, itemID uint64, newPrice int64) (*event.ItemPriceUpdated, error) {
	if newPrice <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidPrice)
	}
	it, ok := l.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: item %d", ErrItemNotFound, itemID)
	}
	if it.Sold {
		return nil, fmt.Errorf("%w: item %d", ErrAlreadySold, itemID)
	}
	if it.Owner != ctx.Caller {
		return nil, fmt.Errorf("%w: only the owner may update the price", ErrUnauthorized)
	}

	old := it.Price
	it.Price = newPrice

	return &event.ItemPriceUpdated{ItemID: itemID, Owner: it.Owner, OldPrice: old, NewPrice: newPrice}, nil
}

// Relist puts a sold item back on sale at a new price.
func (l *EscrowLedger) Relist(ctx OpContext, itemID uint64, newPrice int64) (*event.ItemRelisted, error) {
	if newPrice <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidPrice)
	}
	it, ok := l.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: item %d", ErrItemNotFound, itemID)
	}
	if !it.Sold {
		return nil, fmt.Errorf("%w: item %d", ErrNotSold, itemID)
	}
	if it.Owner != ctx.Caller {
		return nil, fmt.Errorf("%w: only the owner may relist", ErrUnauthorized)
	}

	it.Sold = false
	it.Price = newPrice

	return &event.ItemRelisted{ItemID: itemID, Owner: it.Owner, NewPrice: newPrice}, nil
}

// Purchase sells an unsold item to the caller for exactly the listed price
// (no overpayment, no partial payment). The seller's balance credit, both
// history appends, and the ownership flip all commit before the operation
// returns. No external call happens on this path; the guard still wraps
// the mutation so the reentrancy rule holds uniformly across operations.
func (l *EscrowLedger) Purchase(ctx OpContext, itemID uint64, payment int64) (*event.ItemPurchased, error) {
	it, ok := l.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: item %d", ErrItemNotFound, itemID)
	}
	if it.Sold {
		return nil, fmt.Errorf("%w: item %d", ErrAlreadySold, itemID)
	}
	if payment != it.Price {
		return nil, fmt.Errorf("%w: price %d, paid %d", ErrWrongAmount, it.Price, payment)
	}

	var evt *event.ItemPurchased
	err := l.guard.Do(func() error {
		seller := it.Owner

		l.balances[seller] += payment

		record := Transaction{ItemID: itemID, Price: payment, Buyer: ctx.Caller, Timestamp: ctx.Now}
		l.purchases[ctx.Caller] = append(l.purchases[ctx.Caller], record)
		l.sales[seller] = append(l.sales[seller], record)

		it.Owner = ctx.Caller
		it.Sold = true

		evt = &event.ItemPurchased{ItemID: itemID, Buyer: ctx.Caller, Seller: seller, Amount: payment}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evt, nil
}

// Withdraw pays out the caller's full withdrawable balance. The balance is
// zeroed BEFORE the payout transfer runs, so a reentrant withdrawal
// observes an empty balance; a failed payout restores it, keeping the
// operation all-or-nothing.
func (l *EscrowLedger) Withdraw(ctx OpContext) (*event.FundsWithdrawn, error) {
	amount := l.balances[ctx.Caller]
	if amount <= 0 {
		return nil, fmt.Errorf("%w: account %s has nothing to withdraw", ErrInsufficientFunds, ctx.Caller)
	}

	var evt *event.FundsWithdrawn
	err := l.guard.Do(func() error {
		l.balances[ctx.Caller] = 0

		if err := l.transfer.Transfer(l.payoutAsset, l.treasury, ctx.Caller, amount); err != nil {
			l.balances[ctx.Caller] = amount
			return fmt.Errorf("%w: payout of %d %s: %v", ErrTransferFailed, amount, l.payoutAsset, err)
		}

		evt = &event.FundsWithdrawn{Account: ctx.Caller, Amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evt, nil
}

// GetItem returns the item record, or the zero-valued record when the id
// was never assigned. Callers must treat an all-default result as "does
// not exist".
func (l *EscrowLedger) GetItem(itemID uint64) Item {
	if it, ok := l.items[itemID]; ok {
		return *it
	}
	return Item{}
}

// BalanceOf returns the withdrawable balance credited from completed sales.
func (l *EscrowLedger) BalanceOf(account uuid.UUID) int64 {
	return l.balances[account]
}

// PurchasesOf returns the buyer-indexed history for an account.
func (l *EscrowLedger) PurchasesOf(account uuid.UUID) []Transaction {
	return append([]Transaction(nil), l.purchases[account]...)
}

// SalesOf returns the seller-indexed history for an account.
func (l *EscrowLedger) SalesOf(account uuid.UUID) []Transaction {
	return append([]Transaction(nil), l.sales[account]...)
}

// --- Snapshot support ---

// LedgerSnapshot is the serializable marketplace state.
type LedgerSnapshot struct {
	NextItemID uint64
	Items      []Item
	Balances   map[uuid.UUID]int64
	Purchases  map[uuid.UUID][]Transaction
	Sales      map[uuid.UUID][]Transaction
}

func (l *EscrowLedger) Snapshot() LedgerSnapshot {
	snap := LedgerSnapshot{
		NextItemID: l.nextItemID,
		Items:      make([]Item, 0, len(l.items)),
		Balances:   make(map[uuid.UUID]int64, len(l.balances)),
		Purchases:  make(map[uuid.UUID][]Transaction, len(l.purchases)),
		Sales:      make(map[uuid.UUID][]Transaction, len(l.sales)),
	}
	for _, it := range l.items {
		snap.Items = append(snap.Items, *it)
	}
	for k, v := range l.balances {
		snap.Balances[k] = v
	}
	for k, v := range l.purchases {
		snap.Purchases[k] = append([]Transaction(nil), v...)
	}
	for k, v := range l.sales {
		snap.Sales[k] = append([]Transaction(nil), v...)
	}
	return snap
}

func (l *EscrowLedger) Restore(snap LedgerSnapshot) {
	if snap.NextItemID > 0 {
		l.nextItemID = snap.NextItemID
	}
	for _, it := range snap.Items {
		saved := it
		l.items[it.ID] = &saved
	}
	for k, v := range snap.Balances {
		l.balances[k] = v
	}
	for k, v := range snap.Purchases {
		l.purchases[k] = append([]Transaction(nil), v...)
	}
	for k, v := range snap.Sales {
		l.sales[k] = append([]Transaction(nil), v...)
	}
}
