package event

import "github.com/google/uuid"

type ItemListed struct {
	ItemID uint64    `json:"item_id"`
	Owner  uuid.UUID `json:"owner"`
	Name   string    `json:"name"`
	Price  int64     `json:"price"`
}

type ItemPriceUpdated struct {
	ItemID   uint64    `json:"item_id"`
	Owner    uuid.UUID `json:"owner"`
	OldPrice int64     `json:"old_price"`
	NewPrice int64     `json:"new_price"`
}

type ItemRelisted struct {
	ItemID   uint64    `json:"item_id"`
	Owner    uuid.UUID `json:"owner"`
	NewPrice int64     `json:"new_price"`
}

// ItemPurchased names the item, the buyer, the previous owner, and the
// amount credited to the previous owner's withdrawable balance.
type ItemPurchased struct {
	ItemID uint64    `json:"item_id"`
	Buyer  uuid.UUID `json:"buyer"`
	Seller uuid.UUID `json:"seller"`
	Amount int64     `json:"amount"`
}

type FundsWithdrawn struct {
	Account uuid.UUID `json:"account"`
	Amount  int64     `json:"amount"`
}

type AccountRegistered struct {
	Account  uuid.UUID `json:"account"`
	Username string    `json:"username"`
}
