// Package transfer provides implementations of the asset transfer port:
// an in-memory vault for tests and single-process deployments, and a NATS
// request/reply client for an external settlement service.
package transfer

import (
	"fmt"

	"github.com/google/uuid"
)

type vaultKey struct {
	Account uuid.UUID
	Asset   string
}

// Vault is an in-memory multi-asset balance bank. Transfers refuse
// overdrafts, which makes it a faithful stand-in for an external asset
// module in tests. Not thread-safe: only accessed from the
// single-threaded operation loop.
type Vault struct {
	balances map[vaultKey]int64
}

func NewVault() *Vault {
	return &Vault{balances: make(map[vaultKey]int64)}
}

// Mint credits an account out of thin air. Test and bootstrap seeding only.
func (v *Vault) Mint(account uuid.UUID, asset string, amount int64) {
	v.balances[vaultKey{account, asset}] += amount
}

// Transfer moves amount of asset between accounts. Any failure leaves both
// balances untouched.
func (v *Vault) Transfer(asset string, from, to uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive, got %d", amount)
	}
	if asset == "" {
		return fmt.Errorf("transfer asset is empty")
	}
	fromKey := vaultKey{from, asset}
	if v.balances[fromKey] < amount {
		return fmt.Errorf("insufficient %s balance: have=%d, need=%d", asset, v.balances[fromKey], amount)
	}

	v.balances[fromKey] -= amount
	v.balances[vaultKey{to, asset}] += amount
	return nil
}

// Balance returns the account's holding of one asset.
func (v *Vault) Balance(account uuid.UUID, asset string) int64 {
	return v.balances[vaultKey{account, asset}]
}
