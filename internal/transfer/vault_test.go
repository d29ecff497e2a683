package transfer_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mn-coding-cop/EigenLabsTask/internal/transfer"
)

func TestVault_TransferMovesBalance(t *testing.T) {
	v := transfer.NewVault()
	from, to := uuid.New(), uuid.New()
	v.Mint(from, "USDC", 1_000)

	if err := v.Transfer("USDC", from, to, 400); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := v.Balance(from, "USDC"); got != 600 {
		t.Errorf("from balance: got %d, want 600", got)
	}
	if got := v.Balance(to, "USDC"); got != 400 {
		t.Errorf("to balance: got %d, want 400", got)
	}
}

func TestVault_RefusesOverdraft(t *testing.T) {
	v := transfer.NewVault()
	from, to := uuid.New(), uuid.New()
	v.Mint(from, "USDC", 100)

	if err := v.Transfer("USDC", from, to, 101); err == nil {
		t.Fatal("overdraft should fail")
	}
	if got := v.Balance(from, "USDC"); got != 100 {
		t.Errorf("failed transfer must not touch balances, from=%d", got)
	}
	if got := v.Balance(to, "USDC"); got != 0 {
		t.Errorf("failed transfer must not touch balances, to=%d", got)
	}
}

func TestVault_RejectsBadArguments(t *testing.T) {
	v := transfer.NewVault()
	from, to := uuid.New(), uuid.New()
	v.Mint(from, "USDC", 100)

	if err := v.Transfer("USDC", from, to, 0); err == nil {
		t.Error("zero amount should fail")
	}
	if err := v.Transfer("USDC", from, to, -5); err == nil {
		t.Error("negative amount should fail")
	}
	if err := v.Transfer("", from, to, 10); err == nil {
		t.Error("empty asset should fail")
	}
}

func TestVault_AssetsAreIndependent(t *testing.T) {
	v := transfer.NewVault()
	acct := uuid.New()
	v.Mint(acct, "USDC", 100)

	if got := v.Balance(acct, "USDT"); got != 0 {
		t.Errorf("USDT balance: got %d, want 0", got)
	}
	if err := v.Transfer("USDT", acct, uuid.New(), 10); err == nil {
		t.Error("transfer of unheld asset should fail")
	}
}
