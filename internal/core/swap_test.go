package core_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mn-coding-cop/EigenLabsTask/internal/core"
)

// ============================================================================
// Fakes
// ============================================================================

type transferCall struct {
	Asset    string
	From, To uuid.UUID
	Amount   int64
}

// fakeTransfer records transfer calls and can be told to fail the Nth call
// (1-based) or to run a callback before each call.
type fakeTransfer struct {
	calls    []transferCall
	failCall int
	onCall   func(call int)
}

func (f *fakeTransfer) Transfer(asset string, from, to uuid.UUID, amount int64) error {
	f.calls = append(f.calls, transferCall{Asset: asset, From: from, To: to, Amount: amount})
	n := len(f.calls)
	if f.onCall != nil {
		f.onCall(n)
	}
	if f.failCall == n {
		return fmt.Errorf("injected failure on call %d", n)
	}
	return nil
}

// openRoster registers everyone.
type openRoster struct{}

func (openRoster) Register(uuid.UUID, string) error { return nil }
func (openRoster) IsRegistered(uuid.UUID) bool      { return true }

// emptyRoster registers no one.
type emptyRoster struct{}

func (emptyRoster) Register(uuid.UUID, string) error { return nil }
func (emptyRoster) IsRegistered(uuid.UUID) bool      { return false }

var (
	alice = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	bob   = uuid.MustParse("660e8400-e29b-41d4-a716-446655440001")
	carol = uuid.MustParse("770e8400-e29b-41d4-a716-446655440002")

	baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func at(caller uuid.UUID, now time.Time) core.OpContext {
	return core.OpContext{Caller: caller, Now: now}
}

func testParams() core.SwapParams {
	return core.SwapParams{
		Counterparty: bob,
		AssetA:       "NFT-77",
		AssetB:       "USDC",
		AmountA:      1,
		AmountB:      5_000,
		Expiry:       baseTime.Add(24 * time.Hour),
	}
}

// ============================================================================
// Test: Create
// ============================================================================

func TestSwapCreate_StoresLiveRecord(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})

	id, evt, err := r.Create(at(alice, baseTime), testParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if evt == nil {
		t.Fatal("create should return an event payload")
	}

	s, ok := r.Get(id)
	if !ok {
		t.Fatal("created swap should be live")
	}
	if s.Initiator != alice || s.Counterparty != bob {
		t.Errorf("parties: got %s/%s, want %s/%s", s.Initiator, s.Counterparty, alice, bob)
	}
	if s.AssetA != "NFT-77" || s.AmountB != 5_000 {
		t.Errorf("stored legs do not match params: %+v", s)
	}
}

func TestSwapCreate_IDMatchesDerivation(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})
	p := testParams()

	want := core.DeriveSwapID(alice, p.Counterparty, p.AssetA, p.AssetB, p.AmountA, p.AmountB, p.Expiry)

	id, _, err := r.Create(at(alice, baseTime), p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != want {
		t.Errorf("created id %s, derived %s", id, want)
	}
}

func TestSwapCreate_ValidationOrder(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})

	// All fields invalid at once: the party check must win.
	p := core.SwapParams{}
	if _, _, err := r.Create(at(alice, baseTime), p); !errors.Is(err, core.ErrInvalidParty) {
		t.Errorf("all-invalid: got %v, want ErrInvalidParty", err)
	}

	p.Counterparty = bob
	if _, _, err := r.Create(at(alice, baseTime), p); !errors.Is(err, core.ErrInvalidAsset) {
		t.Errorf("missing assets: got %v, want ErrInvalidAsset", err)
	}

	p.AssetA, p.AssetB = "NFT-77", "USDC"
	if _, _, err := r.Create(at(alice, baseTime), p); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero amounts: got %v, want ErrInvalidAmount", err)
	}

	p.AmountA, p.AmountB = 1, 5_000
	p.Expiry = baseTime // exactly now is not in the future
	if _, _, err := r.Create(at(alice, baseTime), p); !errors.Is(err, core.ErrExpiryNotFuture) {
		t.Errorf("expiry at now: got %v, want ErrExpiryNotFuture", err)
	}
}

func TestSwapCreate_NegativeAmount(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})
	p := testParams()
	p.AmountB = -5

	if _, _, err := r.Create(at(alice, baseTime), p); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("got %v, want ErrInvalidAmount", err)
	}
}

func TestSwapCreate_DuplicateLiveTuple(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})

	if _, _, err := r.Create(at(alice, baseTime), testParams()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, _, err := r.Create(at(alice, baseTime), testParams()); !errors.Is(err, core.ErrSwapExists) {
		t.Errorf("second create: got %v, want ErrSwapExists", err)
	}
}

func TestSwapCreate_SameTupleDifferentInitiator(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})
	p := testParams()
	p.Counterparty = carol

	idA, _, err := r.Create(at(alice, baseTime), p)
	if err != nil {
		t.Fatalf("alice create: %v", err)
	}
	idB, _, err := r.Create(at(bob, baseTime), p)
	if err != nil {
		t.Fatalf("bob create: %v", err)
	}
	if idA == idB {
		t.Error("different initiators must derive different ids")
	}
}

// ============================================================================
// Test: Execute
// ============================================================================

func TestSwapExecute_SettlesBothLegs(t *testing.T) {
	ft := &fakeTransfer{}
	r := core.NewSwapRegistry(ft)

	id, _, err := r.Create(at(alice, baseTime), testParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	evt, err := r.Execute(at(bob, baseTime.Add(time.Hour)), id)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if evt == nil {
		t.Fatal("execute should return an event payload")
	}

	if len(ft.calls) != 2 {
		t.Fatalf("got %d transfer calls, want 2", len(ft.calls))
	}
	legA, legB := ft.calls[0], ft.calls[1]
	if legA.Asset != "NFT-77" || legA.From != alice || legA.To != bob || legA.Amount != 1 {
		t.Errorf("leg A wrong: %+v", legA)
	}
	if legB.Asset != "USDC" || legB.From != bob || legB.To != alice || legB.Amount != 5_000 {
		t.Errorf("leg B wrong: %+v", legB)
	}

	if _, ok := r.Get(id); ok {
		t.Error("executed swap should no longer be live")
	}
}

func TestSwapExecute_SecondAttemptNotFound(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})

	id, _, _ := r.Create(at(alice, baseTime), testParams())
	if _, err := r.Execute(at(bob, baseTime.Add(time.Hour)), id); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if _, err := r.Execute(at(bob, baseTime.Add(time.Hour)), id); !errors.Is(err, core.ErrSwapNotFound) {
		t.Errorf("second execute: got %v, want ErrSwapNotFound", err)
	}
}

func TestSwapExecute_AtExpiryInstantAllowed(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})
	p := testParams()

	id, _, _ := r.Create(at(alice, baseTime), p)
	if _, err := r.Execute(at(bob, p.Expiry), id); err != nil {
		t.Errorf("execute exactly at expiry should succeed, got %v", err)
	}
}

func TestSwapExecute_AfterExpiryRejected(t *testing.T) {
	ft := &fakeTransfer{}
	r := core.NewSwapRegistry(ft)
	p := testParams()

	id, _, _ := r.Create(at(alice, baseTime), p)
	_, err := r.Execute(at(bob, p.Expiry.Add(time.Nanosecond)), id)
	if !errors.Is(err, core.ErrSwapExpired) {
		t.Fatalf("got %v, want ErrSwapExpired", err)
	}
	if len(ft.calls) != 0 {
		t.Error("no transfers should run for an expired swap")
	}
	if _, ok := r.Get(id); !ok {
		t.Error("expired swap should remain live (cancellable)")
	}
}

func TestSwapExecute_OnlyCounterparty(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})

	id, _, _ := r.Create(at(alice, baseTime), testParams())

	for _, caller := range []uuid.UUID{alice, carol} {
		if _, err := r.Execute(at(caller, baseTime.Add(time.Hour)), id); !errors.Is(err, core.ErrUnauthorized) {
			t.Errorf("caller %s: got %v, want ErrUnauthorized", caller, err)
		}
	}
}

func TestSwapExecute_LegAFailureRestores(t *testing.T) {
	ft := &fakeTransfer{failCall: 1}
	r := core.NewSwapRegistry(ft)

	id, _, _ := r.Create(at(alice, baseTime), testParams())
	_, err := r.Execute(at(bob, baseTime.Add(time.Hour)), id)
	if !errors.Is(err, core.ErrTransferFailed) {
		t.Fatalf("got %v, want ErrTransferFailed", err)
	}

	if len(ft.calls) != 1 {
		t.Errorf("got %d transfer calls, want 1 (leg B must not run)", len(ft.calls))
	}
	if _, ok := r.Get(id); !ok {
		t.Error("swap should be restored after leg A failure")
	}
}

func TestSwapExecute_LegBFailureCompensatesLegA(t *testing.T) {
	ft := &fakeTransfer{failCall: 2}
	r := core.NewSwapRegistry(ft)

	id, _, _ := r.Create(at(alice, baseTime), testParams())
	_, err := r.Execute(at(bob, baseTime.Add(time.Hour)), id)
	if !errors.Is(err, core.ErrTransferFailed) {
		t.Fatalf("got %v, want ErrTransferFailed", err)
	}

	// Calls: leg A, failed leg B, compensating reverse of leg A.
	if len(ft.calls) != 3 {
		t.Fatalf("got %d transfer calls, want 3", len(ft.calls))
	}
	comp := ft.calls[2]
	if comp.Asset != "NFT-77" || comp.From != bob || comp.To != alice || comp.Amount != 1 {
		t.Errorf("compensation call wrong: %+v", comp)
	}
	if _, ok := r.Get(id); !ok {
		t.Error("swap should be restored after leg B failure")
	}
}

func TestSwapExecute_ReentrantExecuteSeesSettledSwap(t *testing.T) {
	ft := &fakeTransfer{}
	r := core.NewSwapRegistry(ft)

	id, _, _ := r.Create(at(alice, baseTime), testParams())

	var reentrantErr error
	ft.onCall = func(call int) {
		if call == 1 {
			_, reentrantErr = r.Execute(at(bob, baseTime.Add(time.Hour)), id)
		}
	}

	if _, err := r.Execute(at(bob, baseTime.Add(time.Hour)), id); err != nil {
		t.Fatalf("outer execute: %v", err)
	}
	if !errors.Is(reentrantErr, core.ErrSwapNotFound) {
		t.Errorf("reentrant execute: got %v, want ErrSwapNotFound", reentrantErr)
	}
}

// ============================================================================
// Test: Cancel
// ============================================================================

func TestSwapCancel_OnlyInitiator(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})

	id, _, _ := r.Create(at(alice, baseTime), testParams())
	if _, err := r.Cancel(at(bob, baseTime), id); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("counterparty cancel: got %v, want ErrUnauthorized", err)
	}

	if _, err := r.Cancel(at(alice, baseTime), id); err != nil {
		t.Fatalf("initiator cancel: %v", err)
	}
	if _, ok := r.Get(id); ok {
		t.Error("cancelled swap should not be live")
	}
}

func TestSwapCancel_AllowedAfterExpiry(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})
	p := testParams()

	id, _, _ := r.Create(at(alice, baseTime), p)
	if _, err := r.Cancel(at(alice, p.Expiry.Add(48*time.Hour)), id); err != nil {
		t.Errorf("cancel after expiry: %v", err)
	}
}

func TestSwapCancel_ThenRecreateSameTuple(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})
	p := testParams()

	id1, _, _ := r.Create(at(alice, baseTime), p)
	if _, err := r.Cancel(at(alice, baseTime), id1); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	id2, _, err := r.Create(at(alice, baseTime), p)
	if err != nil {
		t.Fatalf("recreate after cancel: %v", err)
	}
	if id1 != id2 {
		t.Error("recreated identical tuple should derive the identical id")
	}
}

// ============================================================================
// Test: ResolveID
// ============================================================================

func TestSwapResolveID(t *testing.T) {
	r := core.NewSwapRegistry(&fakeTransfer{})
	p := testParams()

	id, live := r.ResolveID(alice, p)
	if live {
		t.Error("unknown tuple should not resolve live")
	}

	created, _, _ := r.Create(at(alice, baseTime), p)
	if created != id {
		t.Errorf("pre-derived id %s differs from created id %s", id, created)
	}

	if _, live := r.ResolveID(alice, p); !live {
		t.Error("created tuple should resolve live")
	}

	if _, err := r.Cancel(at(alice, baseTime), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, live := r.ResolveID(alice, p); live {
		t.Error("cancelled tuple should not resolve live")
	}
}
