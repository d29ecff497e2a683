package core_test

import (
	"errors"
	"testing"

	"github.com/mn-coding-cop/EigenLabsTask/internal/core"
)

func TestReentrancyGuard_FreeByDefault(t *testing.T) {
	g := core.NewReentrancyGuard()
	if g.Held() {
		t.Error("new guard should be free")
	}
}

func TestReentrancyGuard_HeldDuringDo(t *testing.T) {
	g := core.NewReentrancyGuard()

	err := g.Do(func() error {
		if !g.Held() {
			t.Error("guard should be held inside Do")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if g.Held() {
		t.Error("guard should be released after Do returns")
	}
}

func TestReentrancyGuard_RejectsReentry(t *testing.T) {
	g := core.NewReentrancyGuard()

	var inner error
	err := g.Do(func() error {
		inner = g.Do(func() error { return nil })
		return nil
	})
	if err != nil {
		t.Fatalf("outer Do: %v", err)
	}
	if !errors.Is(inner, core.ErrReentrantCall) {
		t.Errorf("inner Do: got %v, want ErrReentrantCall", inner)
	}
}

func TestReentrancyGuard_ReleasedAfterError(t *testing.T) {
	g := core.NewReentrancyGuard()
	boom := errors.New("boom")

	if err := g.Do(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Do should propagate the callback error, got %v", err)
	}
	if g.Held() {
		t.Error("guard should be free after a failed operation")
	}
	if err := g.Do(func() error { return nil }); err != nil {
		t.Errorf("guard should accept the next operation, got %v", err)
	}
}

func TestReentrancyGuard_ReleasedAfterPanic(t *testing.T) {
	g := core.NewReentrancyGuard()

	func() {
		defer func() { recover() }()
		g.Do(func() error { panic("boom") })
	}()

	if g.Held() {
		t.Error("guard should be free after a panicking operation")
	}
}
