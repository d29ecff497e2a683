package core

// ReentrancyGuard is a binary Free/Held lock around operations that hand
// control to an external transfer primitive. It is not a mutex: execution
// is strictly serialized by the owning loop, and the only hazard is a
// callback re-entering the same ledger before the original operation
// finishes. Entering while Held fails immediately with ErrReentrantCall.
//
// Guarded operations must never call another guarded operation on the same
// instance; the guard rejecting that is the intended safety behavior.
type ReentrancyGuard struct {
	held bool
}

func NewReentrancyGuard() *ReentrancyGuard {
	return &ReentrancyGuard{}
}

// Do runs fn while the guard is Held. The guard is restored to Free on
// every exit path, including panics, before control returns to the caller.
func (g *ReentrancyGuard) Do(fn func() error) error {
	if g.held {
		return ErrReentrantCall
	}
	g.held = true
	defer func() { g.held = false }()
	return fn()
}

// Held reports whether an operation is currently mid-flight.
func (g *ReentrancyGuard) Held() bool {
	return g.held
}
