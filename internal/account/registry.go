// Package account implements the username registry: a 1:1, append-only
// mapping from account to username. No rename, no release: once taken, a
// name stays taken.
package account

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const maxUsernameLen = 64

var (
	ErrInvalidUsername   = errors.New("invalid username")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrAlreadyRegistered = errors.New("account already registered")
)

// Registry holds the account→username mapping and the taken-name set.
// Not thread-safe: only accessed from the single-threaded operation loop.
type Registry struct {
	names map[uuid.UUID]string
	taken map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		names: make(map[uuid.UUID]string),
		taken: make(map[string]bool),
	}
}

// Register binds a username to an account. Both directions are checked:
// an account registers at most once, and a name is never reused.
func (r *Registry) Register(acct uuid.UUID, username string) error {
	if acct == uuid.Nil {
		return fmt.Errorf("%w: zero account", ErrInvalidUsername)
	}
	if username == "" || len(username) > maxUsernameLen {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if _, ok := r.names[acct]; ok {
		return fmt.Errorf("%w: account %s", ErrAlreadyRegistered, acct)
	}
	if r.taken[username] {
		return fmt.Errorf("%w: %q", ErrUsernameTaken, username)
	}

	r.names[acct] = username
	r.taken[username] = true
	return nil
}

// IsRegistered reports whether the account holds a username.
func (r *Registry) IsRegistered(acct uuid.UUID) bool {
	_, ok := r.names[acct]
	return ok
}

// UsernameOf returns the account's username, if any.
func (r *Registry) UsernameOf(acct uuid.UUID) (string, bool) {
	name, ok := r.names[acct]
	return name, ok
}

// Snapshot returns a copy of the account→username map.
func (r *Registry) Snapshot() map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(r.names))
	for k, v := range r.names {
		out[k] = v
	}
	return out
}

// Restore reinstates registrations during warm restart.
func (r *Registry) Restore(names map[uuid.UUID]string) {
	for acct, name := range names {
		r.names[acct] = name
		r.taken[name] = true
	}
}
