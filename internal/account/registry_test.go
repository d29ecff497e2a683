package account_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mn-coding-cop/EigenLabsTask/internal/account"
)

func TestRegister_Basic(t *testing.T) {
	r := account.NewRegistry()
	acct := uuid.New()

	if r.IsRegistered(acct) {
		t.Error("fresh account should not be registered")
	}
	if err := r.Register(acct, "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !r.IsRegistered(acct) {
		t.Error("account should be registered")
	}
	if name, ok := r.UsernameOf(acct); !ok || name != "alice" {
		t.Errorf("username: got %q/%v, want alice/true", name, ok)
	}
}

func TestRegister_InvalidUsername(t *testing.T) {
	r := account.NewRegistry()

	cases := map[string]struct {
		acct uuid.UUID
		name string
	}{
		"empty name": {uuid.New(), ""},
		"too long":   {uuid.New(), strings.Repeat("x", 65)},
		"zero acct":  {uuid.Nil, "alice"},
	}
	for label, tc := range cases {
		if err := r.Register(tc.acct, tc.name); !errors.Is(err, account.ErrInvalidUsername) {
			t.Errorf("%s: got %v, want ErrInvalidUsername", label, err)
		}
	}
}

func TestRegister_NoRenameNoReuse(t *testing.T) {
	r := account.NewRegistry()
	acct := uuid.New()

	if err := r.Register(acct, "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(acct, "alice2"); !errors.Is(err, account.ErrAlreadyRegistered) {
		t.Errorf("rename: got %v, want ErrAlreadyRegistered", err)
	}
	if err := r.Register(uuid.New(), "alice"); !errors.Is(err, account.ErrUsernameTaken) {
		t.Errorf("name reuse: got %v, want ErrUsernameTaken", err)
	}
}

func TestRegistry_SnapshotRestore(t *testing.T) {
	r := account.NewRegistry()
	acct := uuid.New()
	r.Register(acct, "alice")

	restored := account.NewRegistry()
	restored.Restore(r.Snapshot())

	if !restored.IsRegistered(acct) {
		t.Error("restored registry lost the registration")
	}
	if err := restored.Register(uuid.New(), "alice"); !errors.Is(err, account.ErrUsernameTaken) {
		t.Errorf("restored taken-set: got %v, want ErrUsernameTaken", err)
	}
}
