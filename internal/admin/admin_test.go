package admin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "admins.json")
	s, err := Load(path, "secret")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, path
}

func TestAuthenticateSuccess(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Authenticate(7, "secret"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !s.IsAdmin(7) {
		t.Error("user not in admin set after success")
	}
}

func TestAuthenticateLockoutAfterThreeFailures(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.Authenticate(7, "wrong"); err == nil {
			t.Fatalf("attempt %d unexpectedly succeeded", i+1)
		}
	}
	// A 4th attempt is rejected outright, even with the real password.
	if err := s.Authenticate(7, "secret"); !errors.Is(err, ErrLockedOut) {
		t.Errorf("after lockout: err = %v, want ErrLockedOut", err)
	}
	if s.IsAdmin(7) {
		t.Error("locked-out user ended up authenticated")
	}
	if got := s.RemainingAttempts(7); got != 0 {
		t.Errorf("RemainingAttempts = %d, want 0", got)
	}
}

func TestAuthenticateSuccessClearsAttempts(t *testing.T) {
	s, _ := newTestStore(t)
	s.Authenticate(7, "wrong")
	s.Authenticate(7, "wrong")
	if err := s.Authenticate(7, "secret"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got := s.RemainingAttempts(7); got != 3 {
		t.Errorf("RemainingAttempts = %d, want 3 after success", got)
	}
}

func TestLockoutIsPerUser(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < 3; i++ {
		s.Authenticate(7, "wrong")
	}
	if err := s.Authenticate(8, "secret"); err != nil {
		t.Errorf("unrelated user affected by lockout: %v", err)
	}
}

func TestStateSurvivesReload(t *testing.T) {
	s, path := newTestStore(t)
	s.Authenticate(7, "secret")
	s.Authenticate(9, "wrong")

	reloaded, err := Load(path, "secret")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsAdmin(7) {
		t.Error("admin set lost on reload")
	}
	if got := reloaded.RemainingAttempts(9); got != 2 {
		t.Errorf("attempts lost on reload: remaining = %d, want 2", got)
	}
}

func TestRequireAdmin(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.RequireAdmin(7); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("err = %v, want ErrNotAdmin", err)
	}
	s.Authenticate(7, "secret")
	if err := s.RequireAdmin(7); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}

func TestEmptyConfiguredPasswordNeverAuthenticates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.json")
	s, err := Load(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Authenticate(7, ""); err == nil {
		t.Error("empty password matched empty configured password")
	}
}

func TestCorruptStateFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path, "secret")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.IsAdmin(7) {
		t.Error("corrupt file produced admins")
	}
}
