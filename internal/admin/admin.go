// Package admin tracks authenticated administrator IDs with an
// attempt-limited shared-password check, persisted to a flat JSON file.
package admin

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/slaimbot/goslaim/internal/config"
	. "github.com/slaimbot/goslaim/internal/logging"
)

const maxAttempts = 3

// ErrLockedOut is returned once a user has exhausted their attempts. The
// supplied password is never compared in this state.
var ErrLockedOut = errors.New("too many failed attempts")

// ErrBadPassword is returned for a wrong password while attempts remain.
var ErrBadPassword = errors.New("wrong password")

// ErrNotAdmin is returned by RequireAdmin for unauthenticated users.
var ErrNotAdmin = errors.New("not an administrator")

type state struct {
	AdminIDs []int64       `json:"admin_ids"`
	Attempts map[int64]int `json:"attempts"`
}

// Store holds the admin set and failed-attempt counters. All mutations
// persist immediately, last writer wins.
type Store struct {
	mu       sync.Mutex
	password string
	path     string
	admins   map[int64]bool
	attempts map[int64]int
}

// Load reads the persisted state from path. A missing file starts empty.
func Load(path, password string) (*Store, error) {
	s := &Store{
		password: password,
		path:     path,
		admins:   make(map[int64]bool),
		attempts: make(map[int64]int),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	var persisted state
	if err := json.Unmarshal(data, &persisted); err != nil {
		L_warn("admin: state file %s is corrupt, starting empty: %v", path, err)
		return s, nil
	}
	for _, id := range persisted.AdminIDs {
		s.admins[id] = true
	}
	if persisted.Attempts != nil {
		s.attempts = persisted.Attempts
	}
	return s, nil
}

// Authenticate checks password for userID. Locked-out users are rejected
// before any comparison happens. Success clears the attempt counter.
func (s *Store) Authenticate(userID int64, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.admins[userID] {
		return nil
	}
	if s.attempts[userID] >= maxAttempts {
		return ErrLockedOut
	}
	if s.password == "" {
		return ErrBadPassword
	}

	if subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		s.attempts[userID]++
		s.persistLocked()
		if s.attempts[userID] >= maxAttempts {
			L_warn("admin: user %d locked out after %d failed attempts", userID, maxAttempts)
			return ErrLockedOut
		}
		return ErrBadPassword
	}

	s.admins[userID] = true
	delete(s.attempts, userID)
	s.persistLocked()
	L_info("admin: user %d authenticated", userID)
	return nil
}

// IsAdmin reports whether userID has authenticated.
func (s *Store) IsAdmin(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admins[userID]
}

// RequireAdmin returns ErrNotAdmin for unauthenticated users.
func (s *Store) RequireAdmin(userID int64) error {
	if !s.IsAdmin(userID) {
		return ErrNotAdmin
	}
	return nil
}

// RemainingAttempts returns how many tries userID has left.
func (s *Store) RemainingAttempts(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	left := maxAttempts - s.attempts[userID]
	if left < 0 {
		return 0
	}
	return left
}

func (s *Store) persistLocked() {
	persisted := state{Attempts: s.attempts}
	for id := range s.admins {
		persisted.AdminIDs = append(persisted.AdminIDs, id)
	}
	if err := config.AtomicWriteJSON(s.path, persisted, 0o600); err != nil {
		L_error("admin: persist %s failed: %v", s.path, err)
	}
}
