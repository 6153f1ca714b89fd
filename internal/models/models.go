// Package models tracks which model serves each role (main text, vision)
// and keeps the selected models warm on the backend.
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/slaimbot/goslaim/internal/config"
	"github.com/slaimbot/goslaim/internal/llm"
	. "github.com/slaimbot/goslaim/internal/logging"
)

// Role names a model slot.
type Role string

const (
	RoleMain   Role = "main"
	RoleVision Role = "vision"
)

// RussianName returns the role name used in chat-facing text.
func (r Role) RussianName() string {
	switch r {
	case RoleMain:
		return "основная"
	case RoleVision:
		return "зрение"
	}
	return string(r)
}

// ParseRole accepts both the English and the Russian role name.
func ParseRole(s string) (Role, error) {
	switch s {
	case "main", "основная":
		return RoleMain, nil
	case "vision", "зрение":
		return RoleVision, nil
	}
	return "", fmt.Errorf("unknown role %q (main|vision)", s)
}

// Backend is the slice of the model gateway the selection needs for
// validation and warming.
type Backend interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
	SupportsVision(ctx context.Context, model string) (bool, error)
	EnsureLoaded(ctx context.Context, model string) error
}

// Selection holds the current role assignments, persisted on every change.
type Selection struct {
	mu      sync.RWMutex
	path    string
	roles   map[Role]string
	backend Backend
}

// Load reads the persisted selection, falling back to the given defaults
// for unset roles.
func Load(path string, backend Backend, defaultMain, defaultVision string) (*Selection, error) {
	s := &Selection{
		path:    path,
		backend: backend,
		roles: map[Role]string{
			RoleMain:   defaultMain,
			RoleVision: defaultVision,
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	var persisted map[Role]string
	if err := json.Unmarshal(data, &persisted); err != nil {
		L_warn("models: selection file %s is corrupt, using defaults: %v", path, err)
		return s, nil
	}
	for role, name := range persisted {
		if name != "" {
			s.roles[role] = name
		}
	}
	return s, nil
}

// Get returns the model currently assigned to role.
func (s *Selection) Get(role Role) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles[role]
}

// MainModel implements the agents' model source.
func (s *Selection) MainModel() string { return s.Get(RoleMain) }

// VisionModel implements the agents' model source.
func (s *Selection) VisionModel() string { return s.Get(RoleVision) }

// Set assigns name to role after validating that the backend actually has
// the model, and for the vision role, that it accepts images. Caller is
// responsible for the admin check.
func (s *Selection) Set(ctx context.Context, role Role, name string) error {
	available, err := s.backend.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	found := false
	for _, m := range available {
		if m.Name == name {
			found = true
			break
		}
	}
	if !found {
		return llm.ErrValidation{Field: "model", Reason: fmt.Sprintf("%q is not available on the backend", name)}
	}

	if role == RoleVision {
		ok, err := s.backend.SupportsVision(ctx, name)
		if err != nil {
			return fmt.Errorf("check vision support: %w", err)
		}
		if !ok {
			return llm.ErrNoCapability{Model: name, Capability: "vision"}
		}
	}

	s.mu.Lock()
	s.roles[role] = name
	snapshot := make(map[Role]string, len(s.roles))
	for r, n := range s.roles {
		snapshot[r] = n
	}
	s.mu.Unlock()

	if err := config.BackupAndWriteJSON(s.path, snapshot, 0o644, 3); err != nil {
		return fmt.Errorf("persist selection: %w", err)
	}
	L_info("models: role %s now uses %s", role, name)
	return nil
}

// KeepWarmOnce refreshes the load verification for every selected model.
func (s *Selection) KeepWarmOnce(ctx context.Context) {
	for _, role := range []Role{RoleMain, RoleVision} {
		name := s.Get(role)
		if name == "" {
			continue
		}
		if err := s.backend.EnsureLoaded(ctx, name); err != nil {
			L_warn("models: keep-warm for %s (%s) failed: %v", name, role, err)
		}
	}
}

// StartKeepWarm schedules periodic EnsureLoaded calls for the selected
// models so the first user request after an idle period is not stuck
// behind a cold load. Returns a stop function.
func (s *Selection) StartKeepWarm(schedule string) (stop func(), err error) {
	if schedule == "" {
		return func() {}, nil
	}

	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), llm.DefaultTimeout)
		defer cancel()
		s.KeepWarmOnce(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule keep-warm: %w", err)
	}
	c.Start()
	L_info("models: keep-warm scheduled (%s)", schedule)
	return func() { c.Stop() }, nil
}
