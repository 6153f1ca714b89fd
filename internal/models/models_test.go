package models

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/slaimbot/goslaim/internal/llm"
)

type fakeBackend struct {
	models      []string
	vision      map[string]bool
	ensured     []string
	listErr     error
	visionCalls int
}

func (f *fakeBackend) ListModels(context.Context) ([]llm.ModelInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	infos := make([]llm.ModelInfo, len(f.models))
	for i, name := range f.models {
		infos[i] = llm.ModelInfo{Name: name}
	}
	return infos, nil
}

func (f *fakeBackend) SupportsVision(_ context.Context, model string) (bool, error) {
	f.visionCalls++
	return f.vision[model], nil
}

func (f *fakeBackend) EnsureLoaded(_ context.Context, model string) error {
	f.ensured = append(f.ensured, model)
	return nil
}

func newTestSelection(t *testing.T, backend Backend) (*Selection, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.json")
	s, err := Load(path, backend, "gemma3:12b", "llava")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, path
}

func TestDefaultsApply(t *testing.T) {
	s, _ := newTestSelection(t, &fakeBackend{})
	if s.MainModel() != "gemma3:12b" || s.VisionModel() != "llava" {
		t.Errorf("defaults = %q / %q", s.MainModel(), s.VisionModel())
	}
}

func TestSetRoundTripSurvivesReload(t *testing.T) {
	backend := &fakeBackend{models: []string{"llama3", "gemma3:12b"}}
	s, path := newTestSelection(t, backend)

	if err := s.Set(context.Background(), RoleMain, "llama3"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if s.Get(RoleMain) != "llama3" {
		t.Errorf("Get = %q", s.Get(RoleMain))
	}

	reloaded, err := Load(path, backend, "gemma3:12b", "llava")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Get(RoleMain) != "llama3" {
		t.Errorf("after reload Get = %q", reloaded.Get(RoleMain))
	}
	// The untouched role keeps its default.
	if reloaded.Get(RoleVision) != "llava" {
		t.Errorf("vision = %q", reloaded.Get(RoleVision))
	}
}

func TestSetRejectsUnknownModel(t *testing.T) {
	s, _ := newTestSelection(t, &fakeBackend{models: []string{"llama3"}})
	err := s.Set(context.Background(), RoleMain, "nope")
	if !llm.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
	if s.MainModel() != "gemma3:12b" {
		t.Error("selection mutated by failed Set")
	}
}

func TestSetVisionRequiresCapability(t *testing.T) {
	backend := &fakeBackend{
		models: []string{"llama3", "llava"},
		vision: map[string]bool{"llava": true},
	}
	s, _ := newTestSelection(t, backend)

	if err := s.Set(context.Background(), RoleVision, "llama3"); !llm.IsNoCapability(err) {
		t.Errorf("err = %v, want capability error", err)
	}
	if err := s.Set(context.Background(), RoleVision, "llava"); err != nil {
		t.Errorf("Set llava: %v", err)
	}
	// The main role never pays for a vision check.
	calls := backend.visionCalls
	if err := s.Set(context.Background(), RoleMain, "llama3"); err != nil {
		t.Fatalf("Set main: %v", err)
	}
	if backend.visionCalls != calls {
		t.Error("vision checked for main role")
	}
}

func TestSetSurfacesListError(t *testing.T) {
	s, _ := newTestSelection(t, &fakeBackend{listErr: errors.New("down")})
	if err := s.Set(context.Background(), RoleMain, "llama3"); err == nil {
		t.Error("expected error when listing fails")
	}
}

func TestKeepWarmOnceTouchesBothRoles(t *testing.T) {
	backend := &fakeBackend{}
	s, _ := newTestSelection(t, backend)

	s.KeepWarmOnce(context.Background())
	if len(backend.ensured) != 2 {
		t.Fatalf("ensured = %v", backend.ensured)
	}
	if backend.ensured[0] != "gemma3:12b" || backend.ensured[1] != "llava" {
		t.Errorf("ensured = %v", backend.ensured)
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"main": RoleMain, "основная": RoleMain,
		"vision": RoleVision, "зрение": RoleVision,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Errorf("ParseRole(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseRole("other"); err == nil {
		t.Error("expected error for unknown role")
	}
}
