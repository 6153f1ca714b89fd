package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsAndEnvOverride(t *testing.T) {
	t.Setenv("GOSLAIM_BOT_TOKEN", "tok-from-env")
	t.Setenv("GOSLAIM_ADMIN_PASSWORD", "pw-from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bot.Token != "tok-from-env" {
		t.Errorf("token = %q, want env value", cfg.Bot.Token)
	}
	if cfg.Admin.Password != "pw-from-env" {
		t.Errorf("password = %q, want env value", cfg.Admin.Password)
	}
	if cfg.Ollama.URL != "http://localhost:11434" {
		t.Errorf("ollama url = %q", cfg.Ollama.URL)
	}
	if cfg.Memory.MaxTurns != 10 || cfg.Memory.ContextTurns != 5 {
		t.Errorf("memory defaults = %+v", cfg.Memory)
	}
}

func TestLoadMissingTokenFails(t *testing.T) {
	t.Setenv("GOSLAIM_BOT_TOKEN", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error with no token configured")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("GOSLAIM_BOT_TOKEN", "tok")
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"ollama": {"url": "http://gpu-box:11434"}, "models": {"main": "llama3"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ollama.URL != "http://gpu-box:11434" {
		t.Errorf("ollama url = %q", cfg.Ollama.URL)
	}
	if cfg.Models.Main != "llama3" {
		t.Errorf("main model = %q", cfg.Models.Main)
	}
	// Fields absent from the file keep defaults.
	if cfg.Models.Vision != "llava" {
		t.Errorf("vision model = %q, want default", cfg.Models.Vision)
	}
}

func TestAtomicWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	in := map[string]int{"attempts": 2}
	if err := AtomicWriteJSON(path, in, 0o600); err != nil {
		t.Fatalf("AtomicWriteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]int
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["attempts"] != 2 {
		t.Errorf("round trip: %+v", out)
	}
}

func TestBackupAndWriteJSONRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	for i := 0; i < 5; i++ {
		if err := BackupAndWriteJSON(path, map[string]int{"v": i}, 0o600, 2); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	backups, err := ListBackups(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) > 2 {
		t.Errorf("kept %d backups, want at most 2", len(backups))
	}
}

func TestLoadPersonaOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.toml")
	body := "system_prompt = \"custom prompt\"\n[replies]\nname = \"custom name reply\"\n[keywords]\ncreator = [\"who built you\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPersona(path)
	if err != nil {
		t.Fatalf("LoadPersona: %v", err)
	}
	if p.SystemPrompt != "custom prompt" {
		t.Errorf("system prompt = %q", p.SystemPrompt)
	}
	if p.Replies.Name != "custom name reply" {
		t.Errorf("name reply = %q", p.Replies.Name)
	}
	// Untouched defaults survive the overlay.
	if p.Replies.Greeting == "" {
		t.Error("greeting default lost")
	}
	if len(p.Keywords.Creator) != 1 {
		t.Errorf("creator keywords = %v", p.Keywords.Creator)
	}
}

func TestLoadPersonaMissingFileUsesDefaults(t *testing.T) {
	p, err := LoadPersona(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadPersona: %v", err)
	}
	if p.SystemPrompt == "" || p.Replies.Creator == "" {
		t.Error("defaults missing")
	}
}
