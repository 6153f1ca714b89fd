// Package config loads the static goslaim configuration and provides the
// atomic JSON persistence helpers used by runtime state files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the merged goslaim configuration. Loaded once at startup,
// never reloaded at runtime.
type Config struct {
	Bot     BotConfig     `json:"bot"`
	Ollama  OllamaConfig  `json:"ollama"`
	Models  ModelsConfig  `json:"models"`
	Memory  MemoryConfig  `json:"memory"`
	Admin   AdminConfig   `json:"admin"`
	Search  SearchConfig  `json:"search"`
	SD      SDConfig      `json:"sd"`
	Files   FilesConfig   `json:"files"`
	Logging LoggingConfig `json:"logging"`

	// DataDir holds runtime state files (admin set, model selection).
	DataDir string `json:"dataDir"`
}

type BotConfig struct {
	Name     string `json:"name"`     // display name, also matched in group chats
	Username string `json:"username"` // handle without @
	Token    string `json:"token"`    // from env GOSLAIM_BOT_TOKEN if unset
}

type OllamaConfig struct {
	URL               string `json:"url"`
	TimeoutSeconds    int    `json:"timeoutSeconds"`
	LoadTTLMinutes    int    `json:"loadTTLMinutes"`
	VisionTTLMinutes  int    `json:"visionTTLMinutes"`
	MaxPromptChars    int    `json:"maxPromptChars"`
	KeepWarmSchedule  string `json:"keepWarmSchedule"` // cron spec, "" disables
}

type ModelsConfig struct {
	Main   string `json:"main"`   // default text model
	Vision string `json:"vision"` // default vision model
}

type MemoryConfig struct {
	MaxTurns     int `json:"maxTurns"`
	ContextTurns int `json:"contextTurns"`
}

type AdminConfig struct {
	Password string `json:"password"` // from env GOSLAIM_ADMIN_PASSWORD if unset
}

type SearchConfig struct {
	Endpoint   string `json:"endpoint"`
	UserAgent  string `json:"userAgent"`
	MaxResults int    `json:"maxResults"`
}

type SDConfig struct {
	URL            string `json:"url"` // "" disables image generation
	Steps          int    `json:"steps"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type FilesConfig struct {
	MaxDocumentBytes int64 `json:"maxDocumentBytes"`
	MaxImageBytes    int64 `json:"maxImageBytes"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Bot: BotConfig{
			Name:     "Слайм",
			Username: "slaim_bot",
		},
		Ollama: OllamaConfig{
			URL:              "http://localhost:11434",
			TimeoutSeconds:   300,
			LoadTTLMinutes:   60,
			VisionTTLMinutes: 60,
			KeepWarmSchedule: "@every 30m",
		},
		Models: ModelsConfig{
			Main:   "gemma3:12b",
			Vision: "llava",
		},
		Memory: MemoryConfig{
			MaxTurns:     10,
			ContextTurns: 5,
		},
		Search: SearchConfig{
			Endpoint:   "https://html.duckduckgo.com/html/",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			MaxResults: 5,
		},
		SD: SDConfig{
			Steps:          28,
			Width:          768,
			Height:         768,
			TimeoutSeconds: 300,
		},
		Files: FilesConfig{
			MaxDocumentBytes: 1 << 20, // 1MB of text is plenty for a prompt
			MaxImageBytes:    5 << 20,
		},
		Logging: LoggingConfig{Level: "info"},
		DataDir: "data",
	}
}

// Load reads the config file (if present) over the defaults, then applies
// environment overrides for secrets.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if tok := os.Getenv("GOSLAIM_BOT_TOKEN"); tok != "" {
		cfg.Bot.Token = tok
	}
	if pw := os.Getenv("GOSLAIM_ADMIN_PASSWORD"); pw != "" {
		cfg.Admin.Password = pw
	}

	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token not configured (set GOSLAIM_BOT_TOKEN or bot.token)")
	}

	return cfg, nil
}

// OllamaTimeout returns the request timeout as a duration.
func (c *Config) OllamaTimeout() time.Duration {
	return time.Duration(c.Ollama.TimeoutSeconds) * time.Second
}

// LoadTTL returns the model-load freshness window.
func (c *Config) LoadTTL() time.Duration {
	return time.Duration(c.Ollama.LoadTTLMinutes) * time.Minute
}

// VisionTTL returns the vision-capability cache window.
func (c *Config) VisionTTL() time.Duration {
	return time.Duration(c.Ollama.VisionTTLMinutes) * time.Minute
}

// SDTimeout returns the image-generation request timeout.
func (c *Config) SDTimeout() time.Duration {
	return time.Duration(c.SD.TimeoutSeconds) * time.Second
}

// StatePath returns the path of a runtime state file under DataDir.
func (c *Config) StatePath(name string) string {
	return filepath.Join(c.DataDir, name)
}
