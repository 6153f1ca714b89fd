// Package llm provides the gateway to a local Ollama inference server:
// text and vision generation, model listing, and a load-state cache that
// keeps concurrent requests from pulling the same model twice.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/slaimbot/goslaim/internal/logging"
)

// Defaults applied when the config leaves fields zero.
const (
	DefaultTimeout        = 300 * time.Second
	DefaultLoadTTL        = time.Hour
	DefaultVisionTTL      = time.Hour
	DefaultMaxPromptChars = 24000 // ~8k tokens at 3 chars/token
	visionCacheSize       = 64
)

// Config holds Ollama client settings.
type Config struct {
	URL            string        // e.g. "http://localhost:11434"
	Timeout        time.Duration // per-request HTTP timeout
	LoadTTL        time.Duration // how long a load verification stays fresh
	VisionTTL      time.Duration // how long a vision-support answer stays fresh
	MaxPromptChars int           // prompt truncation budget
}

// ModelInfo describes one locally available model.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Client talks to the Ollama HTTP API.
type Client struct {
	url            string
	client         *http.Client
	maxPromptChars int
	loads          *registry
	vision         *expirable.LRU[string, bool]
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Stream bool     `json:"stream"`
	Images []string `json:"images,omitempty"`
}

type generateResponse struct {
	Response *string `json:"response"`
	Error    *string `json:"error"`
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type showRequest struct {
	Model string `json:"model"`
}

type showResponse struct {
	Capabilities []string               `json:"capabilities"`
	ModelInfo    map[string]interface{} `json:"model_info"`
}

// New creates an Ollama client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ollama URL not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.LoadTTL <= 0 {
		cfg.LoadTTL = DefaultLoadTTL
	}
	if cfg.VisionTTL <= 0 {
		cfg.VisionTTL = DefaultVisionTTL
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = DefaultMaxPromptChars
	}

	c := &Client{
		url:            strings.TrimSuffix(cfg.URL, "/"),
		client:         &http.Client{Timeout: cfg.Timeout},
		maxPromptChars: cfg.MaxPromptChars,
		loads:          newRegistry(cfg.LoadTTL),
		vision:         expirable.NewLRU[string, bool](visionCacheSize, nil, cfg.VisionTTL),
	}

	logging.L_debug("ollama: client created", "url", c.url, "timeout", cfg.Timeout, "loadTTL", cfg.LoadTTL)
	return c, nil
}

// EnsureLoaded verifies the model is present on the server, pulling it if
// needed. Verifications are cached for the load TTL. Concurrent callers for
// the same model serialize on a per-model mutex with a double freshness
// check, so at most one pull runs; different models proceed in parallel.
func (c *Client) EnsureLoaded(ctx context.Context, model string) error {
	if model == "" {
		return ErrValidation{Field: "model", Reason: "empty name"}
	}

	st := c.loads.entry(model)
	if st.fresh(c.loads.ttl) {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// Another caller may have finished the pull while we waited.
	if st.fresh(c.loads.ttl) {
		logging.L_debug("ollama: model verified while waiting", "model", model)
		return nil
	}

	logging.L_info("ollama: pulling model", "model", model)
	start := time.Now()
	if err := c.pull(ctx, model); err != nil {
		logging.L_error("ollama: pull failed", "model", model, "error", err)
		return err
	}
	st.markVerified()
	logging.L_info("ollama: model ready", "model", model, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// Generate runs a non-streamed text completion on the given model.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrValidation{Field: "prompt", Reason: "empty"}
	}
	if err := c.EnsureLoaded(ctx, model); err != nil {
		return "", err
	}
	return c.generate(ctx, generateRequest{
		Model:  model,
		Prompt: c.truncatePrompt(prompt),
	})
}

// GenerateWithImage runs a vision completion. The image is base64-encoded
// into the request; the model must advertise vision support.
func (c *Client) GenerateWithImage(ctx context.Context, model, prompt string, image []byte) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrValidation{Field: "prompt", Reason: "empty"}
	}
	if len(image) == 0 {
		return "", ErrValidation{Field: "image", Reason: "empty payload"}
	}

	ok, err := c.SupportsVision(ctx, model)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoCapability{Model: model, Capability: "vision"}
	}

	if err := c.EnsureLoaded(ctx, model); err != nil {
		return "", err
	}

	return c.generate(ctx, generateRequest{
		Model:  model,
		Prompt: c.truncatePrompt(prompt),
		Images: []string{base64.StdEncoding.EncodeToString(image)},
	})
}

// ListModels returns the models available on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ErrUnavailable{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, ErrBackend{Status: resp.StatusCode, Detail: string(body)}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, ErrBackend{Detail: fmt.Sprintf("decode tags: %v", err)}
	}

	logging.L_debug("ollama: listed models", "count", len(tags.Models))
	return tags.Models, nil
}

// SupportsVision reports whether the model accepts image input. Answers are
// cached with their own TTL; concurrent checks for one model serialize on
// the same per-model mutex used for loads.
func (c *Client) SupportsVision(ctx context.Context, model string) (bool, error) {
	if model == "" {
		return false, ErrValidation{Field: "model", Reason: "empty name"}
	}

	if ok, cached := c.vision.Get(model); cached {
		return ok, nil
	}

	st := c.loads.entry(model)
	st.mu.Lock()
	defer st.mu.Unlock()

	// Re-check: the holder we waited on may have been a vision probe.
	if ok, cached := c.vision.Get(model); cached {
		return ok, nil
	}

	show, err := c.show(ctx, model)
	if err != nil {
		return false, err
	}

	supports := false
	for _, capability := range show.Capabilities {
		if strings.EqualFold(capability, "vision") {
			supports = true
			break
		}
	}
	// Older servers omit the capabilities list; fall back to projector
	// metadata in model_info.
	if !supports && len(show.Capabilities) == 0 {
		for key := range show.ModelInfo {
			lower := strings.ToLower(key)
			if strings.Contains(lower, "vision") || strings.Contains(lower, "clip") {
				supports = true
				break
			}
		}
	}

	c.vision.Add(model, supports)
	logging.L_info("ollama: vision support checked", "model", model, "supports", supports)
	return supports, nil
}

// generate performs the POST /api/generate round trip with full error
// mapping. A payload carrying neither "response" nor "error" is treated as
// a backend error, never coerced to an empty reply.
func (c *Client) generate(ctx context.Context, greq generateRequest) (string, error) {
	payload, err := json.Marshal(greq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	logging.L_debug("ollama: generate", "model", greq.Model, "promptChars", len(greq.Prompt), "images", len(greq.Images))

	resp, err := c.client.Do(req)
	if err != nil {
		logging.L_error("ollama: request failed", "model", greq.Model, "error", err)
		return "", ErrUnavailable{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logging.L_error("ollama: generate error status", "model", greq.Model, "status", resp.StatusCode)
		return "", ErrBackend{Status: resp.StatusCode, Detail: string(body)}
	}

	var gres generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gres); err != nil {
		return "", ErrBackend{Detail: fmt.Sprintf("decode response: %v", err)}
	}

	if gres.Error != nil {
		return "", ErrBackend{Detail: *gres.Error}
	}
	if gres.Response == nil {
		return "", ErrBackend{Detail: "payload has neither response nor error"}
	}

	logging.L_info("ollama: generate completed", "model", greq.Model,
		"elapsed", time.Since(start).Round(time.Millisecond),
		"responseChars", len(*gres.Response))
	return *gres.Response, nil
}

// pull asks the server to download/load the model weights, blocking until done.
func (c *Client) pull(ctx context.Context, model string) error {
	payload, err := json.Marshal(pullRequest{Model: model, Stream: false})
	if err != nil {
		return fmt.Errorf("marshal pull request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/pull", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ErrUnavailable{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ErrBackend{Status: resp.StatusCode, Detail: string(body)}
	}

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	return nil
}

func (c *Client) show(ctx context.Context, model string) (*showResponse, error) {
	payload, err := json.Marshal(showRequest{Model: model})
	if err != nil {
		return nil, fmt.Errorf("marshal show request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/show", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create show request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ErrUnavailable{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, ErrBackend{Status: resp.StatusCode, Detail: string(body)}
	}

	var sres showResponse
	if err := json.NewDecoder(resp.Body).Decode(&sres); err != nil {
		return nil, ErrBackend{Detail: fmt.Sprintf("decode show: %v", err)}
	}
	return &sres, nil
}

// truncatePrompt caps the prompt at the configured char budget, preferring
// a sentence boundary so the model does not see a cut-off word.
func (c *Client) truncatePrompt(prompt string) string {
	if len(prompt) <= c.maxPromptChars {
		return prompt
	}

	truncated := prompt[:c.maxPromptChars]
	if lastPeriod := strings.LastIndex(truncated, ". "); lastPeriod > c.maxPromptChars/2 {
		truncated = truncated[:lastPeriod+1]
	}

	logging.L_warn("ollama: truncating prompt to fit budget",
		"originalChars", len(prompt),
		"truncatedChars", len(truncated),
		"budget", c.maxPromptChars)

	return truncated + "\n\n[... запрос сокращен из-за ограничения длины ...]"
}
