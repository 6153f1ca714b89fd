// Package sd is a thin client for a Stable Diffusion web-UI server
// exposing the txt2img API.
package sd

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

	"github.com/slaimbot/goslaim/internal/llm"
	"github.com/slaimbot/goslaim/internal/logging"
)

const (
	DefaultSteps   = 28
	DefaultWidth   = 768
	DefaultHeight  = 768
	DefaultTimeout = 300 * time.Second
)

type Config struct {
	URL     string
	Steps   int
	Width   int
	Height  int
	Timeout time.Duration
}

// Client issues txt2img requests. A zero URL means generation is disabled.
type Client struct {
	url    string
	steps  int
	width  int
	height int
	client *http.Client
}

func New(cfg Config) *Client {
	if cfg.Steps <= 0 {
		cfg.Steps = DefaultSteps
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		url:    strings.TrimSuffix(cfg.URL, "/"),
		steps:  cfg.Steps,
		width:  cfg.Width,
		height: cfg.Height,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether a diffusion server is configured.
func (c *Client) Enabled() bool {
	return c.url != ""
}

type txt2imgRequest struct {
	Prompt string `json:"prompt"`
	Steps  int    `json:"steps"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// Generate renders prompt and returns the PNG bytes of the first image.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, llm.ErrValidation{Field: "prompt", Reason: "empty image prompt"}
	}
	if !c.Enabled() {
		return nil, llm.ErrValidation{Field: "sd", Reason: "image generation is not configured"}
	}

	body, err := json.Marshal(txt2imgRequest{
		Prompt: prompt,
		Steps:  c.steps,
		Width:  c.width,
		Height: c.height,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal txt2img request: %w", err)
	}

	endpoint := c.url + "/sdapi/v1/txt2img"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create txt2img request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logging.L_debug("sd: txt2img", "prompt_len", len(prompt), "steps", c.steps)
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, llm.ErrUnavailable{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read txt2img response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, llm.ErrBackend{Status: resp.StatusCode, Detail: "txt2img returned non-OK status"}
	}

	var parsed txt2imgResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, llm.ErrBackend{Status: resp.StatusCode, Detail: "malformed txt2img payload"}
	}
	if len(parsed.Images) == 0 {
		return nil, llm.ErrBackend{Status: resp.StatusCode, Detail: "txt2img returned no images"}
	}

	image, err := base64.StdEncoding.DecodeString(parsed.Images[0])
	if err != nil {
		return nil, llm.ErrBackend{Status: resp.StatusCode, Detail: "image payload is not valid base64"}
	}

	logging.L_info("sd: image generated", "bytes", len(image), "elapsed", time.Since(start).Round(time.Millisecond))
	return image, nil
}
