// Package genimage wraps the external image-model API that composites a
// character into a room photo.  The model is opaque to this service: we
// send a prompt plus the source photo URL and get back a preview URL,
// which may be empty when the model has accepted the job but not yet
// rendered.
package genimage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// Options describes one compositing job.
type Options struct {
	Prompt        string
	SourceURL     string
	RealismFilter bool
}

// Result is the model's response for a job.
type Result struct {
	PreviewURL string // empty when the render is still in progress
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Generate submits a compositing job and waits for the model's response.
func (c *Client) Generate(ctx context.Context, opts Options) (*Result, error) {
	if opts.Prompt == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}
	if opts.SourceURL == "" {
		return nil, fmt.Errorf("source url cannot be empty")
	}

	payload := map[string]any{
		"prompt":         opts.Prompt,
		"image_url":      opts.SourceURL,
		"realism_filter": opts.RealismFilter,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := c.baseURL + "/v1/composite"
	if c.log != nil {
		c.log.Info("submitting compositing job", "url", url, "realism_filter", opts.RealismFilter)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post model api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		PreviewURL string `json:"preview_url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &Result{PreviewURL: out.PreviewURL}, nil
}

// BuildPrompt renders the character/action selection into the text prompt
// sent to the model.  The custom character uses the user's own prompt.
func BuildPrompt(characterSlug, actionSlug string, customPrompt *string) string {
	subject := characterSlug
	if customPrompt != nil && strings.TrimSpace(*customPrompt) != "" {
		subject = strings.TrimSpace(*customPrompt)
	}
	action := map[string]string{
		"sitting":  "sitting on the furniture",
		"sleeping": "sleeping",
		"standing": "standing near the window",
		"cooking":  "cooking",
		"reading":  "reading a book",
		"watching": "watching TV",
	}[actionSlug]
	if action == "" {
		action = actionSlug
	}
	return fmt.Sprintf("a %s %s in this room, photorealistic, matching the room's lighting", subject, action)
}
