package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"Briefcast/internal/config"
	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
)

// Client implements ports.Generator against the Gemini REST API. Model
// candidates are tried in order; the first one that answers is cached on
// the client and preferred for the rest of its lifetime. The cache lives
// on the instance, never in package state, so tests substitute a fresh
// client per run.
type Client struct {
	endpoint   string
	apiKey     string
	candidates []string
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	preferred string
}

var _ ports.Generator = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.GenerationConfig, logger *slog.Logger) *Client {
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		candidates: cfg.Models,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		logger:     logger,
	}
}

// Generate sends one prompt and returns the generated text. A quota
// rejection surfaces as domain.ErrRateLimited without trying further
// models; the quota is account-wide. Any other per-model failure falls
// through to the next candidate.
func (c *Client) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return "", fmt.Errorf("gemini client misconfigured")
	}

	var lastErr error
	for _, model := range c.modelOrder() {
		text, err := c.call(ctx, model, req)
		if err == nil {
			c.remember(model)
			return text, nil
		}
		if errors.Is(err, domain.ErrRateLimited) {
			return "", err
		}
		c.warn("model failed, trying next candidate", "model", model, "error", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no generation models configured")
	}
	return "", lastErr
}

func (c *Client) modelOrder() []string {
	c.mu.Lock()
	preferred := c.preferred
	c.mu.Unlock()

	if preferred == "" {
		return c.candidates
	}
	order := []string{preferred}
	for _, m := range c.candidates {
		if m != preferred {
			order = append(order, m)
		}
	}
	return order
}

func (c *Client) remember(model string) {
	c.mu.Lock()
	c.preferred = model
	c.mu.Unlock()
}

type generateBody struct {
	Contents []content `json:"contents"`
	Config   *genCfg   `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type genCfg struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type generateReply struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) call(ctx context.Context, model string, req ports.GenerateRequest) (string, error) {
	body := generateBody{Contents: []content{{Parts: []part{{Text: req.Prompt}}}}}
	if req.Structured {
		body.Config = &genCfg{ResponseMIMEType: "application/json"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call model %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("model %s: %w", model, domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if strings.Contains(string(raw), "RESOURCE_EXHAUSTED") {
			return "", fmt.Errorf("model %s: %w", model, domain.ErrRateLimited)
		}
		return "", fmt.Errorf("model %s returned %s: %s", model, resp.Status, strings.TrimSpace(string(raw)))
	}

	var reply generateReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}

	text := replyText(reply)
	if text == "" {
		return "", fmt.Errorf("model %s returned empty content", model)
	}
	return text, nil
}

func replyText(reply generateReply) string {
	if len(reply.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range reply.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
