// Package llm talks to a local Ollama server.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrModelNotFound = errors.New("model not found on the Ollama server")
	ErrEmptyResponse = errors.New("model returned an empty response")
)

const (
	DefaultHost       = "http://localhost:11434"
	DefaultModel      = "qwen2.5vl:3b"
	DefaultNumPredict = 512

	DefaultSystemPrompt = "You are an information extraction assistant. Return ONLY compact JSON with keys: " +
		"user_name, follower_count, following_count, posts_count, summary. Do not include markdown."

	retryWaitTime    = 1 * time.Second
	retryWaitTimeMax = 5 * time.Second
)

type Config struct {
	Host         string
	Model        string
	SystemPrompt string
	NumPredict   int
	// FormatJSON asks Ollama to constrain the answer to valid JSON.
	FormatJSON bool
	Retries    int
	// Timeout bounds a single HTTP attempt. Zero leaves it to the caller's context.
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	rest *resty.Client
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// New validates cfg, fills defaults and builds the HTTP client.
func New(cfg Config) (*Client, error) {
	cfg.Host = strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if !strings.HasPrefix(cfg.Host, "http://") && !strings.HasPrefix(cfg.Host, "https://") {
		cfg.Host = "http://" + cfg.Host
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.NumPredict <= 0 {
		cfg.NumPredict = DefaultNumPredict
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	rest := resty.New().
		SetLogger(restyLogger{}).
		SetBaseURL(cfg.Host).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(retryWaitTime).
		SetRetryMaxWaitTime(retryWaitTimeMax).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Timeout > 0 {
		rest.SetTimeout(cfg.Timeout)
	}
	rest.AddRetryHook(func(resp *resty.Response, err error) {
		ev := log.Warn().Str("host", cfg.Host)
		if err != nil {
			ev = ev.Err(err)
		}
		if resp != nil {
			ev = ev.Int("status", resp.StatusCode()).Int("attempt", resp.Request.Attempt)
		}
		ev.Msg("retrying Ollama request")
	})

	return &Client{cfg: cfg, rest: rest}, nil
}

func (c *Client) Model() string { return c.cfg.Model }

func (c *Client) Host() string { return c.cfg.Host }

// Extract sends image and prompt to the chat endpoint and returns the model's text.
func (c *Client) Extract(ctx context.Context, image []byte, prompt string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image is empty")
	}

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: prompt, Images: []string{base64.StdEncoding.EncodeToString(image)}},
		},
		Options: map[string]any{"num_predict": c.cfg.NumPredict},
	}
	if c.cfg.FormatJSON {
		req.Format = "json"
	}

	log.Info().Str("model", c.cfg.Model).Str("host", c.cfg.Host).Int("image_bytes", len(image)).Msg("calling Ollama")
	start := time.Now()

	var out chatResponse
	var apiErr errorResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/chat")
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	if resp.IsError() {
		return "", c.statusError(resp, apiErr)
	}

	text := strings.TrimSpace(out.Message.Content)
	log.Debug().Dur("elapsed", time.Since(start)).Int("chars", len(text)).Msg("ollama responded")
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Ping checks that the server answers and that the configured model has been pulled.
func (c *Client) Ping(ctx context.Context) error {
	var tags tagsResponse
	var apiErr errorResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&tags).
		SetError(&apiErr).
		Get("/api/tags")
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", c.cfg.Host, err)
	}
	if resp.IsError() {
		return c.statusError(resp, apiErr)
	}

	for _, m := range tags.Models {
		if sameModel(m.Name, c.cfg.Model) || sameModel(m.Model, c.cfg.Model) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (run: ollama pull %s)", ErrModelNotFound, c.cfg.Model, c.cfg.Model)
}

func (c *Client) statusError(resp *resty.Response, apiErr errorResponse) error {
	msg := apiErr.Error
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	if resp.StatusCode() == http.StatusNotFound && strings.Contains(msg, "not found") {
		return fmt.Errorf("%w: %s", ErrModelNotFound, msg)
	}
	return fmt.Errorf("ollama API error: %d - %s", resp.StatusCode(), msg)
}

// sameModel compares model names, treating a missing tag as ":latest".
func sameModel(a, b string) bool {
	return withTag(a) == withTag(b)
}

func withTag(name string) string {
	if name == "" || strings.Contains(name, ":") {
		return name
	}
	return name + ":latest"
}

// restyLogger routes resty's internal messages to the global zerolog logger.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...any) { log.Error().Msgf(format, v...) }
func (restyLogger) Warnf(format string, v ...any)  { log.Warn().Msgf(format, v...) }
func (restyLogger) Debugf(format string, v ...any) { log.Debug().Msgf(format, v...) }
