// Package narrative asks a text generation service to explain a breach
// report in plain language, falling back to fixed advice when it cannot.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/securely/surfacemap/pkg/logging"
	"github.com/securely/surfacemap/pkg/model"
)

var log = logging.New("narrative")

const apiKeyHeader = "x-goog-api-key"

// Summary is a generated explanation of a breach report.
type Summary struct {
	Text     string `json:"text"`
	Safe     bool   `json:"safe"`     // no breaches were found
	Fallback bool   `json:"fallback"` // Text is the fixed fallback
}

// Generator produces narratives.
type Generator interface {
	Summarize(ctx context.Context, email string, records []model.BreachRecord) (Summary, error)
}

// Recorder learns whether each narrative was generated or fell back.
type Recorder interface {
	RecordNarrative(fallback bool)
}

// GenerationConfig are the sampling parameters sent with every request.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// DefaultGenerationConfig keeps answers short and conservative.
var DefaultGenerationConfig = GenerationConfig{
	Temperature:     0.3,
	TopK:            40,
	TopP:            0.8,
	MaxOutputTokens: 500,
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type request struct {
	Contents         []content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type response struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Client calls a generateContent style endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	recorder   Recorder
}

type Option func(*Client)

// NewClient returns a client. With an empty apiKey every call returns the
// fallback text without touching the network.
func NewClient(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// Summarize never fails because of the remote service: missing keys,
// transport errors, non-200 replies and malformed bodies all produce the
// fallback narrative. Only an empty email is rejected.
func (c *Client) Summarize(ctx context.Context, email string, records []model.BreachRecord) (Summary, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Summary{}, fmt.Errorf("%w: email is required", model.ErrInvalidInput)
	}
	safe := len(records) == 0
	prompt := Prompt(email, records)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		if c.apiKey != "" {
			log.Warn("narrative generation failed, using fallback", "error", err)
		}
		c.record(true)
		return Summary{Text: Fallback(safe), Safe: safe, Fallback: true}, nil
	}
	c.record(false)
	return Summary{Text: text, Safe: safe}, nil
}

func (c *Client) record(fallback bool) {
	if c.recorder != nil {
		c.recorder.RecordNarrative(fallback)
	}
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("no API key configured")
	}

	body, err := json.Marshal(request{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: DefaultGenerationConfig,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Not in the query: transport errors quote the URL.
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation returned status %d", resp.StatusCode)
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("response has no candidate text")
	}
	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("response has no candidate text")
	}
	return text, nil
}
