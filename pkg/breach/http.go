package breach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/securely/surfacemap/pkg/logging"
	"github.com/securely/surfacemap/pkg/model"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 2
	DefaultBackoff = 500 * time.Millisecond
)

// Response is the breach checker's reply.
type Response struct {
	Success       bool                 `json:"success"`
	FoundBreaches bool                 `json:"found_breaches"`
	Breaches      []model.BreachRecord `json:"breaches"`
	AISummary     string               `json:"ai_summary"`
	TotalBreaches int                  `json:"total_breaches"`
	Error         string               `json:"error,omitempty"`
}

// StatusError is a non-2xx reply from the breach checker.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("breach checker returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPSource posts lookups to a breach checker endpoint.
type HTTPSource struct {
	url        string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

type HTTPOption func(*HTTPSource)

// NewHTTPSource returns a source for the endpoint at url.
func NewHTTPSource(url string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		url:     url,
		retries: DefaultRetries,
		backoff: DefaultBackoff,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func WithTimeout(timeout time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.httpClient.Timeout = timeout
	}
}

func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.httpClient = client
	}
}

// WithRetries sets how many times transport failures and 5xx replies are
// retried, waiting (attempt+1)*backoff between tries.
func WithRetries(retries int, backoff time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.retries = max(retries, 0)
		s.backoff = backoff
	}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Lookup(ctx context.Context, email string) ([]model.BreachRecord, error) {
	resp, err := s.Check(ctx, email)
	if err != nil {
		return nil, err
	}
	return resp.Breaches, nil
}

// Check performs the lookup and returns the whole reply, summary included.
func (s *HTTPSource) Check(ctx context.Context, email string) (*Response, error) {
	email, err := trimEmail(email)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * s.backoff
			logging.DebugContext(ctx, "retrying breach lookup", "attempt", attempt, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		resp, retry, err := s.post(ctx, body)
		if err == nil {
			if !resp.Success {
				return nil, fmt.Errorf("%w: %s", ErrLookupFailed, resp.Error)
			}
			if resp.Breaches == nil {
				resp.Breaches = []model.BreachRecord{}
			}
			return resp, nil
		}
		if !retry || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrLookupFailed, s.retries+1, lastErr)
}

// post sends one request. retry reports whether a failure is transient.
func (s *HTTPSource) post(ctx context.Context, body []byte) (resp *Response, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := logging.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return nil, httpResp.StatusCode >= 500, &StatusError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, false, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, false, nil
}
