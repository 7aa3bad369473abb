// Package detector adapts raw frames into calls against the external
// vehicle-detection inference service.
package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kartick026/trafficloud/internal/models"
)

// ErrMockOnly - client constructed without an endpoint and without mock mode
var ErrMockOnly = errors.New("detector: no inference endpoint configured")

// ServiceError represents a failed inference call. Transport errors and
// 429/5xx responses are retryable; other HTTP statuses and malformed
// responses are not.
type ServiceError struct {
	StatusCode int
	Body       string // first 512 bytes
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inference service: %v", e.Err)
	}
	return fmt.Sprintf("inference service: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *ServiceError) Retryable() bool {
	if e.Err != nil {
		return true // transport failure
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type detectRequest struct {
	Image               string  `json:"image"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

type detectResponse struct {
	Detections []models.Detection `json:"detections"`
}

// Client calls the inference service over HTTP JSON.
type Client struct {
	endpoint     string
	httpClient   *http.Client
	retryMax     int
	retryBackoff time.Duration

	// allowMock substitutes synthetic detections when the service call
	// fails. Development only; must never be enabled in production - a real
	// failure has to surface as a failure, not as fabricated traffic.
	allowMock bool
}

// Option configures Client behaviour.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout per attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetry sets the retry count and base backoff for transient failures.
func WithRetry(max int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retryMax = max
		c.retryBackoff = backoff
	}
}

// WithMockFallback enables the development-only synthetic detection
// fallback on service failure.
func WithMockFallback() Option {
	return func(c *Client) {
		c.allowMock = true
	}
}

// NewClient creates an inference client for the given endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryMax:     3,
		retryBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detect sends the frame to the inference service and returns the decoded
// detection list. An empty list is a valid outcome (a no-vehicle frame),
// distinct from an error. Transient failures are retried with exponential
// backoff up to the configured retry count; non-transient failures return
// immediately.
func (c *Client) Detect(ctx context.Context, imageBytes []byte, confidenceThreshold float64) ([]models.Detection, error) {
	detections, err := c.invoke(ctx, imageBytes, confidenceThreshold)
	if err == nil {
		return detections, nil
	}

	if c.allowMock {
		log.Printf("WARNING: inference call failed (%v) - substituting MOCK detections (development mode)", err)
		return mockDetections(), nil
	}

	return nil, err
}

func (c *Client) invoke(ctx context.Context, imageBytes []byte, confidenceThreshold float64) ([]models.Detection, error) {
	if c.endpoint == "" {
		return nil, ErrMockOnly
	}

	payload, err := json.Marshal(detectRequest{
		Image:               base64.StdEncoding.EncodeToString(imageBytes),
		ConfidenceThreshold: confidenceThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode inference request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			wait := c.retryBackoff * (1 << (attempt - 1))
			log.Printf("Retrying inference call (attempt %d/%d) after %v: %v",
				attempt, c.retryMax, wait, lastErr)

			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		detections, err := c.doRequest(ctx, payload)
		if err == nil {
			return detections, nil
		}

		var svcErr *ServiceError
		if errors.As(err, &svcErr) && svcErr.Retryable() && ctx.Err() == nil {
			lastErr = err
			continue
		}

		return nil, err
	}

	return nil, fmt.Errorf("inference retries exhausted: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, payload []byte) ([]models.Detection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Err: err}
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &ServiceError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := string(body)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: bodyStr}
	}

	var decoded detectResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: "malformed response: " + err.Error()}
	}

	return decoded.Detections, nil
}
