package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/j-veylop/token-monitor-tui/internal/logger"
)

// InvokePath is the route prefix commands are posted to.
const InvokePath = "/api/invoke/"

// BreakerConfig controls when the transport stops calling an unreachable
// backend. Backend-reported command errors never count as failures.
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

// DefaultBreakerConfig returns the breaker settings used by NewHTTPTransport.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Timeout:          15 * time.Second,
	}
}

// HTTPTransport posts commands as JSON to a backend service.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

var _ Transport = (*HTTPTransport)(nil)

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(cfg BreakerConfig) HTTPOption {
	return func(t *HTTPTransport) {
		t.breaker = newBreaker(cfg)
	}
}

// NewHTTPTransport creates a transport rooted at baseURL.
func NewHTTPTransport(baseURL string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		breaker: newBreaker(DefaultBreakerConfig()),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "backend",
		Timeout: cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			var ce *CommandError
			return err == nil || errors.As(err, &ce) || errors.Is(err, context.Canceled)
		},
	})
}

// Invoke posts args to the command route and decodes the JSON result into out.
func (t *HTTPTransport) Invoke(ctx context.Context, command string, args any, out any) error {
	payload := []byte("{}")
	if args != nil {
		var err error
		payload, err = json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode %s arguments: %w", command, err)
		}
	}

	result, err := t.breaker.Execute(func() (any, error) {
		return t.do(ctx, command, payload)
	})
	if err != nil {
		var ce *CommandError
		if errors.As(err, &ce) {
			return ce
		}
		return fmt.Errorf("%s: %w", command, err)
	}

	body, _ := result.([]byte)
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: malformed response: %w", command, err)
	}
	return nil
}

func (t *HTTPTransport) do(ctx context.Context, command string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+InvokePath+command, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CommandError{
			Command: command,
			Status:  resp.StatusCode,
			Message: errorMessage(resp.StatusCode, body),
		}
	}

	logger.Debug("backend command completed", "command", command, "status", resp.StatusCode)
	return body, nil
}
