// Package apiclient holds the plumbing shared by the hosted embedding and completion adapters:
// the OpenAI-compatible client, client-side rate limiting, and bounded retries.
package apiclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/tanya/internal/models"
)

// Config describes how to reach and pace an OpenAI-compatible API.
type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// NewOpenAIClient returns a go-openai client honoring the base URL and per-request timeout.
func NewOpenAIClient(cfg Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return openai.NewClientWithConfig(clientCfg)
}

// Caller runs API calls with optional rate limiting and retries, and converts failures
// into *models.CapabilityError tagged with the capability sentinel.
type Caller struct {
	capability      error
	limiter         *rate.Limiter
	maxRetries      int
	initialInterval time.Duration
	logger          *zap.Logger
}

// Option configures a Caller.
type Option func(*Caller)

// WithLogger sets a logger for retry warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Caller) { c.logger = l }
}

// WithInitialInterval sets the first backoff delay. Defaults to 500ms.
func WithInitialInterval(d time.Duration) Option {
	return func(c *Caller) { c.initialInterval = d }
}

// NewCaller returns a Caller for the given capability sentinel (for example models.ErrLLMUnavailable).
// MaxRetries 0 disables retries; RequestsPerSecond 0 disables rate limiting.
func NewCaller(capability error, cfg Config, opts ...Option) *Caller {
	c := &Caller{
		capability:      capability,
		maxRetries:      cfg.MaxRetries,
		initialInterval: 500 * time.Millisecond,
		logger:          zap.NewNop(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs fn, retrying retryable failures with exponential backoff up to the configured limit.
func (c *Caller) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		err := fn(ctx)
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialInterval
	var b backoff.BackOff = backoff.WithMaxRetries(eb, uint64(max(c.maxRetries, 0)))
	b = backoff.WithContext(b, ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("retrying API call", zap.String("op", op), zap.Duration("backoff", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(attempt, b, notify); err != nil {
		return &models.CapabilityError{
			Capability: c.capability,
			Op:         op,
			Err:        err,
			Retryable:  Retryable(err),
		}
	}
	return nil
}

// Retryable reports whether err is a transient failure: rate limiting, a server error, or a network timeout.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
