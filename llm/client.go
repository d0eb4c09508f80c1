// Package llm calls chat-completion endpoints to enrich identity
// variations. Requests name a capability rather than a model; the
// registry maps the capability to a fallback chain and the client walks
// the chain until one endpoint answers.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/c360studio/doppel/model"
	"github.com/google/uuid"
)

// maxResponseSize caps how much of an endpoint's reply we read.
const maxResponseSize = 10 << 20

// Client sends completion requests to the endpoints registered for a
// capability, with retries and provider fallback.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	// Capability selects the model chain; the registry resolves it.
	Capability string
	// Messages is the conversation so far, oldest first.
	Messages []Message
	// Temperature: nil keeps the endpoint default, zero pins
	// deterministic sampling.
	Temperature *float64
	// MaxTokens bounds the reply length when positive.
	MaxTokens int
}

// TokenUsage reports what a completion cost.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed request.
type Response struct {
	// RequestID threads one ID through logs and events across
	// fallback attempts.
	RequestID string
	// Content is the model's reply text.
	Content string
	// Model names the model that answered, possibly a fallback.
	Model string
	// Usage is the token accounting, when the provider reports one.
	Usage TokenUsage
	// FinishReason tells why generation stopped ("stop", "length", ...).
	FinishReason string
}

// ClientOption customizes a Client at construction.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for endpoint calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = httpClient
	}
}

// WithRetryConfig replaces the per-endpoint retry policy.
func WithRetryConfig(retryConfig RetryConfig) ClientOption {
	return func(cl *Client) {
		cl.retryConfig = retryConfig
	}
}

// WithLogger routes client logs to logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient builds a Client over the given model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	cl := &Client{
		registry: registry,
		httpClient: &http.Client{
			// Local models can take minutes on first load.
			Timeout: 180 * time.Second,
		},
		retryConfig: DefaultRetryConfig(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Complete runs one completion, trying each model in the capability's
// fallback chain until one answers. Models whose endpoint is missing or
// circuit-open are skipped. A fatal error stops the walk and is returned
// as-is.
func (cl *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Capability == "" {
		return nil, errors.New("capability is required")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("at least one message is required")
	}

	capability := model.ParseCapability(req.Capability)
	if capability == "" {
		// Unrecognized capability names route to the cheap tier.
		capability = model.CapabilityFast
	}

	chain := cl.registry.GetAvailableFallbackChain(capability)
	if len(chain) == 0 {
		return nil, fmt.Errorf("capability %s has no models configured", req.Capability)
	}

	id := uuid.New().String()

	var chainErr error
	for _, name := range chain {
		ep := cl.registry.GetEndpoint(name)
		if ep == nil {
			cl.logger.Debug("Model has no endpoint entry", "model", name)
			continue
		}
		if !cl.registry.IsEndpointAvailable(name) {
			cl.logger.Debug("Circuit open for model", "model", name)
			continue
		}

		resp, err := cl.completeWithRetry(ctx, ep, name, req)
		if err == nil {
			resp.RequestID = id
			return resp, nil
		}
		chainErr = err

		if IsFatal(err) {
			cl.logger.Warn("Fatal provider error, stopping the fallback walk",
				"model", name, "error", err)
			return nil, err
		}
		cl.logger.Warn("Model failed, moving down the chain",
			"model", name, "provider", ep.Provider, "error", err)
	}

	return nil, fmt.Errorf("capability %s: all endpoints failed: %w", req.Capability, chainErr)
}

// completeWithRetry runs the retry loop against one endpoint and keeps
// the registry's circuit breaker current: success closes the circuit,
// exhausting every attempt counts as a failure. Fatal errors are usually
// config problems (bad key, malformed request), so they neither retry
// nor mark the endpoint unhealthy.
func (cl *Client) completeWithRetry(ctx context.Context, ep *model.EndpointConfig, name string, req Request) (*Response, error) {
	var tryErr error
	for attempt := 1; attempt <= cl.retryConfig.MaxAttempts; attempt++ {
		resp, err := cl.roundTrip(ctx, ep, req)
		if err == nil {
			cl.registry.MarkEndpointSuccess(name)
			return resp, nil
		}
		tryErr = err

		if IsFatal(err) {
			return nil, err
		}
		if attempt == cl.retryConfig.MaxAttempts {
			break
		}

		wait := cl.backoff(attempt)
		cl.logger.Debug("Attempt failed, backing off",
			"model", name,
			"attempt", attempt,
			"max_attempts", cl.retryConfig.MaxAttempts,
			"backoff", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	cl.registry.MarkEndpointFailure(name)
	return nil, tryErr
}

// backoff returns the wait before the next attempt: exponential growth
// capped at MaxInterval, with 25% jitter either way so concurrent clients
// do not retry in lockstep.
func (cl *Client) backoff(attempt int) time.Duration {
	scale := math.Pow(cl.retryConfig.Multiplier, float64(attempt-1))
	d := time.Duration(float64(cl.retryConfig.BaseInterval) * scale)
	if d > cl.retryConfig.MaxInterval {
		d = cl.retryConfig.MaxInterval
	}
	return time.Duration(float64(d) * (1 + (rand.Float64()-0.5)/2))
}

// roundTrip performs a single HTTP exchange with one endpoint.
func (cl *Client) roundTrip(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	prov := GetProvider(ep.Provider)
	if prov == nil {
		return nil, NewFatalError(fmt.Errorf("no provider registered as %q", ep.Provider))
	}

	url := prov.CompletionURL(ep.URL)
	body, err := prov.EncodeRequest(ep.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("encode request body: %w", err))
	}

	cl.logger.Debug("Calling model endpoint",
		"provider", ep.Provider, "model", ep.Model,
		"url", url, "messages", len(req.Messages))

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build HTTP request: %w", err))
	}
	hreq.Header.Set("Content-Type", "application/json")
	prov.ApplyHeaders(hreq)

	hresp, err := cl.httpClient.Do(hreq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("send request: %w", err))
	}
	defer hresp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(hresp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read reply body: %w", err))
	}

	if hresp.StatusCode != http.StatusOK {
		return nil, statusError(hresp.StatusCode, payload)
	}
	return prov.DecodeResponse(payload, ep.Model)
}

// statusError classifies a non-200 reply. Rate limits and server-side
// errors are worth retrying; auth and malformed-request errors will fail
// the same way every time.
func statusError(status int, payload []byte) error {
	detail := string(payload)
	if len(detail) > 200 {
		detail = detail[:200] + "..."
	}
	err := fmt.Errorf("endpoint returned status %d: %s", status, detail)
	if status == http.StatusTooManyRequests || status >= 500 {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}
