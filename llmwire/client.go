package llmwire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultDialTimeout   = 10 * time.Second
	defaultHeaderTimeout = 30 * time.Second

	// Generation requests get a longer allowance than ordinary calls; large
	// completions can legitimately take minutes.
	defaultGenerationTimeout = 5 * time.Minute
)

// Client routes canonical requests to registered provider adapters and owns
// the HTTP transport, timeouts, and bounded retry.
type Client struct {
	adapters        map[string]ProviderAdapter
	defaultProvider string
	httpClient      *http.Client
	retry           RetryPolicy
	genTimeout      time.Duration
	mu              sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAdapter registers a provider adapter.
func WithAdapter(adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.adapters[adapter.Name()] = adapter
	}
}

// WithDefaultProvider sets the provider used when a request names none.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithGenerationTimeout overrides the per-request deadline for generation
// calls.
func WithGenerationTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.genTimeout = d
	}
}

// NewClient creates a Client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		adapters:   make(map[string]ProviderAdapter),
		retry:      DefaultRetryPolicy(),
		genTimeout: defaultGenerationTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: defaultDialTimeout}).DialContext,
				TLSHandshakeTimeout:   defaultDialTimeout,
				ResponseHeaderTimeout: defaultHeaderTimeout,
			},
		}
	}
	if c.defaultProvider == "" && len(c.adapters) == 1 {
		for name := range c.adapters {
			c.defaultProvider = name
		}
	}
	return c
}

// RegisterAdapter adds a provider adapter to the client.
func (c *Client) RegisterAdapter(adapter ProviderAdapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapters[adapter.Name()] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = adapter.Name()
	}
}

// resolveAdapter determines which adapter serves a request.
func (c *Client) resolveAdapter(provider, model string) (ProviderAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name := provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		name = InferProvider(model)
	}
	if name == "" {
		return nil, &MalformedRequestError{APIError: APIError{
			Message: "no provider specified and none could be inferred",
		}}
	}

	adapter, ok := c.adapters[name]
	if !ok {
		return nil, &MalformedRequestError{APIError: APIError{
			Message: fmt.Sprintf("provider %q is not registered", name),
		}}
	}
	return adapter, nil
}

// Complete converts, dispatches, and parses one generation request. A
// timeout is a retryable transient failure up to the bounded retry count.
func (c *Client) Complete(ctx context.Context, provider, credential string, req Request) (*Parsed, error) {
	adapter, err := c.resolveAdapter(provider, req.Model)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	if comp, ok := adapter.(Completer); ok {
		return Retry(ctx, c.retry, func(ctx context.Context) (*Parsed, error) {
			return comp.Complete(ctx, req)
		})
	}

	body, err := adapter.ConvertRequest(req)
	if err != nil {
		return nil, err
	}
	url, headers, err := adapter.ResolveEndpoint(req.Model, credential)
	if err != nil {
		return nil, err
	}

	raw, err := Retry(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.post(ctx, adapter.Name(), url, headers, body)
	})
	if err != nil {
		return nil, err
	}

	return adapter.ParseResponse(raw)
}

// post performs one HTTPS POST and maps transport and status failures onto
// the typed error hierarchy.
func (c *Client) post(ctx context.Context, provider, url string, headers map[string]string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &MalformedRequestError{APIError: APIError{Message: "build request", Cause: err}}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	log.Debug().Str("provider", provider).Str("url", url).Int("body_bytes", len(body)).Msg("dispatching provider request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &RequestTimeoutError{APIError: APIError{Message: "provider request timed out", Cause: err}}
		}
		if errors.Is(err, context.Canceled) {
			return nil, &AbortError{APIError: APIError{Message: "provider request cancelled", Cause: err}}
		}
		return nil, &NetworkError{APIError: APIError{Message: "provider request failed", Cause: err}}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{APIError: APIError{Message: "read provider response", Cause: err}}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var retryAfter *float64
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, perr := strconv.ParseFloat(ra, 64); perr == nil {
				retryAfter = &secs
			}
		}
		message, code := extractErrorMessage(raw)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		log.Warn().Str("provider", provider).Int("status", resp.StatusCode).Str("error", message).Msg("provider returned error status")
		return nil, ErrorFromStatusCode(resp.StatusCode, message, provider, code, retryAfter)
	}

	return raw, nil
}

// extractErrorMessage pulls a human-readable message out of the common
// {"error": {...}} envelope without committing to one provider's schema.
func extractErrorMessage(body []byte) (message, code string) {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
			Type    string `json:"type"`
			Status  string `json:"status"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", ""
	}
	message = envelope.Error.Message
	if message == "" {
		message = envelope.Message
	}
	switch v := envelope.Error.Code.(type) {
	case string:
		code = v
	case float64:
		code = strconv.Itoa(int(v))
	}
	if code == "" {
		code = envelope.Error.Type
	}
	if code == "" {
		code = envelope.Error.Status
	}
	return message, code
}
