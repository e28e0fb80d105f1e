// Package provider abstracts outbound sends over the SMS/MMS and email
// provider APIs and translates their responses into canonical statuses and
// a uniform error taxonomy.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
)

// Canonical provider failure kinds. Callers branch with errors.Is; the
// wrapped message carries provider detail.
var (
	// ErrRateLimited: the provider returned 429. Retryable with backoff.
	ErrRateLimited = errors.New("provider: rate limited")

	// ErrUnavailable: 5xx, timeout, or transport failure. Retryable.
	ErrUnavailable = errors.New("provider: unavailable")

	// ErrProtocol: the provider answered in a shape we cannot use, or
	// rejected the request outright. Fatal, never retried.
	ErrProtocol = errors.New("provider: protocol error")
)

// Endpoint holds the connection settings for one provider API. Injected at
// construction; dispatch logic never reads the environment.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// Config carries the settings for both provider clients plus the per-send
// time bound.
type Config struct {
	SMS     Endpoint
	Email   Endpoint
	Timeout time.Duration
}

// SendResult is the canonical outcome of a successful provider send.
type SendResult struct {
	ProviderMessageID string
	Status            messaging.Status
}

// Client sends a canonical outbound request through one provider API.
type Client interface {
	Send(ctx context.Context, req messaging.OutboundRequest) (SendResult, error)
}

// postJSON issues an authenticated POST and applies the shared error
// taxonomy: 429 -> ErrRateLimited, 5xx/transport/timeout -> ErrUnavailable,
// any other non-2xx or an unreadable body -> ErrProtocol. On 2xx it decodes
// the response body into a generic document for the caller to pick apart.
func postJSON(ctx context.Context, hc *http.Client, url, apiKey string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrProtocol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProtocol, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := hc.Do(req)
	if err != nil {
		// Timeouts and connection failures are treated identically to a
		// provider outage.
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s returned 429", ErrRateLimited, url)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnavailable, url, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s returned %d", ErrProtocol, url, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProtocol, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed response body: %v", ErrProtocol, err)
	}
	return doc, nil
}

func stringValue(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}
