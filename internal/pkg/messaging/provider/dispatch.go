package provider

import (
	"context"
	"net/http"
	"time"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
)

const defaultSendTimeout = 10 * time.Second

// Dispatcher routes canonical outbound requests to the channel-appropriate
// client: recipients containing "@" go to the email client, everything else
// to the SMS/MMS client. Every send is bounded by the configured timeout;
// hitting it surfaces as ErrUnavailable.
type Dispatcher struct {
	sms     Client
	email   Client
	timeout time.Duration
}

// NewDispatcher builds a dispatcher with real HTTP clients for both
// endpoints.
func NewDispatcher(cfg Config) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	hc := &http.Client{Timeout: timeout}
	return &Dispatcher{
		sms:     NewSMSClient(cfg.SMS, hc),
		email:   NewEmailClient(cfg.Email, hc),
		timeout: timeout,
	}
}

// NewDispatcherWithClients wires pre-built clients; used by tests and any
// caller that needs custom transports.
func NewDispatcherWithClients(sms, email Client, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{sms: sms, email: email, timeout: timeout}
}

// Dispatch sends the request through the channel-appropriate client and
// returns the canonical result. Errors carry the provider taxonomy
// (ErrRateLimited, ErrUnavailable, ErrProtocol) for the orchestrator to act
// on; no retrying happens here.
func (d *Dispatcher) Dispatch(ctx context.Context, req messaging.OutboundRequest) (SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if messaging.AddressKindOf(req.To) == messaging.AddressKindEmail {
		return d.email.Send(ctx, req)
	}
	return d.sms.Send(ctx, req)
}
