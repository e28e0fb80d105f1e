package provider

import (
	"context"
	"fmt"
	"net/http"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
)

// SMSClient sends SMS/MMS messages through a Twilio-style provider API.
type SMSClient struct {
	endpoint Endpoint
	hc       *http.Client
}

// NewSMSClient constructs a client for the given endpoint. A nil httpClient
// falls back to http.DefaultClient; the dispatcher normally injects one with
// the configured timeout.
func NewSMSClient(endpoint Endpoint, httpClient *http.Client) *SMSClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SMSClient{endpoint: endpoint, hc: httpClient}
}

var _ Client = (*SMSClient)(nil)

// smsPayload is the provider's native request shape.
type smsPayload struct {
	From     string   `json:"From"`
	To       string   `json:"To"`
	Body     string   `json:"Body"`
	MediaURL []string `json:"MediaUrl"`
}

func (c *SMSClient) Send(ctx context.Context, req messaging.OutboundRequest) (SendResult, error) {
	payload := smsPayload{
		From:     req.From,
		To:       req.To,
		Body:     req.Body,
		MediaURL: req.Attachments,
	}
	if payload.MediaURL == nil {
		payload.MediaURL = []string{}
	}

	doc, err := postJSON(ctx, c.hc, c.endpoint.BaseURL+"/messages", c.endpoint.APIKey, payload)
	if err != nil {
		return SendResult{}, err
	}

	sid := stringValue(doc, "sid")
	if sid == "" {
		return SendResult{}, fmt.Errorf("%w: response missing message sid", ErrProtocol)
	}

	return SendResult{
		ProviderMessageID: sid,
		Status:            normalizeSMSStatus(stringValue(doc, "status")),
	}, nil
}

// normalizeSMSStatus maps the provider's status vocabulary onto ours. An
// unrecognized or absent status on a 2xx response counts as accepted, which
// this system records as delivered.
func normalizeSMSStatus(status string) messaging.Status {
	switch status {
	case "queued", "sending":
		return messaging.StatusPending
	case "sent":
		return messaging.StatusSent
	case "undelivered", "failed":
		return messaging.StatusFailed
	default:
		return messaging.StatusDelivered
	}
}
