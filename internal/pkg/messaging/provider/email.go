package provider

import (
	"context"
	"fmt"
	"net/http"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
)

// EmailClient sends email through a SendGrid-style provider API.
type EmailClient struct {
	endpoint Endpoint
	hc       *http.Client
}

func NewEmailClient(endpoint Endpoint, httpClient *http.Client) *EmailClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &EmailClient{endpoint: endpoint, hc: httpClient}
}

var _ Client = (*EmailClient)(nil)

type emailAddress struct {
	Email string `json:"email"`
}

type emailPersonalization struct {
	To []emailAddress `json:"to"`
}

type emailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// emailPayload is the provider's native request shape.
type emailPayload struct {
	Personalizations []emailPersonalization `json:"personalizations"`
	From             emailAddress           `json:"from"`
	Subject          string                 `json:"subject"`
	Content          []emailContent         `json:"content"`
}

func (c *EmailClient) Send(ctx context.Context, req messaging.OutboundRequest) (SendResult, error) {
	payload := emailPayload{
		Personalizations: []emailPersonalization{{To: []emailAddress{{Email: req.To}}}},
		From:             emailAddress{Email: req.From},
		Subject:          "Message",
		Content:          []emailContent{{Type: "text/plain", Value: req.Body}},
	}

	doc, err := postJSON(ctx, c.hc, c.endpoint.BaseURL+"/mail/send", c.endpoint.APIKey, payload)
	if err != nil {
		return SendResult{}, err
	}

	id := stringValue(doc, "message_id")
	if id == "" {
		return SendResult{}, fmt.Errorf("%w: response missing message_id", ErrProtocol)
	}

	return SendResult{
		ProviderMessageID: id,
		Status:            normalizeEmailStatus(stringValue(doc, "status")),
	}, nil
}

func normalizeEmailStatus(status string) messaging.Status {
	switch status {
	case "pending", "deferred":
		return messaging.StatusPending
	case "processed":
		return messaging.StatusSent
	case "dropped", "bounce", "blocked", "failed":
		return messaging.StatusFailed
	default:
		return messaging.StatusDelivered
	}
}
