package messaging

import "time"

// InboundMessage is the canonical form every webhook payload normalizes
// into. Components past the normalizer never see a provider's native schema.
type InboundMessage struct {
	Channel           Channel
	ProviderMessageID string
	From              string
	To                string
	Body              string
	Attachments       []string
	OccurredAt        time.Time
}

// ToMessage projects the canonical inbound form onto a stored message for
// the given conversation. Webhook deliveries describe messages that already
// reached the provider, so the status is delivered.
func (im InboundMessage) ToMessage(conversationID string) Message {
	var providerID *string
	if im.ProviderMessageID != "" {
		id := im.ProviderMessageID
		providerID = &id
	}
	attachments := im.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return Message{
		ConversationID:    conversationID,
		Channel:           im.Channel,
		ProviderMessageID: providerID,
		FromAddress:       im.From,
		ToAddress:         im.To,
		Body:              im.Body,
		Attachments:       attachments,
		Direction:         DirectionInbound,
		Status:            StatusDelivered,
		MessageTimestamp:  im.OccurredAt,
	}
}

// OutboundRequest is a canonical request to send a message. From may be
// empty, in which case the orchestrator fills it from the configured default
// sender for the recipient's channel.
type OutboundRequest struct {
	From        string
	To          string
	Body        string
	Attachments []string
	OccurredAt  time.Time
}

// Channel classifies the outbound request: email when the recipient address
// is email-shaped, otherwise mms when attachments are present, else sms.
// Symmetric with inbound classification.
func (r OutboundRequest) Channel() Channel {
	if AddressKindOf(r.To) == AddressKindEmail {
		return ChannelEmail
	}
	if len(r.Attachments) > 0 {
		return ChannelMMS
	}
	return ChannelSMS
}
