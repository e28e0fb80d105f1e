// Package webhook turns heterogeneous provider webhook payloads into the
// canonical inbound message form. Shape detection is presence-based: no
// provider sends a type discriminator, so the native shape is attempted
// first per channel and the unified shape second.
package webhook

import (
	"fmt"
	"strings"
	"time"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
)

// ChannelHint tells the normalizer which webhook endpoint received the
// payload. It narrows which shapes are attempted; the final channel kind
// (sms vs mms) is still derived from the payload itself.
type ChannelHint string

const (
	HintSMS   ChannelHint = "sms"
	HintEmail ChannelHint = "email"
)

// Normalize parses an untyped webhook document into a canonical
// InboundMessage. It is a pure function of its input: no side effects, and
// every failure wraps messaging.ErrValidation.
func Normalize(payload map[string]any, hint ChannelHint) (messaging.InboundMessage, error) {
	if payload == nil {
		return messaging.InboundMessage{}, fmt.Errorf("%w: webhook payload must be a JSON object", messaging.ErrValidation)
	}
	switch hint {
	case HintSMS:
		return normalizeSMS(payload)
	case HintEmail:
		return normalizeEmail(payload)
	}
	return messaging.InboundMessage{}, fmt.Errorf("%w: unknown webhook channel %q", messaging.ErrValidation, hint)
}

func normalizeSMS(payload map[string]any) (messaging.InboundMessage, error) {
	var (
		from, to, body string
		providerID     string
		explicitType   string
		attachments    []string
		timestampRaw   string
	)

	switch {
	case hasField(payload, "From"):
		// Native provider shape (Twilio-style).
		from = stringField(payload, "From")
		to = stringField(payload, "To")
		body = stringField(payload, "Body")
		providerID = stringField(payload, "MessageSid")
		attachments = stringSliceField(payload, "MediaUrl")
		timestampRaw = stringField(payload, "Timestamp")
	case hasField(payload, "from"):
		// Unified shape.
		from = stringField(payload, "from")
		to = stringField(payload, "to")
		body = stringField(payload, "body")
		providerID = stringField(payload, "messaging_provider_id")
		attachments = stringSliceField(payload, "attachments")
		timestampRaw = stringField(payload, "timestamp")
		explicitType = stringField(payload, "type")
	default:
		return messaging.InboundMessage{}, fmt.Errorf("%w: unrecognized sms webhook format, missing required fields", messaging.ErrValidation)
	}

	if err := requireAddress(from, "from_address", messaging.AddressKindPhone); err != nil {
		return messaging.InboundMessage{}, err
	}
	if err := requireAddress(to, "to_address", messaging.AddressKindPhone); err != nil {
		return messaging.InboundMessage{}, err
	}
	if body == "" {
		return messaging.InboundMessage{}, fmt.Errorf("%w: missing required field: body", messaging.ErrValidation)
	}
	if providerID == "" {
		return messaging.InboundMessage{}, fmt.Errorf("%w: missing required field: provider_message_id", messaging.ErrValidation)
	}
	if explicitType != "" && explicitType != string(messaging.ChannelSMS) && explicitType != string(messaging.ChannelMMS) {
		return messaging.InboundMessage{}, fmt.Errorf("%w: invalid type %q, must be 'sms' or 'mms'", messaging.ErrValidation, explicitType)
	}

	// Attachment presence is authoritative for sms vs mms in both shapes;
	// the unified shape's explicit type field is informational only.
	channel := messaging.ChannelSMS
	if len(attachments) > 0 {
		channel = messaging.ChannelMMS
	}

	occurredAt, err := parseTimestamp(timestampRaw)
	if err != nil {
		return messaging.InboundMessage{}, err
	}

	return messaging.InboundMessage{
		Channel:           channel,
		ProviderMessageID: providerID,
		From:              from,
		To:                to,
		Body:              body,
		Attachments:       attachments,
		OccurredAt:        occurredAt,
	}, nil
}

func normalizeEmail(payload map[string]any) (messaging.InboundMessage, error) {
	var (
		from, to, body string
		providerID     string
		attachments    []string
		timestampRaw   string
	)

	switch {
	case hasField(payload, "from_email"):
		// Native provider shape (SendGrid-style).
		from = stringField(payload, "from_email")
		to = stringField(payload, "to_email")
		providerID = stringField(payload, "x_message_id")
		timestampRaw = stringField(payload, "timestamp")
		attachments = []string{}

		// Prefer HTML content, fall back to plain text. A present subject is
		// folded into the body so conversation read-back keeps its context.
		body = stringField(payload, "html_content")
		if body == "" {
			body = stringField(payload, "content")
		}
		if subject := stringField(payload, "subject"); subject != "" {
			body = fmt.Sprintf("Subject: %s\n\n%s", subject, body)
		}
	case hasField(payload, "from"):
		// Unified shape. No subject field exists here, so no prefix transform.
		from = stringField(payload, "from")
		to = stringField(payload, "to")
		body = stringField(payload, "body")
		providerID = stringField(payload, "xillio_id")
		attachments = stringSliceField(payload, "attachments")
		timestampRaw = stringField(payload, "timestamp")
	default:
		return messaging.InboundMessage{}, fmt.Errorf("%w: unrecognized email webhook format, missing required fields", messaging.ErrValidation)
	}

	if err := requireAddress(from, "from_address", messaging.AddressKindEmail); err != nil {
		return messaging.InboundMessage{}, err
	}
	if err := requireAddress(to, "to_address", messaging.AddressKindEmail); err != nil {
		return messaging.InboundMessage{}, err
	}
	if body == "" {
		return messaging.InboundMessage{}, fmt.Errorf("%w: missing required field: body", messaging.ErrValidation)
	}
	if providerID == "" {
		return messaging.InboundMessage{}, fmt.Errorf("%w: missing required field: provider_message_id", messaging.ErrValidation)
	}

	occurredAt, err := parseTimestamp(timestampRaw)
	if err != nil {
		return messaging.InboundMessage{}, err
	}

	return messaging.InboundMessage{
		Channel:           messaging.ChannelEmail,
		ProviderMessageID: providerID,
		From:              from,
		To:                to,
		Body:              body,
		Attachments:       attachments,
		OccurredAt:        occurredAt,
	}, nil
}

func requireAddress(addr, field string, kind messaging.AddressKind) error {
	if addr == "" {
		return fmt.Errorf("%w: missing required field: %s", messaging.ErrValidation, field)
	}
	switch kind {
	case messaging.AddressKindEmail:
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("%w: invalid %s format: %s", messaging.ErrValidation, field, addr)
		}
	case messaging.AddressKindPhone:
		// Phone numbers carry no canonical shape across providers, so the
		// only rejection is an email address landing in a phone slot.
		if strings.Contains(addr, "@") {
			return fmt.Errorf("%w: invalid %s format: %s", messaging.ErrValidation, field, addr)
		}
	}
	return nil
}

// parseTimestamp accepts ISO-8601 with a trailing Z (or explicit offset) and
// normalizes to UTC. An absent timestamp defaults to the current time.
func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp format: %s", messaging.ErrValidation, raw)
	}
	return t.UTC(), nil
}

func hasField(payload map[string]any, key string) bool {
	_, ok := payload[key]
	return ok
}

func stringField(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

func stringSliceField(payload map[string]any, key string) []string {
	v, ok := payload[key]
	if !ok || v == nil {
		return []string{}
	}
	switch vals := v.(type) {
	case []string:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if item != "" {
				out = append(out, item)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
