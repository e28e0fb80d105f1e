package messaging

import (
	"fmt"
	"strings"
	"time"
)

// Channel is the medium a message travels over.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelMMS   Channel = "mms"
	ChannelEmail Channel = "email"
)

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelMMS, ChannelEmail:
		return true
	}
	return false
}

// Direction distinguishes messages received via webhook from messages we sent.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// Status is the delivery state of a message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusFailed:    2,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is a forward
// transition. Content fields of a persisted message never change; only the
// status may advance (pending -> sent -> delivered, or -> failed).
func (s Status) CanTransitionTo(next Status) bool {
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// Message is an immutable entry in a conversation's history.
type Message struct {
	ID                string
	ConversationID    string
	Channel           Channel
	ProviderMessageID *string
	FromAddress       string
	ToAddress         string
	Body              string
	Attachments       []string
	Direction         Direction
	Status            Status
	MessageTimestamp  time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewMessage validates and normalizes a message before persistence.
// The zero MessageTimestamp defaults to now; an unset Status defaults to
// pending. ID, CreatedAt and UpdatedAt are assigned at the storage layer.
func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", ErrValidation)
	}
	if strings.TrimSpace(m.FromAddress) == "" || strings.TrimSpace(m.ToAddress) == "" {
		return nil, fmt.Errorf("%w: from and to addresses are required", ErrValidation)
	}
	if strings.TrimSpace(m.Body) == "" {
		return nil, fmt.Errorf("%w: body is required", ErrValidation)
	}
	if !m.Channel.Valid() {
		return nil, fmt.Errorf("%w: invalid channel %q", ErrValidation, m.Channel)
	}
	if !m.Direction.Valid() {
		return nil, fmt.Errorf("%w: invalid direction %q", ErrValidation, m.Direction)
	}
	if m.Status == "" {
		m.Status = StatusPending
	}
	if !m.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, m.Status)
	}
	if m.MessageTimestamp.IsZero() {
		m.MessageTimestamp = time.Now().UTC()
	}
	if m.Attachments == nil {
		m.Attachments = []string{}
	}
	return &m, nil
}
