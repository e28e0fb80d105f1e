package controller

import (
	"time"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	repository "github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/port"
)

// messageView is the wire representation of a stored message.
type messageView struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	ProviderType      string    `json:"provider_type"`
	ProviderMessageID *string   `json:"provider_message_id"`
	FromAddress       string    `json:"from_address"`
	ToAddress         string    `json:"to_address"`
	Body              string    `json:"body"`
	Attachments       []string  `json:"attachments"`
	Direction         string    `json:"direction"`
	Status            string    `json:"status"`
	MessageTimestamp  time.Time `json:"message_timestamp"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toMessageView(m messaging.Message) messageView {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return messageView{
		ID:                m.ID,
		ConversationID:    m.ConversationID,
		ProviderType:      string(m.Channel),
		ProviderMessageID: m.ProviderMessageID,
		FromAddress:       m.FromAddress,
		ToAddress:         m.ToAddress,
		Body:              m.Body,
		Attachments:       attachments,
		Direction:         string(m.Direction),
		Status:            string(m.Status),
		MessageTimestamp:  m.MessageTimestamp,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toMessageViews(msgs []messaging.Message) []messageView {
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageView(m))
	}
	return out
}

// conversationView is the wire representation of a conversation summary.
type conversationView struct {
	ID                   string     `json:"id"`
	Participants         []string   `json:"participants"`
	MessageCount         int        `json:"message_count"`
	LastMessageTimestamp *time.Time `json:"last_message_timestamp"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func toConversationView(s repository.ConversationSummary) conversationView {
	participants := s.Participants
	if participants == nil {
		participants = []string{}
	}
	return conversationView{
		ID:                   s.Conversation.ID,
		Participants:         participants,
		MessageCount:         s.MessageCount,
		LastMessageTimestamp: s.LastMessageTimestamp,
		CreatedAt:            s.Conversation.CreatedAt,
		UpdatedAt:            s.Conversation.UpdatedAt,
	}
}
