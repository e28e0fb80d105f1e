package repository

import (
	"context"
	"time"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
)

// ConversationSummary is the read model for listing conversations: the
// conversation row plus the aggregates the listing endpoints expose.
type ConversationSummary struct {
	Conversation         messaging.Conversation
	Participants         []string
	MessageCount         int
	LastMessageTimestamp *time.Time
}

// MessageFilter narrows message listings. A nil Direction means both.
type MessageFilter struct {
	Limit     int
	Offset    int
	Direction *messaging.Direction
}

// MessagingRepository defines persistence operations for conversations,
// participants and messages. Lookups that find nothing return (nil, nil);
// adapters return errors only for infrastructure failures.
type MessagingRepository interface {
	// WithinTx runs fn against a repository view bound to one transaction.
	// Nested calls reuse the surrounding transaction.
	WithinTx(ctx context.Context, fn func(MessagingRepository) error) error

	// FindConversationByParticipants returns the conversation for the exact
	// unordered participant set, or nil when none exists.
	FindConversationByParticipants(ctx context.Context, addresses []string) (*messaging.Conversation, error)

	// CreateConversationWithParticipants creates a conversation plus one
	// participant row per address. When a concurrent caller already created
	// the conversation for the same set, the winner's row is returned
	// instead of an error.
	CreateConversationWithParticipants(ctx context.Context, addresses []string) (*messaging.Conversation, error)

	GetConversation(ctx context.Context, id string) (*messaging.Conversation, error)
	GetConversationSummary(ctx context.Context, id string) (*ConversationSummary, error)
	ListConversations(ctx context.Context, limit, offset int, participantAddress string) ([]ConversationSummary, error)

	// FindMessageByProviderID returns the stored message carrying the given
	// provider-assigned id on the given channel, or nil. Used as the inbound
	// dedup key.
	FindMessageByProviderID(ctx context.Context, channel messaging.Channel, providerMessageID string) (*messaging.Message, error)

	// SaveMessage inserts the message and returns it with assigned id and
	// timestamps. A concurrent insert of the same inbound provider message
	// id yields the already-stored row, never a duplicate.
	SaveMessage(ctx context.Context, m messaging.Message) (*messaging.Message, error)

	// ListMessagesByConversation returns messages in message_timestamp
	// ascending order.
	ListMessagesByConversation(ctx context.Context, conversationID string, filter MessageFilter) ([]messaging.Message, error)

	// UpdateMessageStatus advances a message's delivery status. Backward
	// transitions are rejected with messaging.ErrValidation.
	UpdateMessageStatus(ctx context.Context, messageID string, status messaging.Status) (*messaging.Message, error)
}
