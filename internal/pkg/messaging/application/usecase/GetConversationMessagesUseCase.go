package usecase

import (
	"context"
	"fmt"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	repository "github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/port"
)

// GetConversationMessagesInput carries parameters to fetch messages of a
// conversation. A nil Direction returns both directions.
type GetConversationMessagesInput struct {
	ConversationID string
	Limit          int
	Offset         int
	Direction      *messaging.Direction
}

// GetConversationMessagesUseCase fetches a conversation's history in
// message-timestamp ascending order.
type GetConversationMessagesUseCase struct {
	Repo repository.MessagingRepository
}

func NewGetConversationMessagesUseCase(repo repository.MessagingRepository) *GetConversationMessagesUseCase {
	return &GetConversationMessagesUseCase{Repo: repo}
}

func (uc *GetConversationMessagesUseCase) Execute(ctx context.Context, in GetConversationMessagesInput) ([]messaging.Message, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", messaging.ErrValidation)
	}
	if in.Limit < 0 || in.Limit > 1000 {
		return nil, fmt.Errorf("%w: limit must be between 0 and 1000", messaging.ErrValidation)
	}
	if in.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must be non-negative", messaging.ErrValidation)
	}
	if in.Direction != nil && !in.Direction.Valid() {
		return nil, fmt.Errorf("%w: direction must be 'inbound' or 'outbound'", messaging.ErrValidation)
	}

	conv, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: conversation %s", messaging.ErrNotFound, in.ConversationID)
	}

	msgs, err := uc.Repo.ListMessagesByConversation(ctx, in.ConversationID, repository.MessageFilter{
		Limit:     in.Limit,
		Offset:    in.Offset,
		Direction: in.Direction,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}
