package usecase

import (
	"context"
	"fmt"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	repository "github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/port"
)

// ListConversationsInput carries pagination and filtering parameters.
type ListConversationsInput struct {
	Limit              int
	Offset             int
	ParticipantAddress string
}

// ListConversationsUseCase returns conversation summaries for the listing
// collaborator.
type ListConversationsUseCase struct {
	Repo repository.MessagingRepository
}

func NewListConversationsUseCase(repo repository.MessagingRepository) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, in ListConversationsInput) ([]repository.ConversationSummary, error) {
	// Zero means "use the storage default"; only negatives and oversized
	// limits are rejected.
	if in.Limit < 0 || in.Limit > 1000 {
		return nil, fmt.Errorf("%w: limit must be between 0 and 1000", messaging.ErrValidation)
	}
	if in.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must be non-negative", messaging.ErrValidation)
	}
	summaries, err := uc.Repo.ListConversations(ctx, in.Limit, in.Offset, in.ParticipantAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return summaries, nil
}

// GetSummary returns one conversation with its aggregates, or
// messaging.ErrNotFound.
func (uc *ListConversationsUseCase) GetSummary(ctx context.Context, conversationID string) (*repository.ConversationSummary, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", messaging.ErrValidation)
	}
	summary, err := uc.Repo.GetConversationSummary(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if summary == nil {
		return nil, fmt.Errorf("%w: conversation %s", messaging.ErrNotFound, conversationID)
	}
	return summary, nil
}
