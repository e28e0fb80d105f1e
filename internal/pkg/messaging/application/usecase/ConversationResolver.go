package usecase

import (
	"context"
	"time"

	cacheport "github.com/evmac/messaging-service/internal/infrastructure/cache/port"
	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	repository "github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/port"
)

const conversationCacheTTL = time.Hour

func conversationCacheKey(participantKey string) string {
	return "conversation:participants:" + participantKey
}

// conversationResolver maps an unordered participant address set to its
// conversation, creating one when absent. The repository's participant-key
// uniqueness guarantees that concurrent resolves of the same set converge on
// one conversation id. An optional cache short-circuits the lookup path;
// cache failures are ignored, the repository is always authoritative.
type conversationResolver struct {
	cache cacheport.Cache // may be nil
}

func (cr conversationResolver) resolve(ctx context.Context, repo repository.MessagingRepository, addresses []string) (*messaging.Conversation, error) {
	key := messaging.ParticipantKey(addresses)

	if cr.cache != nil {
		if id, err := cr.cache.Get(ctx, conversationCacheKey(key)); err == nil && id != "" {
			conv, err := repo.GetConversation(ctx, id)
			if err != nil {
				return nil, err
			}
			if conv != nil {
				return conv, nil
			}
			// Stale entry; fall through to the repository.
		}
	}

	conv, err := repo.FindConversationByParticipants(ctx, addresses)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		conv, err = repo.CreateConversationWithParticipants(ctx, addresses)
		if err != nil {
			return nil, err
		}
	}

	if cr.cache != nil {
		_ = cr.cache.Set(ctx, conversationCacheKey(key), conv.ID, conversationCacheTTL)
	}
	return conv, nil
}
