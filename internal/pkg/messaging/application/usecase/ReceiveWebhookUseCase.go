package usecase

import (
	"context"

	cacheport "github.com/evmac/messaging-service/internal/infrastructure/cache/port"
	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/webhook"
	repository "github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/port"
)

// ReceiveWebhookUseCase handles the inbound flow: normalize the raw payload,
// resolve the conversation for the participant pair, and persist the message.
// Resolution and append run inside one transaction, so a validation or
// storage failure leaves no partial state behind.
type ReceiveWebhookUseCase struct {
	Repo     repository.MessagingRepository
	Notifier MessageNotifier // optional
	resolver conversationResolver
}

func NewReceiveWebhookUseCase(repo repository.MessagingRepository, cache cacheport.Cache, notifier MessageNotifier) *ReceiveWebhookUseCase {
	return &ReceiveWebhookUseCase{
		Repo:     repo,
		Notifier: notifier,
		resolver: conversationResolver{cache: cache},
	}
}

// Execute processes one webhook delivery. Redeliveries of the same provider
// message id return the originally stored message unchanged.
func (uc *ReceiveWebhookUseCase) Execute(ctx context.Context, payload map[string]any, hint webhook.ChannelHint) (*messaging.Message, error) {
	inbound, err := webhook.Normalize(payload, hint)
	if err != nil {
		return nil, err
	}

	var stored *messaging.Message
	err = uc.Repo.WithinTx(ctx, func(r repository.MessagingRepository) error {
		conv, err := uc.resolver.resolve(ctx, r, []string{inbound.From, inbound.To})
		if err != nil {
			return err
		}

		// Dedup by provider message id: webhook redelivery is a success
		// outcome, not an error.
		existing, err := r.FindMessageByProviderID(ctx, inbound.Channel, inbound.ProviderMessageID)
		if err != nil {
			return err
		}
		if existing != nil {
			stored = existing
			return nil
		}

		m, err := messaging.NewMessage(inbound.ToMessage(conv.ID))
		if err != nil {
			return err
		}
		stored, err = r.SaveMessage(ctx, *m)
		return err
	})
	if err != nil {
		return nil, wrapPersistence(err)
	}

	if uc.Notifier != nil && stored != nil {
		uc.Notifier.MessageStored(stored.ConversationID, *stored)
	}
	return stored, nil
}
