package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	cacheport "github.com/evmac/messaging-service/internal/infrastructure/cache/port"
	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	repository "github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/port"
)

// SenderDefaults supplies the sender address per channel when the caller
// omits one (tenant-level configuration).
type SenderDefaults struct {
	SMSFrom   string
	EmailFrom string
}

// SendMessageInput carries the data needed to send a new message.
type SendMessageInput struct {
	FromAddress string
	ToAddress   string
	Body        string
	Attachments []string
	Timestamp   time.Time // zero means now
}

// SendMessageUseCase handles the outbound flow: resolve the conversation for
// the participant pair, dispatch through the channel-appropriate provider,
// and persist the result. On dispatch failure nothing is persisted and the
// typed provider error propagates untouched. The conversation itself may
// already exist at that point; that is harmless since conversations are
// idempotent and never deleted.
type SendMessageUseCase struct {
	Repo     repository.MessagingRepository
	Dispatch MessageDispatcher
	Defaults SenderDefaults
	Notifier MessageNotifier // optional
	resolver conversationResolver
}

func NewSendMessageUseCase(repo repository.MessagingRepository, dispatch MessageDispatcher, defaults SenderDefaults, cache cacheport.Cache, notifier MessageNotifier) *SendMessageUseCase {
	return &SendMessageUseCase{
		Repo:     repo,
		Dispatch: dispatch,
		Defaults: defaults,
		Notifier: notifier,
		resolver: conversationResolver{cache: cache},
	}
}

func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*messaging.Message, error) {
	to := strings.TrimSpace(in.ToAddress)
	body := strings.TrimSpace(in.Body)
	if to == "" {
		return nil, fmt.Errorf("%w: to_address is required", messaging.ErrValidation)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: body is required", messaging.ErrValidation)
	}

	from, err := uc.senderFor(strings.TrimSpace(in.FromAddress), to)
	if err != nil {
		return nil, err
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	attachments := in.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	req := messaging.OutboundRequest{
		From:        from,
		To:          to,
		Body:        body,
		Attachments: attachments,
		OccurredAt:  ts,
	}

	conv, err := uc.resolver.resolve(ctx, uc.Repo, []string{from, to})
	if err != nil {
		return nil, wrapPersistence(err)
	}

	result, err := uc.Dispatch.Dispatch(ctx, req)
	if err != nil {
		// Provider taxonomy passes through; no message row is recorded for a
		// send that never left the system.
		return nil, err
	}

	status := result.Status
	if status == "" {
		status = messaging.StatusDelivered
	}
	var providerID *string
	if result.ProviderMessageID != "" {
		id := result.ProviderMessageID
		providerID = &id
	}

	m, err := messaging.NewMessage(messaging.Message{
		ConversationID:    conv.ID,
		Channel:           req.Channel(),
		ProviderMessageID: providerID,
		FromAddress:       from,
		ToAddress:         to,
		Body:              body,
		Attachments:       attachments,
		Direction:         messaging.DirectionOutbound,
		Status:            status,
		MessageTimestamp:  ts,
	})
	if err != nil {
		return nil, err
	}

	stored, err := uc.Repo.SaveMessage(ctx, *m)
	if err != nil {
		return nil, wrapPersistence(err)
	}

	if uc.Notifier != nil {
		uc.Notifier.MessageStored(stored.ConversationID, *stored)
	}
	return stored, nil
}

// senderFor fills an absent sender address from the configured default for
// the recipient's channel.
func (uc *SendMessageUseCase) senderFor(from, to string) (string, error) {
	if from != "" {
		return from, nil
	}
	if messaging.AddressKindOf(to) == messaging.AddressKindEmail {
		from = uc.Defaults.EmailFrom
	} else {
		from = uc.Defaults.SMSFrom
	}
	if from == "" {
		return "", fmt.Errorf("%w: from_address is required and no default sender is configured", messaging.ErrValidation)
	}
	return from, nil
}
