package usecase

import (
	"context"
	"errors"
	"fmt"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	"github.com/evmac/messaging-service/internal/pkg/messaging/provider"
)

// MessageDispatcher sends a canonical outbound request through the
// channel-appropriate provider. Satisfied by provider.Dispatcher.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, req messaging.OutboundRequest) (provider.SendResult, error)
}

// MessageNotifier publishes a freshly stored message to interested
// observers (the realtime conversation stream). Implementations must not
// block; delivery is best effort.
type MessageNotifier interface {
	MessageStored(conversationID string, m messaging.Message)
}

// wrapPersistence tags infrastructure failures as ErrPersistence while
// letting domain errors propagate untouched.
func wrapPersistence(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, messaging.ErrValidation) || errors.Is(err, messaging.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
