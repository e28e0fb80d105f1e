package controller

import (
	"encoding/json"

	"github.com/evmac/messaging-service/internal/infrastructure/realtime"
	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/usecase"
)

// RealtimeNotifier fans stored messages out to websocket sessions watching
// the message's conversation.
type RealtimeNotifier struct {
	Router *realtime.Router
}

func NewRealtimeNotifier(router *realtime.Router) *RealtimeNotifier {
	return &RealtimeNotifier{Router: router}
}

var _ usecase.MessageNotifier = (*RealtimeNotifier)(nil)

type streamedMessage struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Message        messageView `json:"message"`
}

func (n *RealtimeNotifier) MessageStored(conversationID string, m messaging.Message) {
	out := streamedMessage{
		Type:           "message",
		ConversationID: conversationID,
		Message:        toMessageView(m),
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return
	}
	n.Router.Broadcast(conversationID, payload)
}
