package task

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	qport "github.com/evmac/messaging-service/internal/infrastructure/queue/port"
	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/usecase"
	"github.com/evmac/messaging-service/internal/pkg/messaging/provider"
)

// SendMessageTaskType is the queue task name for dispatching an outbound message.
const SendMessageTaskType = "messaging:send_message"

// SendMessageTaskPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type SendMessageTaskPayload struct {
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	Body        string    `json:"body"`
	Attachments []string  `json:"attachments,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// RegisterSendMessageTask binds the task handler to the provided server.
// Transient provider failures (rate limit, unavailable) return an error so
// the queue retries with backoff; permanent failures (validation, protocol)
// are logged and consumed so the task is not retried forever.
func RegisterSendMessageTask(srv qport.Server, uc *usecase.SendMessageUseCase) {
	srv.Register(SendMessageTaskType, func(ctx context.Context, t qport.Task) error {
		var p SendMessageTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			log.Printf("send_message task: malformed payload: %v", err)
			return nil
		}

		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		_, err := uc.Execute(ctx, usecase.SendMessageInput{
			FromAddress: p.FromAddress,
			ToAddress:   p.ToAddress,
			Body:        p.Body,
			Attachments: p.Attachments,
			Timestamp:   p.Timestamp,
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, messaging.ErrValidation), errors.Is(err, provider.ErrProtocol):
			log.Printf("send_message task: permanent failure, dropping: %v", err)
			return nil
		default:
			return err
		}
	})
}
