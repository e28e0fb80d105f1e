package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	cacheport "github.com/evmac/messaging-service/internal/infrastructure/cache/port"
	queueport "github.com/evmac/messaging-service/internal/infrastructure/queue/port"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/task"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/usecase"
	"github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/adapter"
	"github.com/evmac/messaging-service/internal/pkg/messaging/provider"
)

// SendMessageController handles the outbound send endpoints. Sends run
// synchronously; when a queue client is configured, transient provider
// failures are handed off to the background dispatcher instead of bubbling
// an error to the caller.
type SendMessageController struct {
	UC *usecase.SendMessageUseCase
	Q  queueport.Client // optional
}

func NewSendMessageController(pool *pgxpool.Pool, dispatch usecase.MessageDispatcher, defaults usecase.SenderDefaults, cache cacheport.Cache, notifier usecase.MessageNotifier, q queueport.Client) *SendMessageController {
	repo := adapter.NewPgMessagingRepository(pool)
	return &SendMessageController{
		UC: usecase.NewSendMessageUseCase(repo, dispatch, defaults, cache, notifier),
		Q:  q,
	}
}

// sendMessageRequest is the DTO for the HTTP request body.
type sendMessageRequest struct {
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address" binding:"required"`
	Body        string     `json:"body" binding:"required"`
	Attachments []string   `json:"attachments"`
	Timestamp   *time.Time `json:"timestamp"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		in := usecase.SendMessageInput{
			FromAddress: req.FromAddress,
			ToAddress:   req.ToAddress,
			Body:        req.Body,
			Attachments: req.Attachments,
		}
		if req.Timestamp != nil {
			in.Timestamp = req.Timestamp.UTC()
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		stored, err := h.UC.Execute(ctx, in)
		if err == nil {
			c.JSON(http.StatusOK, toMessageView(*stored))
			return
		}

		if h.Q != nil && isTransient(err) {
			if taskID, qErr := h.enqueue(ctx, in); qErr == nil {
				c.JSON(http.StatusAccepted, gin.H{"status": "queued", "task_id": taskID})
				return
			}
		}
		respondError(c, err)
	}
}

// isTransient reports whether a later retry of the send could succeed.
func isTransient(err error) bool {
	return errors.Is(err, provider.ErrRateLimited) || errors.Is(err, provider.ErrUnavailable)
}

func (h *SendMessageController) enqueue(ctx context.Context, in usecase.SendMessageInput) (string, error) {
	payload := task.SendMessageTaskPayload{
		FromAddress: in.FromAddress,
		ToAddress:   in.ToAddress,
		Body:        in.Body,
		Attachments: in.Attachments,
		Timestamp:   in.Timestamp,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	opts := queueport.EnqueueOption{Queue: "messaging", MaxRetry: 10}
	return h.Q.Enqueue(ctx, queueport.Task{Type: task.SendMessageTaskType, Payload: b}, opts)
}
