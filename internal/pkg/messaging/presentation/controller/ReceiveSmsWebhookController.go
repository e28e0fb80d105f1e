package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	cacheport "github.com/evmac/messaging-service/internal/infrastructure/cache/port"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/usecase"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/webhook"
	"github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/adapter"
)

// ReceiveSmsWebhookController handles the inbound SMS/MMS webhook endpoint
// (one controller per endpoint).
type ReceiveSmsWebhookController struct {
	UC *usecase.ReceiveWebhookUseCase
}

func NewReceiveSmsWebhookController(pool *pgxpool.Pool, cache cacheport.Cache, notifier usecase.MessageNotifier) *ReceiveSmsWebhookController {
	repo := adapter.NewPgMessagingRepository(pool)
	return &ReceiveSmsWebhookController{UC: usecase.NewReceiveWebhookUseCase(repo, cache, notifier)}
}

func (h *ReceiveSmsWebhookController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		stored, err := h.UC.Execute(ctx, payload, webhook.HintSMS)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toMessageView(*stored))
	}
}
