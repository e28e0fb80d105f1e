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

// ReceiveEmailWebhookController handles the inbound email webhook endpoint
// (one controller per endpoint).
type ReceiveEmailWebhookController struct {
	UC *usecase.ReceiveWebhookUseCase
}

func NewReceiveEmailWebhookController(pool *pgxpool.Pool, cache cacheport.Cache, notifier usecase.MessageNotifier) *ReceiveEmailWebhookController {
	repo := adapter.NewPgMessagingRepository(pool)
	return &ReceiveEmailWebhookController{UC: usecase.NewReceiveWebhookUseCase(repo, cache, notifier)}
}

func (h *ReceiveEmailWebhookController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		stored, err := h.UC.Execute(ctx, payload, webhook.HintEmail)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toMessageView(*stored))
	}
}
