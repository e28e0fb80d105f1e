package controller

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/usecase"
	"github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/adapter"
)

// GetConversationMessagesController handles fetching a conversation's history
// (one controller per endpoint).
type GetConversationMessagesController struct {
	UC *usecase.GetConversationMessagesUseCase
}

func NewGetConversationMessagesController(pool *pgxpool.Pool) *GetConversationMessagesController {
	repo := adapter.NewPgMessagingRepository(pool)
	return &GetConversationMessagesController{UC: usecase.NewGetConversationMessagesUseCase(repo)}
}

func (h *GetConversationMessagesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		// Defaults
		limit := 100
		offset := 0

		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var direction *messaging.Direction
		if v := c.Query("direction"); v != "" {
			d := messaging.Direction(v)
			if !d.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid direction %q", v)})
				return
			}
			direction = &d
		}

		in := usecase.GetConversationMessagesInput{
			ConversationID: conversationID,
			Limit:          limit,
			Offset:         offset,
			Direction:      direction,
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		msgs, err := h.UC.Execute(ctx, in)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"conversation_id": conversationID,
			"messages":        toMessageViews(msgs),
			"limit":           limit,
			"offset":          offset,
			"count":           len(msgs),
		})
	}
}
