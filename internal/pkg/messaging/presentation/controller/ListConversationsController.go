package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evmac/messaging-service/internal/pkg/messaging/application/usecase"
	"github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/adapter"
)

// ListConversationsController handles the conversation listing endpoint
// (one controller per endpoint).
type ListConversationsController struct {
	UC *usecase.ListConversationsUseCase
}

func NewListConversationsController(pool *pgxpool.Pool) *ListConversationsController {
	repo := adapter.NewPgMessagingRepository(pool)
	return &ListConversationsController{UC: usecase.NewListConversationsUseCase(repo)}
}

func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Defaults
		limit := 50
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

		in := usecase.ListConversationsInput{
			Limit:              limit,
			Offset:             offset,
			ParticipantAddress: c.Query("participant"),
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		summaries, err := h.UC.Execute(ctx, in)
		if err != nil {
			respondError(c, err)
			return
		}

		out := make([]conversationView, 0, len(summaries))
		for _, s := range summaries {
			out = append(out, toConversationView(s))
		}
		c.JSON(http.StatusOK, gin.H{
			"conversations": out,
			"limit":         limit,
			"offset":        offset,
			"count":         len(out),
		})
	}
}
