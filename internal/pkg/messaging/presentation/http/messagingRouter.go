package http

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	cacheport "github.com/evmac/messaging-service/internal/infrastructure/cache/port"
	qport "github.com/evmac/messaging-service/internal/infrastructure/queue/port"
	"github.com/evmac/messaging-service/internal/infrastructure/realtime"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/usecase"
	"github.com/evmac/messaging-service/internal/pkg/messaging/presentation/controller"
)

// RegisterRoutes registers messaging HTTP endpoints under the given router
// group. It constructs per-endpoint controllers and binds them directly to
// routes. The queue client may be nil (synchronous sends only).
func RegisterRoutes(g *gin.RouterGroup, pool *pgxpool.Pool, cache cacheport.Cache, dispatch usecase.MessageDispatcher, defaults usecase.SenderDefaults, client qport.Client, router *realtime.Router) {
	notifier := controller.NewRealtimeNotifier(router)

	smsWebhookCtl := controller.NewReceiveSmsWebhookController(pool, cache, notifier)
	emailWebhookCtl := controller.NewReceiveEmailWebhookController(pool, cache, notifier)
	sendCtl := controller.NewSendMessageController(pool, dispatch, defaults, cache, notifier, client)
	listCtl := controller.NewListConversationsController(pool)
	messagesCtl := controller.NewGetConversationMessagesController(pool)
	streamCtl := controller.NewConversationStreamController(pool, router)

	// POST /api/webhooks/sms -> ingest an inbound SMS/MMS event
	g.POST("/webhooks/sms", smsWebhookCtl.Handle())

	// POST /api/webhooks/email -> ingest an inbound email event
	g.POST("/webhooks/email", emailWebhookCtl.Handle())

	// POST /api/messages/sms and /api/messages/email -> send a message.
	// Both paths share one handler; the channel is derived from the
	// recipient address.
	g.POST("/messages/sms", sendCtl.Handle())
	g.POST("/messages/email", sendCtl.Handle())

	// GET /api/conversations -> list conversations with aggregates
	g.GET("/conversations", listCtl.Handle())

	// GET /api/conversations/:conversationId/messages -> conversation history
	g.GET("/conversations/:conversationId/messages", messagesCtl.Handle())

	// GET /api/conversations/ws -> websocket stream of stored messages
	g.GET("/conversations/ws", streamCtl.Handle())
}
