package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evmac/messaging-service/internal/infrastructure/realtime"
	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/usecase"
	"github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/adapter"
)

// ConversationStreamController handles the websocket endpoint that streams
// stored messages for watched conversations. Clients send watch/unwatch
// frames and receive every message appended to those conversations.
type ConversationStreamController struct {
	router          *realtime.Router
	summaryUC       *usecase.ListConversationsUseCase
	inflightTimeout time.Duration
}

func NewConversationStreamController(pool *pgxpool.Pool, router *realtime.Router) *ConversationStreamController {
	repo := adapter.NewPgMessagingRepository(pool)
	return &ConversationStreamController{
		router:          router,
		summaryUC:       usecase.NewListConversationsUseCase(repo),
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now; plug a proper checker when auth is added.
		return true
	},
}

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type ackFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket and processes frames until
// the client disconnects.
func (ctl *ConversationStreamController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just return.
			return
		}

		conn := realtime.NewConnection(ws)
		ctl.router.Attach(conn)
		defer func() {
			ctl.router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		if payload, err := json.Marshal(ackFrame{Type: "connected"}); err == nil {
			_ = conn.Send(payload)
		}

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				ctl.replyError(conn, "read_error", err.Error())
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}

			switch frame.Type {
			case "watch":
				ctl.handleWatch(c, conn, frame)
			case "unwatch":
				ctl.handleUnwatch(conn, frame)
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *ConversationStreamController) handleWatch(c *gin.Context, conn *realtime.Connection, frame inboundFrame) {
	if frame.ConversationID == "" {
		ctl.replyError(conn, "bad_request", "conversation_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	if _, err := ctl.summaryUC.GetSummary(ctx, frame.ConversationID); err != nil {
		switch {
		case errors.Is(err, messaging.ErrNotFound):
			ctl.replyError(conn, "not_found", "conversation does not exist")
		case errors.Is(err, messaging.ErrValidation):
			ctl.replyError(conn, "bad_request", err.Error())
		default:
			ctl.replyError(conn, "internal_error", "unexpected persistence error")
		}
		return
	}

	ctl.router.Watch(frame.ConversationID, conn)

	if payload, err := json.Marshal(ackFrame{Type: "watching", ConversationID: frame.ConversationID}); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ConversationStreamController) handleUnwatch(conn *realtime.Connection, frame inboundFrame) {
	if frame.ConversationID == "" {
		ctl.replyError(conn, "bad_request", "conversation_id is required")
		return
	}
	ctl.router.Unwatch(frame.ConversationID, conn)

	if payload, err := json.Marshal(ackFrame{Type: "unwatched", ConversationID: frame.ConversationID}); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ConversationStreamController) replyError(conn *realtime.Connection, code string, message string) {
	frame := errorFrame{
		Type:  "error",
		Code:  code,
		Error: message,
	}
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}
