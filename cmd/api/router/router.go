package router

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	cacheport "github.com/evmac/messaging-service/internal/infrastructure/cache/port"
	qport "github.com/evmac/messaging-service/internal/infrastructure/queue/port"
	"github.com/evmac/messaging-service/internal/infrastructure/realtime"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/usecase"
	httpHandler "github.com/evmac/messaging-service/internal/pkg/messaging/presentation/http"
)

// RegisterRoutes mounts all API routes under /api.
func RegisterRoutes(r *gin.Engine, pool *pgxpool.Pool, cache cacheport.Cache, dispatch usecase.MessageDispatcher, defaults usecase.SenderDefaults, client qport.Client, rt *realtime.Router) {
	api := r.Group("/api")
	httpHandler.RegisterRoutes(api, pool, cache, dispatch, defaults, client, rt)
}
