package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/evmac/messaging-service/cmd/api/router"
	cacheadapter "github.com/evmac/messaging-service/internal/infrastructure/cache/adapter"
	cacheport "github.com/evmac/messaging-service/internal/infrastructure/cache/port"
	"github.com/evmac/messaging-service/internal/infrastructure/config"
	"github.com/evmac/messaging-service/internal/infrastructure/database"
	queueadapter "github.com/evmac/messaging-service/internal/infrastructure/queue/adapter"
	qport "github.com/evmac/messaging-service/internal/infrastructure/queue/port"
	"github.com/evmac/messaging-service/internal/infrastructure/realtime"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/task"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/usecase"
	"github.com/evmac/messaging-service/internal/pkg/messaging/persistence/repository/adapter"
	"github.com/evmac/messaging-service/internal/pkg/messaging/provider"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the database on startup
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Redis when configured, in-process LRU otherwise
	var cache cacheport.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cacheadapter.NewRedisAdapter(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		cache = redisCache
	} else {
		log.Printf("REDIS_URL not set; using in-process cache, background dispatch disabled")
		cache = cacheadapter.NewMemoryCache(0)
	}
	defer func() { _ = cache.Close() }()

	dispatcher := provider.NewDispatcher(provider.Config{
		SMS:     provider.Endpoint{BaseURL: cfg.SMSProviderURL, APIKey: cfg.SMSProviderAPIKey},
		Email:   provider.Endpoint{BaseURL: cfg.EmailProviderURL, APIKey: cfg.EmailProviderAPIKey},
		Timeout: cfg.ProviderTimeout,
	})
	defaults := usecase.SenderDefaults{
		SMSFrom:   cfg.DefaultSMSFrom,
		EmailFrom: cfg.DefaultEmailFrom,
	}

	rt := realtime.NewRouter()
	defer rt.Close()

	// Background dispatch rides on asynq and therefore needs Redis
	var queueClient qport.Client
	if cfg.RedisURL != "" {
		client, err := queueadapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to create queue client: %v", err)
		}
		defer func() { _ = client.Close() }()
		queueClient = client

		srv, err := queueadapter.NewAsynqServer(cfg.RedisURL, cfg.WorkerConcurrency, nil)
		if err != nil {
			log.Fatalf("failed to create queue server: %v", err)
		}
		repo := adapter.NewPgMessagingRepository(pool)
		sendUC := usecase.NewSendMessageUseCase(repo, dispatcher, defaults, cache, nil)
		task.RegisterSendMessageTask(srv, sendUC)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("queue server stopped: %v", err)
			}
		}()
	}

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	router.RegisterRoutes(r, pool, cache, dispatcher, defaults, queueClient, rt)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()
	log.Printf("listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
