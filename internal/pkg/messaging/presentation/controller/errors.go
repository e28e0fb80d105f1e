package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	messaging "github.com/evmac/messaging-service/internal/pkg/messaging/application/domain"
	"github.com/evmac/messaging-service/internal/pkg/messaging/application/usecase"
	"github.com/evmac/messaging-service/internal/pkg/messaging/provider"
)

// respondError translates domain, provider, and persistence errors into
// HTTP status codes. Provider failures surface as 429 (throttled, retryable)
// or 502 (the upstream, not this service, misbehaved).
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, messaging.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, messaging.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, provider.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, provider.ErrUnavailable), errors.Is(err, provider.ErrProtocol):
		status = http.StatusBadGateway
	case errors.Is(err, usecase.ErrPersistence):
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
