package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/whatsapp-relay/internal/interfaces/httpserver/handlers"
)

func registerWebhookRoutes(router gin.IRoutes, webhook *handlers.WebhookHandler, events *handlers.EventHandler) {
	router.POST("/webhooks/evolution", webhook.Receive)
	router.GET("/webhook-events/:event_id", events.Get)
}
