package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/whatsapp-relay/internal/interfaces/httpserver/handlers"
)

func registerAgentRoutes(router gin.IRoutes, handler *handlers.AgentHandler) {
	router.POST("/agents/:agent_id/messages/test", handler.SendTestMessage)
}
