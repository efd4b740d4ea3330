package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/whatsapp-relay/internal/interfaces/httpserver/handlers"
	v1 "github.com/janhq/whatsapp-relay/internal/interfaces/httpserver/routes/v1"
)

// Provider coordinates all route registrations.
type Provider struct {
	handlers *handlers.Provider
	V1       *v1.Routes
}

// NewProvider constructs the route provider.
func NewProvider(handlerProvider *handlers.Provider) *Provider {
	return &Provider{
		handlers: handlerProvider,
		V1:       v1.NewRoutes(handlerProvider),
	}
}

// Register attaches all available routes to the gin engine.
func (p *Provider) Register(engine *gin.Engine) {
	// Unversioned path configured on Evolution API instances.
	engine.POST("/webhooks/evolution", p.handlers.Webhook.Receive)
	p.V1.Register(engine)
}
