package requests

// SendTestMessageRequest is the body of POST /v1/agents/:agent_id/messages/test.
type SendTestMessageRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Message string `json:"message" binding:"required"`
}
