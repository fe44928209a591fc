package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modelrelay/relay/internal/gateway"
	"github.com/modelrelay/relay/internal/server/validator"
	"github.com/modelrelay/relay/pkg/schema"
)

type ChatHandler struct {
	service *gateway.Service
}

func NewChatHandler(service *gateway.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) CreateCompletion(c *gin.Context) {
	var req schema.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(schema.NewError(http.StatusBadRequest, schema.ErrTypeInvalidRequest,
			validator.FormatError(err)))
		return
	}

	if req.Stream {
		h.handleStream(c, &req)
		return
	}

	resp, apiErr := h.service.ChatCompletion(c.Request.Context(), &req)
	if apiErr != nil {
		_ = c.Error(apiErr)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) handleStream(c *gin.Context, req *schema.ChatRequest) {
	sess, apiErr := h.service.OpenStream(c.Request.Context(), req)
	if apiErr != nil {
		// nothing written yet, a plain error response is still possible
		c.JSON(apiErr.Status, schema.ErrorResponse{Error: apiErr})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	sess.Run(c.Writer, c.Writer.Flush)
}
