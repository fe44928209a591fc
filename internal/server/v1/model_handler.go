package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/pkg/schema"
)

type ModelHandler struct {
	registry *provider.Registry
	created  int64
}

func NewModelHandler(registry *provider.Registry) *ModelHandler {
	return &ModelHandler{
		registry: registry,
		created:  time.Now().Unix(),
	}
}

// ListModels serves the OpenAI-shaped catalog of every routable model.
func (h *ModelHandler) ListModels(c *gin.Context) {
	entries := h.registry.ListModels()

	models := make([]schema.Model, 0, len(entries))
	for _, e := range entries {
		models = append(models, schema.Model{
			ID:      e.Model.PublicID(),
			Object:  "model",
			Created: h.created,
			OwnedBy: e.Provider,
		})
	}

	c.JSON(http.StatusOK, schema.ModelList{
		Object: "list",
		Data:   models,
	})
}
