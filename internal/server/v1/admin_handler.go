package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modelrelay/relay/internal/provider"
	"github.com/modelrelay/relay/pkg/schema"
)

// AdminHandler manages the provider registry at runtime: toggling providers
// and models, and replacing or extending model lists.
type AdminHandler struct {
	registry *provider.Registry
}

func NewAdminHandler(registry *provider.Registry) *AdminHandler {
	return &AdminHandler{registry: registry}
}

type enabledBody struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type modelsBody struct {
	Models []provider.ModelConfig `json:"models" binding:"required"`
}

// ListProviders returns every registered provider, disabled ones included.
func (h *AdminHandler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   h.registry.ListAll(),
	})
}

func (h *AdminHandler) GetProvider(c *gin.Context) {
	adapter, ok := h.registry.Get(c.Param("id"))
	if !ok {
		_ = c.Error(h.notFound(c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, adapter.Config())
}

func (h *AdminHandler) SetProviderEnabled(c *gin.Context) {
	var body enabledBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(schema.NewError(http.StatusBadRequest, schema.ErrTypeInvalidRequest,
			"body must carry an enabled flag"))
		return
	}

	id := c.Param("id")
	if !h.registry.SetProviderEnabled(id, *body.Enabled) {
		_ = c.Error(h.notFound(id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": *body.Enabled})
}

// ReplaceModels swaps the provider's model list wholesale.
func (h *AdminHandler) ReplaceModels(c *gin.Context) {
	var body modelsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(schema.NewError(http.StatusBadRequest, schema.ErrTypeInvalidRequest,
			"body must carry a models list"))
		return
	}

	id := c.Param("id")
	if !h.registry.UpdateModels(id, body.Models) {
		_ = c.Error(h.notFound(id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "models": len(body.Models)})
}

// AppendModels merges new models into the provider, skipping ids it
// already has.
func (h *AdminHandler) AppendModels(c *gin.Context) {
	var body modelsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(schema.NewError(http.StatusBadRequest, schema.ErrTypeInvalidRequest,
			"body must carry a models list"))
		return
	}

	id := c.Param("id")
	if !h.registry.AddModels(id, body.Models) {
		_ = c.Error(h.notFound(id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *AdminHandler) SetModelEnabled(c *gin.Context) {
	var body enabledBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(schema.NewError(http.StatusBadRequest, schema.ErrTypeInvalidRequest,
			"body must carry an enabled flag"))
		return
	}

	id := c.Param("id")
	modelID := c.Param("model")
	if !h.registry.SetModelEnabled(id, modelID, *body.Enabled) {
		_ = c.Error(schema.NewError(http.StatusNotFound, schema.ErrTypeInvalidRequest,
			fmt.Sprintf("model %q not found on provider %q", modelID, id)))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "model": modelID, "enabled": *body.Enabled})
}

func (h *AdminHandler) notFound(id string) *schema.Error {
	return schema.NewError(http.StatusNotFound, schema.ErrTypeInvalidRequest,
		fmt.Sprintf("provider %q not found", id))
}
