package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/app"
)

// SyncHandler exposes on-demand reconciliation with the remote quote service.
type SyncHandler struct {
	service *app.SyncService
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(service *app.SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// SyncNow handles POST /api/v1/sync
// A fetch or parse failure leaves the store unchanged and returns 503.
//
// @Summary Sync with the remote quote service
// @Tags sync
// @Produce json
// @Success 200 {object} dto.SyncResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/sync [post]
func (h *SyncHandler) SyncNow(c *gin.Context) {
	report, err := h.service.SyncNow(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSyncResponse(report))
}

// RegisterRoutes registers the sync route on rg behind the write middleware.
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	rg.Group("", write...).POST("/sync", h.SyncNow)
}
