package v1

import (
	"net/http"

	"github.com/giropos/fiscal/internal/api/dto"
	"github.com/giropos/fiscal/internal/config"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/service"
	"github.com/gin-gonic/gin"
)

type EmissionHandler struct {
	service service.EmissionService
	config  *config.Configuration
	log     *logger.Logger
}

func NewEmissionHandler(service service.EmissionService, cfg *config.Configuration, log *logger.Logger) *EmissionHandler {
	return &EmissionHandler{service: service, config: cfg, log: log}
}

// @Summary Emit a fiscal receipt
// @Description Submits one sale for fiscal emission and returns the authorized or queued document with its print artifacts
// @Tags Emissions
// @Accept json
// @Produce json
// @Param request body dto.EmitRequest true "Sale"
// @Success 201 {object} dto.EmitResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 422 {object} ierr.ErrorResponse
// @Router /emissions [post]
func (h *EmissionHandler) EmitReceipt(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.EmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	result, err := h.service.Emit(ctx, req.ToEmissionRequest(h.config))
	if err != nil {
		h.log.Error("Failed to emit receipt", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToEmitResponse(result))
}
