package v1

import (
	"net/http"

	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/service"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	service service.StatusService
	log     *logger.Logger
}

func NewHealthHandler(service service.StatusService, log *logger.Logger) *HealthHandler {
	return &HealthHandler{service: service, log: log}
}

// @Summary Probe the authority webservice
// @Description Asks the tax authority status service whether it is accepting documents
// @Tags Authority
// @Produce json
// @Success 200 {object} service.AuthorityStatus
// @Failure 502 {object} ierr.ErrorResponse
// @Router /authority/status [get]
func (h *HealthHandler) AuthorityStatus(c *gin.Context) {
	ctx := c.Request.Context()
	status, err := h.service.CheckAuthority(ctx)
	if err != nil {
		h.log.Error("Failed to check authority status", "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, status)
}
