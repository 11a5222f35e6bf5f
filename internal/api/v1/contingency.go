package v1

import (
	"net/http"

	"github.com/giropos/fiscal/internal/api/dto"
	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/logger"
	"github.com/giropos/fiscal/internal/service"
	"github.com/gin-gonic/gin"
)

type ContingencyHandler struct {
	service service.RetransmissionService
	log     *logger.Logger
}

func NewContingencyHandler(service service.RetransmissionService, log *logger.Logger) *ContingencyHandler {
	return &ContingencyHandler{service: service, log: log}
}

// @Summary List pending contingency documents
// @Description Returns the offline-issued documents still awaiting authority confirmation, oldest first
// @Tags Contingency
// @Produce json
// @Success 200 {object} dto.ListContingencyResponse
// @Router /contingency/pending [get]
func (h *ContingencyHandler) ListPending(c *gin.Context) {
	ctx := c.Request.Context()
	records, err := h.service.ListPending(ctx)
	if err != nil {
		h.log.Error("Failed to list pending contingency records", "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.ToListContingencyResponse(records))
}

// @Summary Retransmit one queued document
// @Description Submits the identified contingency document to the authority now, bypassing the background queue
// @Tags Contingency
// @Produce json
// @Param access_key path string true "Access key"
// @Success 200 {object} dto.ContingencyRecordResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 422 {object} ierr.ErrorResponse
// @Router /contingency/{access_key}/retransmit [post]
func (h *ContingencyHandler) Retransmit(c *gin.Context) {
	ctx := c.Request.Context()
	accessKey := c.Param("access_key")
	if len(accessKey) != 44 {
		c.Error(ierr.NewError("invalid access key").
			WithHint("Access key must have 44 digits").
			Mark(ierr.ErrValidation))
		return
	}

	record, err := h.service.Retransmit(ctx, accessKey)
	if err != nil {
		h.log.Error("Failed to retransmit contingency record", "access_key", accessKey, "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.ToContingencyRecordResponse(record))
}

// @Summary Drain the contingency queue
// @Description Enqueues a retransmission command for every pending document
// @Tags Contingency
// @Produce json
// @Success 200 {object} dto.RetransmitPendingResponse
// @Router /contingency/retransmit [post]
func (h *ContingencyHandler) RetransmitPending(c *gin.Context) {
	ctx := c.Request.Context()
	count, err := h.service.RetransmitPending(ctx)
	if err != nil {
		h.log.Error("Failed to drain contingency queue", "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.RetransmitPendingResponse{Enqueued: count})
}
