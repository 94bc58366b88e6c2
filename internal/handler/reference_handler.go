package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-class-console/internal/models"
	"github.com/noah-isme/sma-class-console/internal/service"
	"github.com/noah-isme/sma-class-console/pkg/response"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

type referenceProvider interface {
	Load(ctx context.Context, session *upstream.Session, refresh bool) (*models.ReferenceData, error)
}

// ReferenceHandler serves the subject and teacher lookups for the caller's school.
type ReferenceHandler struct {
	service referenceProvider
}

// NewReferenceHandler constructs the handler.
func NewReferenceHandler(svc *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{service: svc}
}

// Get godoc
// @Summary Load reference data
// @Description Returns the principal's school with its subjects and teachers. refresh=true bypasses the cache.
// @Tags Reference
// @Produce json
// @Param refresh query bool false "Bypass cache"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /reference [get]
func (h *ReferenceHandler) Get(c *gin.Context) {
	_, session, ok := actorAndSession(c)
	if !ok {
		return
	}
	refresh, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))

	data, err := h.service.Load(c.Request.Context(), session, refresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil)
}
