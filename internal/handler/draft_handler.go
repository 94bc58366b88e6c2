package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-class-console/internal/dto"
	"github.com/noah-isme/sma-class-console/internal/models"
	"github.com/noah-isme/sma-class-console/internal/service"
	"github.com/noah-isme/sma-class-console/pkg/response"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

type draftManager interface {
	Create(ctx context.Context, actor service.Actor, session *upstream.Session, classID int64) (*service.DraftSession, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.Draft, error)
	UpdateField(ctx context.Context, actor service.Actor, id, field, value string) (*models.Draft, error)
	AddSlot(ctx context.Context, actor service.Actor, id string) (*models.Draft, error)
	UpdateSlot(ctx context.Context, actor service.Actor, id string, index int, field, value string) (*models.Draft, error)
	RemoveSlot(ctx context.Context, actor service.Actor, id string, index int) (*models.Draft, error)
	Validate(ctx context.Context, actor service.Actor, id string) (*service.ValidationReport, error)
	Submit(ctx context.Context, actor service.Actor, session *upstream.Session, id string) (*service.SubmissionResult, error)
	Discard(ctx context.Context, actor service.Actor, id string) error
}

// DraftHandler exposes the class authoring session endpoints.
type DraftHandler struct {
	service draftManager
}

// NewDraftHandler constructs the handler.
func NewDraftHandler(svc *service.DraftService) *DraftHandler {
	return &DraftHandler{service: svc}
}

// Create godoc
// @Summary Open a class draft
// @Description Starts an authoring session. Passing class_id pre-fills the draft from an existing class (edit mode).
// @Tags Class Drafts
// @Accept json
// @Produce json
// @Param payload body dto.CreateDraftRequest false "Draft options"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /class-drafts [post]
func (h *DraftHandler) Create(c *gin.Context) {
	actor, session, ok := actorAndSession(c)
	if !ok {
		return
	}
	var req dto.CreateDraftRequest
	if !bindJSON(c, &req, true) {
		return
	}

	res, err := h.service.Create(c.Request.Context(), actor, session, req.ClassID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Get godoc
// @Summary Get a class draft
// @Tags Class Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /class-drafts/{id} [get]
func (h *DraftHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	draft, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// Discard godoc
// @Summary Discard a class draft
// @Tags Class Drafts
// @Param id path string true "Draft ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /class-drafts/{id} [delete]
func (h *DraftHandler) Discard(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Discard(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateField godoc
// @Summary Update a class field
// @Tags Class Drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body dto.UpdateFieldRequest true "Field change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /class-drafts/{id} [patch]
func (h *DraftHandler) UpdateField(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateFieldRequest
	if !bindJSON(c, &req, false) {
		return
	}
	draft, err := h.service.UpdateField(c.Request.Context(), actor, c.Param("id"), req.Field, req.Value)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// AddSlot godoc
// @Summary Append an empty schedule slot
// @Tags Class Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 201 {object} response.Envelope
// @Router /class-drafts/{id}/slots [post]
func (h *DraftHandler) AddSlot(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	draft, err := h.service.AddSlot(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, draft)
}

// UpdateSlot godoc
// @Summary Update a schedule slot field
// @Tags Class Drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param index path int true "Slot index"
// @Param payload body dto.UpdateSlotRequest true "Slot field change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /class-drafts/{id}/slots/{index} [patch]
func (h *DraftHandler) UpdateSlot(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	index, ok := intParam(c, "index")
	if !ok {
		return
	}
	var req dto.UpdateSlotRequest
	if !bindJSON(c, &req, false) {
		return
	}
	draft, err := h.service.UpdateSlot(c.Request.Context(), actor, c.Param("id"), index, req.Field, req.Value)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// RemoveSlot godoc
// @Summary Remove a schedule slot
// @Tags Class Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Param index path int true "Slot index"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /class-drafts/{id}/slots/{index} [delete]
func (h *DraftHandler) RemoveSlot(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	index, ok := intParam(c, "index")
	if !ok {
		return
	}
	draft, err := h.service.RemoveSlot(c.Request.Context(), actor, c.Param("id"), index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// Validate godoc
// @Summary Validate a draft
// @Description Runs the fail-fast validator and reports same-teacher overlaps as warnings
// @Tags Class Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Router /class-drafts/{id}/validate [post]
func (h *DraftHandler) Validate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.Validate(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Submit godoc
// @Summary Submit a draft
// @Description Creates the class then its schedule slots (or updates the class in edit mode). Partial slot failures return SCHEDULE_CREATION_FAILED with the created class id.
// @Tags Class Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /class-drafts/{id}/submit [post]
func (h *DraftHandler) Submit(c *gin.Context) {
	actor, session, ok := actorAndSession(c)
	if !ok {
		return
	}
	result, err := h.service.Submit(c.Request.Context(), actor, session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Mode == models.DraftModeEdit {
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	response.Created(c, result)
}
