package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-class-console/internal/dto"
	"github.com/noah-isme/sma-class-console/internal/models"
	"github.com/noah-isme/sma-class-console/internal/service"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/response"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

type schoolResolver interface {
	SchoolID(ctx context.Context, session *upstream.Session) (int64, error)
}

type journalReader interface {
	List(ctx context.Context, filter models.JournalFilter) ([]models.SubmissionJournal, *models.Pagination, error)
	Get(ctx context.Context, id string, schoolID int64) (*models.SubmissionJournal, error)
}

// SubmissionHandler exposes the submission journal.
type SubmissionHandler struct {
	schools schoolResolver
	journal journalReader
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(schools *service.ReferenceService, journal *service.JournalService) *SubmissionHandler {
	return &SubmissionHandler{schools: schools, journal: journal}
}

// List godoc
// @Summary List class submissions
// @Description Journal of submit attempts for the caller's school, newest first
// @Tags Submissions
// @Produce json
// @Param class_id query int false "Class ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	_, session, ok := actorAndSession(c)
	if !ok {
		return
	}
	var query dto.SubmissionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if !validateRequest(c, &query) {
		return
	}

	schoolID, err := h.schools.SchoolID(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.JournalFilter{SchoolID: schoolID, Page: query.Page, PageSize: query.PageSize}
	if query.ClassID > 0 {
		filter.ClassID = &query.ClassID
	}

	entries, pagination, err := h.journal.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Get godoc
// @Summary Get a class submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	_, session, ok := actorAndSession(c)
	if !ok {
		return
	}
	schoolID, err := h.schools.SchoolID(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	entry, err := h.journal.Get(c.Request.Context(), c.Param("id"), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
