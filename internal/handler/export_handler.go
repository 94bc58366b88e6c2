package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-class-console/internal/dto"
	"github.com/noah-isme/sma-class-console/internal/service"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/export"
	"github.com/noah-isme/sma-class-console/pkg/response"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

type timetableExporter interface {
	Export(ctx context.Context, session *upstream.Session, classID int64, format export.Format) (*service.TimetableExport, error)
	Open(token string) (*service.ExportFile, error)
}

// ExportHandler renders class timetables and serves the signed downloads.
type ExportHandler struct {
	service timetableExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc *service.TimetableService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Create godoc
// @Summary Export a class timetable
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path int true "Class ID"
// @Param payload body dto.ExportRequest false "Export format (pdf or csv)"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/timetable/exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	_, session, ok := actorAndSession(c)
	if !ok {
		return
	}
	classID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req dto.ExportRequest
	if !bindJSON(c, &req, true) {
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	res, err := h.service.Export(c.Request.Context(), session, classID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Download godoc
// @Summary Download an exported timetable
// @Description Streams the file behind a signed link. No bearer token required.
// @Tags Exports
// @Produce application/pdf
// @Produce text/csv
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Body.Close()
	response.Attachment(c, file.Filename, file.ContentType, file.Size, file.Body)
}

