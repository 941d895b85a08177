package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openlearnhq/report-engine/internal/dto"
	"github.com/openlearnhq/report-engine/internal/models"
	"github.com/openlearnhq/report-engine/internal/repository"
	"github.com/openlearnhq/report-engine/internal/service"
	appErrors "github.com/openlearnhq/report-engine/pkg/errors"
	"github.com/openlearnhq/report-engine/pkg/response"
)

// ReportHandler exposes report definition and compilation endpoints.
type ReportHandler struct {
	reports   *service.ReportService
	scheduler *service.ScheduleService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports *service.ReportService, scheduler *service.ScheduleService) *ReportHandler {
	return &ReportHandler{reports: reports, scheduler: scheduler}
}

// Create godoc
// @Summary Create a report definition with default structure
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid report payload"))
		return
	}
	def, err := h.reports.Create(c.Request.Context(), req, session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ReportResponse{Report: def})
}

// Get godoc
// @Summary Fetch one report definition
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	def, err := h.reports.Get(c.Request.Context(), c.Param("id"), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ReportResponse{Report: def}, nil)
}

// List godoc
// @Summary List report definitions
// @Tags Reports
// @Produce json
// @Param type query string false "Report type"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := repository.ReportFilter{
		Platform: c.Query("platform"),
		Type:     models.ReportType(c.Query("type")),
		Page:     intQuery(c, "page"),
		PageSize: intQuery(c, "page_size"),
	}
	defs, pagination, err := h.reports.List(c.Request.Context(), filter, session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, defs, pagination)
}

// Delete godoc
// @Summary Delete a report definition
// @Tags Reports
// @Param id path string true "Report ID"
// @Success 204
// @Router /reports/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.reports.Delete(c.Request.Context(), c.Param("id"), session); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateFields godoc
// @Summary Replace the field selection of a report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.UpdateFieldsRequest true "Fields payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/fields [put]
func (h *ReportHandler) UpdateFields(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Fields) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "fields payload required"))
		return
	}
	def, err := h.reports.UpdateFields(c.Request.Context(), c.Param("id"), req.Fields, session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ReportResponse{Report: def}, nil)
}

// UpdateSorting godoc
// @Summary Replace the sorting descriptor of a report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.UpdateSortingRequest true "Sorting payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/sorting [put]
func (h *ReportHandler) UpdateSorting(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateSortingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid sorting payload"))
		return
	}
	def, err := h.reports.UpdateSorting(c.Request.Context(), c.Param("id"), req, session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ReportResponse{Report: def}, nil)
}

// Compile godoc
// @Summary Compile a report into dialect SQL
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.CompileRequest true "Compilation options"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/query [post]
func (h *ReportHandler) Compile(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CompileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Dialect == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "dialect is required"))
		return
	}
	result, err := h.reports.Compile(c.Request.Context(), c.Param("id"), req, session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ImportLegacy godoc
// @Summary Import a legacy filter document as a native definition
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.LegacyImportRequest true "Legacy payload"
// @Success 201 {object} response.Envelope
// @Router /reports/legacy-import [post]
func (h *ReportHandler) ImportLegacy(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.LegacyImportRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Payload) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "legacy payload required"))
		return
	}
	def, err := h.reports.ImportLegacy(c.Request.Context(), req, session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ReportResponse{Report: def})
}

// Schedule godoc
// @Summary Enqueue an on-demand scheduled compilation
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 202 {object} response.Envelope
// @Router /reports/{id}/schedule [post]
func (h *ReportHandler) Schedule(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	job, err := h.scheduler.EnqueueReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Job godoc
// @Summary Fetch one compile job, with signed download URL when finished
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id} [get]
func (h *ReportHandler) Job(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	job, err := h.scheduler.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{}
	if job.Status == models.JobStatusFinished {
		if token, expires, err := h.scheduler.SignedURLFor(job); err == nil {
			meta["download_token"] = token
			meta["expires_at"] = expires
		}
	}
	response.JSON(c, http.StatusOK, job, nil, meta)
}

// Download streams a stored SQL artifact addressed by a signed token.
// The token itself authenticates the request.
func (h *ReportHandler) Download(c *gin.Context) {
	artifact, err := h.scheduler.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer artifact.File.Close()
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(artifact.Filename))
	c.Header("Content-Type", "application/sql")
	if _, err := io.Copy(c.Writer, artifact.File); err != nil {
		_ = c.Error(err)
	}
}

func intQuery(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}
