package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sfd-aulas-api/internal/dto"
	"github.com/noah-isme/sfd-aulas-api/internal/middleware"
	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/internal/scheduling"
	"github.com/noah-isme/sfd-aulas-api/internal/service"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/response"
)

type aulaService interface {
	Programs() []scheduling.Program
	List(ctx context.Context, query dto.AulaQuery) ([]models.Aula, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.AulaDetail, error)
	Sessions(ctx context.Context, id string) ([]models.Session, error)
	Create(ctx context.Context, req dto.CreateAulaRequest) (*dto.AulaDetail, error)
	Update(ctx context.Context, id string, req dto.UpdateAulaRequest) (*dto.AulaDetail, error)
	Delete(ctx context.Context, id string, req dto.DeleteAulaRequest) error
}

type stateRefresher interface {
	Refresh(ctx context.Context, id string) (*dto.StateRefreshResult, error)
}

type sessionExporter interface {
	ExportSessions(ctx context.Context, aulaID string, format service.ExportFormat) (*service.ExportFile, error)
}

// AulaHandler exposes aula CRUD, calendars and exports.
type AulaHandler struct {
	aulas    aulaService
	state    stateRefresher
	exporter sessionExporter
}

// NewAulaHandler constructs an AulaHandler.
func NewAulaHandler(aulas aulaService, state stateRefresher, exporter sessionExporter) *AulaHandler {
	return &AulaHandler{aulas: aulas, state: state, exporter: exporter}
}

// Programs godoc
// @Summary List programs with their cycles and frequencies
// @Tags Programs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /programs [get]
func (h *AulaHandler) Programs(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.aulas.Programs(), nil)
}

// List godoc
// @Summary List aulas
// @Tags Aulas
// @Produce json
// @Param program query string false "Program name"
// @Param state query string false "Stored state"
// @Param teacher_id query string false "Teacher ID"
// @Param search query string false "Search by code"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "Sort field (code,start_date,created_at)"
// @Param sort_order query string false "Sort order (asc/desc)"
// @Success 200 {object} response.Envelope
// @Router /aulas [get]
func (h *AulaHandler) List(c *gin.Context) {
	var query dto.AulaQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	query.Search = strings.TrimSpace(query.Search)
	aulas, pagination, err := h.aulas.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aulas, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get aula detail with sessions and derived state
// @Tags Aulas
// @Produce json
// @Param id path string true "Aula ID"
// @Success 200 {object} response.Envelope
// @Router /aulas/{id} [get]
func (h *AulaHandler) Get(c *gin.Context) {
	detail, err := h.aulas.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SetRevision(c, detail.Revision)
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create aula and generate its sessions
// @Tags Aulas
// @Accept json
// @Produce json
// @Param payload body dto.CreateAulaRequest true "Aula payload"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /aulas [post]
func (h *AulaHandler) Create(c *gin.Context) {
	var req dto.CreateAulaRequest
	if !bindJSON(c, &req, "invalid aula payload") {
		return
	}
	detail, err := h.aulas.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SetRevision(c, detail.Revision)
	c.Header("Location", fmt.Sprintf("%s/%s", strings.TrimSuffix(c.FullPath(), "/"), detail.ID))
	response.Created(c, detail)
}

// Update godoc
// @Summary Update aula; time and teacher changes reach every future session
// @Tags Aulas
// @Accept json
// @Produce json
// @Param id path string true "Aula ID"
// @Param If-Match header string false "Expected revision"
// @Param payload body dto.UpdateAulaRequest true "Aula payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /aulas/{id} [put]
func (h *AulaHandler) Update(c *gin.Context) {
	var req dto.UpdateAulaRequest
	if !bindJSON(c, &req, "invalid aula payload") {
		return
	}
	req.Revision = expectedRevision(c, req.Revision)
	detail, err := h.aulas.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SetRevision(c, detail.Revision)
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete an aula that has not started
// @Tags Aulas
// @Param id path string true "Aula ID"
// @Param If-Match header string false "Expected revision"
// @Success 204
// @Failure 412 {object} response.Envelope
// @Router /aulas/{id} [delete]
func (h *AulaHandler) Delete(c *gin.Context) {
	var req dto.DeleteAulaRequest
	if !bindOptionalJSON(c, &req, "invalid delete payload") {
		return
	}
	req.Revision = expectedRevision(c, req.Revision)
	if err := h.aulas.Delete(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Sessions godoc
// @Summary List the sessions of an aula
// @Tags Sessions
// @Produce json
// @Param id path string true "Aula ID"
// @Success 200 {object} response.Envelope
// @Router /aulas/{id}/sessions [get]
func (h *AulaHandler) Sessions(c *gin.Context) {
	sessions, err := h.aulas.Sessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Export godoc
// @Summary Download the session calendar
// @Tags Sessions
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Aula ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /aulas/{id}/sessions/export [get]
func (h *AulaHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	format := service.ExportFormat(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "csv"))))
	file, err := h.exporter.ExportSessions(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// RefreshState godoc
// @Summary Recompute and store the derived state of an aula
// @Tags Aulas
// @Produce json
// @Param id path string true "Aula ID"
// @Success 200 {object} response.Envelope
// @Router /aulas/{id}/state/refresh [post]
func (h *AulaHandler) RefreshState(c *gin.Context) {
	if h.state == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	result, err := h.state.Refresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
