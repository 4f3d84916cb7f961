package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sfd-aulas-api/internal/dto"
	"github.com/noah-isme/sfd-aulas-api/internal/models"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/response"
)

type cycleService interface {
	Preview(ctx context.Context, id string) (*dto.AdvancePreview, error)
	Advance(ctx context.Context, id string, req dto.AdvanceCycleRequest, actor string) (*dto.AulaDetail, error)
	Close(ctx context.Context, id string, req dto.CloseAulaRequest, actor string) (*models.AulaArchive, error)
	ListArchives(ctx context.Context, query dto.ArchiveQuery) ([]models.AulaArchive, *models.Pagination, error)
	GetArchive(ctx context.Context, id string) (*models.AulaArchive, error)
}

// CycleHandler exposes cycle advancement, closure and the archive.
type CycleHandler struct {
	cycles cycleService
}

// NewCycleHandler constructs a CycleHandler.
func NewCycleHandler(cycles cycleService) *CycleHandler {
	return &CycleHandler{cycles: cycles}
}

// Preview godoc
// @Summary Preview advancing an aula to its next cycle
// @Tags Cycles
// @Produce json
// @Param id path string true "Aula ID"
// @Success 200 {object} response.Envelope
// @Router /aulas/{id}/advance/preview [get]
func (h *CycleHandler) Preview(c *gin.Context) {
	preview, err := h.cycles.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SetRevision(c, preview.Revision)
	response.JSON(c, http.StatusOK, preview, nil)
}

// Advance godoc
// @Summary Archive the finished cycle and generate the next one
// @Tags Cycles
// @Accept json
// @Produce json
// @Param id path string true "Aula ID"
// @Param If-Match header string false "Expected revision"
// @Param payload body dto.AdvanceCycleRequest false "Advance overrides"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /aulas/{id}/advance [post]
func (h *CycleHandler) Advance(c *gin.Context) {
	var req dto.AdvanceCycleRequest
	if !bindOptionalJSON(c, &req, "invalid advance payload") {
		return
	}
	req.Revision = expectedRevision(c, req.Revision)
	detail, err := h.cycles.Advance(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SetRevision(c, detail.Revision)
	response.JSON(c, http.StatusOK, detail, nil)
}

// Close godoc
// @Summary Archive and remove a finished aula
// @Tags Cycles
// @Produce json
// @Param id path string true "Aula ID"
// @Param If-Match header string false "Expected revision"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /aulas/{id}/close [post]
func (h *CycleHandler) Close(c *gin.Context) {
	var req dto.CloseAulaRequest
	if !bindOptionalJSON(c, &req, "invalid close payload") {
		return
	}
	req.Revision = expectedRevision(c, req.Revision)
	archive, err := h.cycles.Close(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archive, nil)
}

// ListArchives godoc
// @Summary List archived cycles
// @Tags Archives
// @Produce json
// @Param aula_id query string false "Aula ID"
// @Param program query string false "Program name"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /archives [get]
func (h *CycleHandler) ListArchives(c *gin.Context) {
	var query dto.ArchiveQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	archives, pagination, err := h.cycles.ListArchives(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archives, pagination)
}

// GetArchive godoc
// @Summary Get one archive with its snapshots
// @Tags Archives
// @Produce json
// @Param id path string true "Archive ID"
// @Success 200 {object} response.Envelope
// @Router /archives/{id} [get]
func (h *CycleHandler) GetArchive(c *gin.Context) {
	archive, err := h.cycles.GetArchive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archive, nil)
}
