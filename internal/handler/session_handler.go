package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sfd-aulas-api/internal/dto"
	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/pkg/response"
)

type sessionService interface {
	Reschedule(ctx context.Context, aulaID, sessionID string, req dto.RescheduleSessionRequest, actor string) (*dto.SessionChangeResult, error)
	AssignReplacement(ctx context.Context, aulaID, sessionID string, req dto.ReplacementRequest, actor string) (*dto.SessionChangeResult, error)
	Incidents(ctx context.Context, aulaID string) ([]models.Incident, error)
}

// SessionHandler exposes session level changes.
type SessionHandler struct {
	sessions sessionService
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions sessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Reschedule godoc
// @Summary Move a session and cascade the following ones
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Aula ID"
// @Param sessionId path string true "Session ID"
// @Param If-Match header string false "Expected revision"
// @Param payload body dto.RescheduleSessionRequest true "Reschedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /aulas/{id}/sessions/{sessionId}/reschedule [post]
func (h *SessionHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleSessionRequest
	if !bindJSON(c, &req, "invalid reschedule payload") {
		return
	}
	req.Revision = expectedRevision(c, req.Revision)
	result, err := h.sessions.Reschedule(c.Request.Context(), c.Param("id"), c.Param("sessionId"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SetRevision(c, result.Revision)
	response.JSON(c, http.StatusOK, result, nil)
}

// Replacement godoc
// @Summary Assign a substitute teacher to one session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Aula ID"
// @Param sessionId path string true "Session ID"
// @Param If-Match header string false "Expected revision"
// @Param payload body dto.ReplacementRequest true "Replacement payload"
// @Success 200 {object} response.Envelope
// @Router /aulas/{id}/sessions/{sessionId}/replacement [post]
func (h *SessionHandler) Replacement(c *gin.Context) {
	var req dto.ReplacementRequest
	if !bindJSON(c, &req, "invalid replacement payload") {
		return
	}
	req.Revision = expectedRevision(c, req.Revision)
	result, err := h.sessions.AssignReplacement(c.Request.Context(), c.Param("id"), c.Param("sessionId"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SetRevision(c, result.Revision)
	response.JSON(c, http.StatusOK, result, nil)
}

// Incidents godoc
// @Summary List reschedule and replacement incidents of an aula
// @Tags Sessions
// @Produce json
// @Param id path string true "Aula ID"
// @Success 200 {object} response.Envelope
// @Router /aulas/{id}/incidents [get]
func (h *SessionHandler) Incidents(c *gin.Context) {
	incidents, err := h.sessions.Incidents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, incidents, nil)
}
