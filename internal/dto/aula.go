package dto

import (
	"time"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
)

// CreateAulaRequest opens a new aula and generates its first cycle.
type CreateAulaRequest struct {
	Code      string `json:"code" validate:"required,max=64"`
	Program   string `json:"program" validate:"required"`
	Cycle     int    `json:"cycle" validate:"required,min=1"`
	Frequency string `json:"frequency" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
	StartDate string `json:"start_date" validate:"required,isodate"`
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`
}

// UpdateAulaRequest edits mutable aula fields. Time or teacher changes are
// propagated to every session that has not happened yet. State stores a
// manual value as given until the next refresh derives a state; an empty
// string or "auto" derives it right away.
type UpdateAulaRequest struct {
	Code      *string `json:"code" validate:"omitempty,max=64"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,min=1"`
	StartTime *string `json:"start_time" validate:"omitempty,hhmm"`
	EndTime   *string `json:"end_time" validate:"omitempty,hhmm"`
	State     *string `json:"state" validate:"omitempty,max=40"`
	Revision  *int    `json:"revision" validate:"omitempty,min=1"`
}

// DeleteAulaRequest carries the optional expected revision.
type DeleteAulaRequest struct {
	Revision *int `json:"revision" validate:"omitempty,min=1"`
}

// AulaQuery captures list filters from the query string.
type AulaQuery struct {
	Program   string `form:"program"`
	State     string `form:"state"`
	TeacherID string `form:"teacher_id"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

// AulaSnapshot is what gets cached for an aula: stored records only, derived
// fields are recomputed on every read.
type AulaSnapshot struct {
	Aula     models.Aula      `json:"aula"`
	Sessions []models.Session `json:"sessions"`
}

// AulaDetail is the read model returned for a single aula.
type AulaDetail struct {
	models.Aula
	Sessions          []models.Session `json:"sessions"`
	SessionsCompleted int              `json:"sessions_completed"`
	DerivedState      *string          `json:"derived_state"`
	ManualOverride    bool             `json:"manual_override"`
	CanAdvanceOrClose bool             `json:"can_advance_or_close"`
	MaxCycle          int              `json:"max_cycle"`
}

// AulaListResult is the cached list payload.
type AulaListResult struct {
	Items []models.Aula `json:"items"`
	Total int           `json:"total"`
}

// RescheduleSessionRequest moves one session to a new date.
type RescheduleSessionRequest struct {
	NewDate  string `json:"new_date" validate:"required,isodate"`
	Reason   string `json:"reason" validate:"omitempty,max=500"`
	Revision *int   `json:"revision" validate:"omitempty,min=1"`
}

// ReplacementRequest assigns a substitute teacher to one session.
type ReplacementRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Reason    string `json:"reason" validate:"omitempty,max=500"`
	Revision  *int   `json:"revision" validate:"omitempty,min=1"`
}

// SessionChangeResult reports a committed session mutation.
type SessionChangeResult struct {
	Session  models.Session   `json:"session"`
	Shifted  []models.Session `json:"shifted"`
	EndDate  *time.Time       `json:"end_date"`
	Revision int              `json:"revision"`
	Incident models.Incident  `json:"incident"`
}

// StateRefreshResult reports the outcome of a derived-state refresh.
type StateRefreshResult struct {
	AulaID   string           `json:"aula_id"`
	Previous models.AulaState `json:"previous"`
	Current  models.AulaState `json:"current"`
	Changed  bool             `json:"changed"`
	Skipped  string           `json:"skipped,omitempty"`
}
