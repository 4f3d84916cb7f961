package dto

import "time"

// AdvanceCycleRequest moves an aula to its next cycle. Omitted fields keep the
// current teacher and times; the start date defaults to the suggested one.
type AdvanceCycleRequest struct {
	TeacherID string `json:"teacher_id"`
	StartDate string `json:"start_date" validate:"omitempty,isodate"`
	StartTime string `json:"start_time" validate:"omitempty,hhmm"`
	EndTime   string `json:"end_time" validate:"omitempty,hhmm"`
	Revision  *int   `json:"revision" validate:"omitempty,min=1"`
}

// CloseAulaRequest closes an aula permanently.
type CloseAulaRequest struct {
	Revision *int `json:"revision" validate:"omitempty,min=1"`
}

// AdvancePreview describes what advancing would do without writing anything.
type AdvancePreview struct {
	AulaID             string     `json:"aula_id"`
	CurrentCycle       int        `json:"current_cycle"`
	NextCycle          int        `json:"next_cycle"`
	MaxCycle           int        `json:"max_cycle"`
	TeacherID          string     `json:"teacher_id"`
	Frequency          string     `json:"frequency"`
	StartTime          string     `json:"start_time"`
	EndTime            string     `json:"end_time"`
	SuggestedStartDate string     `json:"suggested_start_date"`
	TotalSessions      int        `json:"total_sessions"`
	ProjectedEndDate   *time.Time `json:"projected_end_date"`
	CanAdvance         bool       `json:"can_advance"`
	Blockers           []string   `json:"blockers"`
	Revision           int        `json:"revision"`
}

// ArchiveQuery captures archive list filters.
type ArchiveQuery struct {
	AulaID   string `form:"aula_id"`
	Program  string `form:"program"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
