package models

import "time"

// AulaState is the lifecycle state stored on an aula. Values outside the
// derived set are manual overrides set by an operator.
type AulaState string

const (
	AulaStateUpcoming   AulaState = "upcoming"
	AulaStateInProgress AulaState = "in-progress"
	AulaStateFinished   AulaState = "finished"
)

// IsDerived reports whether the state is one the calculator can produce.
func (s AulaState) IsDerived() bool {
	switch s {
	case AulaStateUpcoming, AulaStateInProgress, AulaStateFinished:
		return true
	default:
		return false
	}
}

// Aula is a scheduled class section with a fixed teacher, program, cycle and frequency.
type Aula struct {
	ID            string     `db:"id" json:"id"`
	Code          string     `db:"code" json:"code"`
	Program       string     `db:"program" json:"program"`
	Cycle         int        `db:"cycle" json:"cycle"`
	Frequency     string     `db:"frequency" json:"frequency"`
	TeacherID     string     `db:"teacher_id" json:"teacher_id"`
	StartDate     time.Time  `db:"start_date" json:"start_date"`
	EndDate       *time.Time `db:"end_date" json:"end_date,omitempty"`
	StartTime     string     `db:"start_time" json:"start_time"`
	EndTime       string     `db:"end_time" json:"end_time"`
	TotalSessions int        `db:"total_sessions" json:"total_sessions"`
	State         AulaState  `db:"state" json:"state"`
	Revision      int        `db:"revision" json:"revision"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// AulaFilter narrows aula listings.
type AulaFilter struct {
	Program   string
	State     string
	TeacherID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
