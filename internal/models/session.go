package models

import "time"

// SessionStatus tracks what happened to a single class meeting.
type SessionStatus string

const (
	SessionStatusScheduled   SessionStatus = "scheduled"
	SessionStatusRescheduled SessionStatus = "rescheduled"
	SessionStatusReplacement SessionStatus = "replacement-teacher"
)

// Session is one dated meeting of an aula.
type Session struct {
	ID                string        `db:"id" json:"id"`
	AulaID            string        `db:"aula_id" json:"aula_id"`
	Number            int           `db:"number" json:"number"`
	Date              time.Time     `db:"session_date" json:"date"`
	StartsAt          time.Time     `db:"starts_at" json:"starts_at"`
	EndsAt            time.Time     `db:"ends_at" json:"ends_at"`
	Status            SessionStatus `db:"status" json:"status"`
	OverrideTeacherID *string       `db:"override_teacher_id" json:"override_teacher_id,omitempty"`
	AssignedTeacherID *string       `db:"assigned_teacher_id" json:"assigned_teacher_id,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}
