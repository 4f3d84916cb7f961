package models

import "time"

// IncidentType classifies a recorded change to a session.
type IncidentType string

const (
	IncidentTypeReschedule  IncidentType = "reschedule"
	IncidentTypeReplacement IncidentType = "replacement"
)

// IncidentStatusApproved is the only status operators can record today.
const IncidentStatusApproved = "approved"

// Incident logs a reschedule or teacher replacement applied to a session.
type Incident struct {
	ID                   string       `db:"id" json:"id"`
	AulaID               string       `db:"aula_id" json:"aula_id"`
	AulaCode             string       `db:"aula_code" json:"aula_code"`
	SessionID            string       `db:"session_id" json:"session_id"`
	SessionNumber        int          `db:"session_number" json:"session_number"`
	Type                 IncidentType `db:"type" json:"type"`
	OriginalDate         time.Time    `db:"original_date" json:"original_date"`
	NewDate              *time.Time   `db:"new_date" json:"new_date,omitempty"`
	ReplacementTeacherID *string      `db:"replacement_teacher_id" json:"replacement_teacher_id,omitempty"`
	Reason               string       `db:"reason" json:"reason"`
	Status               string       `db:"status" json:"status"`
	RegisteredBy         string       `db:"registered_by" json:"registered_by"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
}
