package models

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ArchiveReasonManualClosure tags archives written when an operator closes an aula.
const ArchiveReasonManualClosure = "manual closure"

// CycleAdvanceReason tags archives written when an aula moves to its next cycle.
func CycleAdvanceReason(from, to int) string {
	return fmt.Sprintf("cycle advance %d→%d", from, to)
}

// AulaArchive is an immutable snapshot of an aula and every session of one cycle.
type AulaArchive struct {
	ID           string         `db:"id" json:"id"`
	AulaID       string         `db:"aula_id" json:"aula_id"`
	Code         string         `db:"code" json:"code"`
	Program      string         `db:"program" json:"program"`
	Cycle        int            `db:"cycle" json:"cycle"`
	Reason       string         `db:"reason" json:"reason"`
	Aula         types.JSONText `db:"aula" json:"aula"`
	Sessions     types.JSONText `db:"sessions" json:"sessions"`
	SessionCount int            `db:"session_count" json:"session_count"`
	ArchivedAt   time.Time      `db:"archived_at" json:"archived_at"`
}

// ArchiveFilter narrows archive listings.
type ArchiveFilter struct {
	AulaID  string
	Program string
	Limit   int
	Offset  int
}
