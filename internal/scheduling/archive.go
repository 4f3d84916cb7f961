package scheduling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
)

// NextCycleGapDays separates the last session of a cycle from the suggested
// first day of the next one.
const NextCycleGapDays = 2

// BuildArchive snapshots an aula and all of its sessions.
func BuildArchive(id string, aula models.Aula, sessions []models.Session, reason string, at time.Time) (models.AulaArchive, error) {
	aulaJSON, err := json.Marshal(aula)
	if err != nil {
		return models.AulaArchive{}, fmt.Errorf("marshal aula snapshot: %w", err)
	}
	ordered := sortedCopy(sessions)
	sessionsJSON, err := json.Marshal(ordered)
	if err != nil {
		return models.AulaArchive{}, fmt.Errorf("marshal sessions snapshot: %w", err)
	}
	return models.AulaArchive{
		ID:           id,
		AulaID:       aula.ID,
		Code:         aula.Code,
		Program:      aula.Program,
		Cycle:        aula.Cycle,
		Reason:       reason,
		Aula:         types.JSONText(aulaJSON),
		Sessions:     types.JSONText(sessionsJSON),
		SessionCount: len(ordered),
		ArchivedAt:   at,
	}, nil
}

// SuggestNextCycleStart proposes the start of the next cycle two days after
// the last session, falling back to the aula's end date and then today.
func SuggestNextCycleStart(clk *clock.Clock, aula models.Aula, sessions []models.Session) time.Time {
	last := LatestDate(sessions)
	if last.IsZero() && aula.EndDate != nil {
		last = *aula.EndDate
	}
	if last.IsZero() {
		return clk.Today()
	}
	return clk.AddDays(last, NextCycleGapDays)
}
