package scheduling

import (
	"time"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
)

// DerivedState is the calculator's output: either a concrete state or NoChange,
// meaning whatever is stored (possibly a manual override) stays.
type DerivedState struct {
	state models.AulaState
	set   bool
}

// NoChange keeps the stored state.
func NoChange() DerivedState {
	return DerivedState{}
}

// Derived wraps a concrete state.
func Derived(state models.AulaState) DerivedState {
	return DerivedState{state: state, set: true}
}

// Get returns the state and whether one was derived.
func (d DerivedState) Get() (models.AulaState, bool) {
	return d.state, d.set
}

// IsNoChange reports whether the calculator had nothing to say.
func (d DerivedState) IsNoChange() bool {
	return !d.set
}

// Differs reports whether applying d would change stored.
func (d DerivedState) Differs(stored models.AulaState) bool {
	return d.set && d.state != stored
}

func (d DerivedState) String() string {
	if !d.set {
		return "no-change"
	}
	return string(d.state)
}

// StateInput carries what the calculator needs about an aula.
type StateInput struct {
	StartDate         *time.Time
	StartTime         string
	EndDate           *time.Time
	EndTime           string
	SessionsTotal     int
	SessionsCompleted int
}

// StateInputFor builds the calculator input for an aula and its sessions.
// The total is the aula's planned count; stored sessions only stand in when
// no plan was recorded.
func StateInputFor(aula models.Aula, sessions []models.Session, now time.Time) StateInput {
	total := aula.TotalSessions
	if total == 0 {
		total = len(sessions)
	}
	in := StateInput{
		StartTime:         aula.StartTime,
		EndDate:           aula.EndDate,
		EndTime:           aula.EndTime,
		SessionsTotal:     total,
		SessionsCompleted: CountCompleted(sessions, now),
	}
	if !aula.StartDate.IsZero() {
		start := aula.StartDate
		in.StartDate = &start
	}
	return in
}

// ComputeState derives the lifecycle state at now. All sessions completed wins
// over any date comparison.
func ComputeState(clk *clock.Clock, now time.Time, in StateInput) DerivedState {
	if in.SessionsTotal > 0 && in.SessionsCompleted == in.SessionsTotal {
		return Derived(models.AulaStateFinished)
	}
	if in.StartDate == nil || in.EndDate == nil || in.StartTime == "" || in.EndTime == "" {
		return NoChange()
	}

	start, err := clk.Combine(*in.StartDate, in.StartTime)
	if err != nil {
		return NoChange()
	}
	end, err := clk.Combine(*in.EndDate, in.EndTime)
	if err != nil {
		return NoChange()
	}

	switch {
	case now.Before(start):
		return Derived(models.AulaStateUpcoming)
	case now.After(end):
		return Derived(models.AulaStateFinished)
	default:
		return Derived(models.AulaStateInProgress)
	}
}

// IsCompleted is true once now is strictly after the session's end.
func IsCompleted(session models.Session, now time.Time) bool {
	return now.After(session.EndsAt)
}

// CountCompleted counts completed sessions.
func CountCompleted(sessions []models.Session, now time.Time) int {
	n := 0
	for _, s := range sessions {
		if IsCompleted(s, now) {
			n++
		}
	}
	return n
}

// CanAdvanceOrClose reports whether a cycle is over: every session completed,
// or the end instant has passed.
func CanAdvanceOrClose(clk *clock.Clock, now time.Time, in StateInput) bool {
	if in.SessionsTotal > 0 && in.SessionsCompleted == in.SessionsTotal {
		return true
	}
	if in.EndDate == nil || in.EndTime == "" {
		return false
	}
	end, err := clk.Combine(*in.EndDate, in.EndTime)
	if err != nil {
		return false
	}
	return now.After(end)
}
