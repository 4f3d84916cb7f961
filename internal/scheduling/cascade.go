package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
)

// RescheduleInput describes moving one session of an aula to a new date.
type RescheduleInput struct {
	Aula     models.Aula
	Sessions []models.Session
	TargetID string
	NewDate  time.Time
	Weekdays Weekdays
	Now      time.Time
}

// ReschedulePlan lists every session that must be written, target first.
type ReschedulePlan struct {
	Target       models.Session
	OriginalDate time.Time
	Updated      []models.Session
	EndDate      time.Time
}

func sortedCopy(sessions []models.Session) []models.Session {
	out := make([]models.Session, len(sessions))
	copy(out, sessions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func indexOf(sessions []models.Session, id string) int {
	for i, s := range sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// PlanReschedule moves the target to NewDate and regenerates the dates of
// every later session from the day after NewDate. Completed sessions are left
// untouched and do not consume a date.
func (g *Generator) PlanReschedule(in RescheduleInput) (ReschedulePlan, error) {
	sessions := sortedCopy(in.Sessions)
	idx := indexOf(sessions, in.TargetID)
	if idx < 0 {
		return ReschedulePlan{}, ErrSessionNotFound
	}
	target := sessions[idx]
	if IsCompleted(target, in.Now) {
		return ReschedulePlan{}, fmt.Errorf("session %d: %w", target.Number, ErrSessionCompleted)
	}

	newDate := g.clock.DateOf(in.NewDate)
	if !g.calendar.IsSchedulable(newDate, in.Weekdays) {
		return ReschedulePlan{}, fmt.Errorf("%s: %w", g.clock.FormatDate(newDate), ErrNotSchedulable)
	}
	if idx > 0 && !newDate.After(g.clock.DateOf(sessions[idx-1].Date)) {
		return ReschedulePlan{}, fmt.Errorf("%s: %w", g.clock.FormatDate(newDate), ErrDateOutOfOrder)
	}
	startsAt, endsAt, err := g.SessionTimes(newDate, in.Aula.StartTime, in.Aula.EndTime)
	if err != nil {
		return ReschedulePlan{}, err
	}
	if !endsAt.After(in.Now) {
		return ReschedulePlan{}, fmt.Errorf("%s: %w", g.clock.FormatDate(newDate), ErrDateInPast)
	}

	plan := ReschedulePlan{OriginalDate: target.Date}
	target.Date = newDate
	target.StartsAt = startsAt
	target.EndsAt = endsAt
	target.Status = models.SessionStatusRescheduled
	sessions[idx] = target
	plan.Target = target
	plan.Updated = append(plan.Updated, target)

	cursor := g.clock.AddDays(newDate, 1)
	for i := idx + 1; i < len(sessions); i++ {
		s := sessions[i]
		if IsCompleted(s, in.Now) {
			continue
		}
		date, ok := g.calendar.NextSchedulableDate(cursor, in.Weekdays, g.horizonDays)
		if !ok {
			return ReschedulePlan{}, fmt.Errorf("session %d: %w", s.Number, ErrHorizonExhausted)
		}
		s.StartsAt, s.EndsAt, err = g.SessionTimes(date, in.Aula.StartTime, in.Aula.EndTime)
		if err != nil {
			return ReschedulePlan{}, err
		}
		s.Date = date
		sessions[i] = s
		plan.Updated = append(plan.Updated, s)
		cursor = g.clock.AddDays(date, 1)
	}

	plan.EndDate = LatestDate(sessions)
	return plan, nil
}

// FutureUpdateInput applies new times and/or a new teacher to pending sessions.
type FutureUpdateInput struct {
	Sessions     []models.Session
	StartTime    string
	EndTime      string
	NewTeacherID *string
	Now          time.Time
}

// PlanFutureSessionUpdate re-derives start and end of every session that has
// not completed yet, keeping its date. The new teacher is tagged only on
// sessions without an override teacher and not under replacement.
func (g *Generator) PlanFutureSessionUpdate(in FutureUpdateInput) ([]models.Session, error) {
	var updated []models.Session
	for _, s := range sortedCopy(in.Sessions) {
		if IsCompleted(s, in.Now) {
			continue
		}
		startsAt, endsAt, err := g.SessionTimes(s.Date, in.StartTime, in.EndTime)
		if err != nil {
			return nil, err
		}
		s.StartsAt = startsAt
		s.EndsAt = endsAt
		if in.NewTeacherID != nil && s.OverrideTeacherID == nil && s.Status != models.SessionStatusReplacement {
			teacherID := *in.NewTeacherID
			s.AssignedTeacherID = &teacherID
		}
		updated = append(updated, s)
	}
	return updated, nil
}

// PlanReplacement assigns a substitute teacher to one pending session.
func PlanReplacement(sessions []models.Session, targetID, teacherID string, now time.Time) (models.Session, error) {
	idx := indexOf(sessions, targetID)
	if idx < 0 {
		return models.Session{}, ErrSessionNotFound
	}
	s := sessions[idx]
	if IsCompleted(s, now) {
		return models.Session{}, fmt.Errorf("session %d: %w", s.Number, ErrSessionCompleted)
	}
	s.Status = models.SessionStatusReplacement
	s.OverrideTeacherID = &teacherID
	return s, nil
}

// LatestDate returns the maximum session date, or the zero time when empty.
func LatestDate(sessions []models.Session) time.Time {
	var latest time.Time
	for _, s := range sessions {
		if s.Date.After(latest) {
			latest = s.Date
		}
	}
	return latest
}
