package scheduling

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
)

// DefaultHorizonDays bounds the per-session search for a schedulable day.
const DefaultHorizonDays = 365

// GenerateParams describes one cycle's schedule.
type GenerateParams struct {
	StartDate time.Time
	Weekdays  Weekdays
	Count     int
	StartTime string
	EndTime   string
}

// PlannedSession is a generated session before it gets an identity.
type PlannedSession struct {
	Number   int
	Date     time.Time
	StartsAt time.Time
	EndsAt   time.Time
}

// Plan is the output of Generate. Truncated is set when the horizon ran out
// before Count sessions were found.
type Plan struct {
	Sessions  []PlannedSession
	EndDate   *time.Time
	Truncated bool
}

// Generator produces and rewrites session calendars.
type Generator struct {
	calendar    *Calendar
	clock       *clock.Clock
	horizonDays int
	logger      *zap.Logger
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithHorizonDays overrides the per-session search horizon.
func WithHorizonDays(days int) GeneratorOption {
	return func(g *Generator) {
		if days > 0 {
			g.horizonDays = days
		}
	}
}

// WithLogger sets the logger used for horizon warnings.
func WithLogger(logger *zap.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator builds a generator over the given calendar.
func NewGenerator(calendar *Calendar, opts ...GeneratorOption) *Generator {
	g := &Generator{
		calendar:    calendar,
		clock:       calendar.Clock(),
		horizonDays: DefaultHorizonDays,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Calendar returns the generator's calendar.
func (g *Generator) Calendar() *Calendar {
	return g.calendar
}

// HorizonDays returns the configured search horizon.
func (g *Generator) HorizonDays() int {
	return g.horizonDays
}

// SessionTimes combines date with the start and end times of day.
func (g *Generator) SessionTimes(date time.Time, startTime, endTime string) (time.Time, time.Time, error) {
	startsAt, err := g.clock.Combine(date, startTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start time: %w", err)
	}
	endsAt, err := g.clock.Combine(date, endTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end time: %w", err)
	}
	if !endsAt.After(startsAt) {
		return time.Time{}, time.Time{}, ErrInvalidTimeRange
	}
	return startsAt, endsAt, nil
}

// Generate walks forward from StartDate accepting every schedulable day until
// Count sessions exist.
func (g *Generator) Generate(params GenerateParams) (Plan, error) {
	if params.Count <= 0 {
		return Plan{}, fmt.Errorf("session count must be positive, got %d", params.Count)
	}
	if params.Weekdays.Empty() {
		return Plan{}, ErrUnknownFrequency
	}
	if _, _, err := g.SessionTimes(params.StartDate, params.StartTime, params.EndTime); err != nil {
		return Plan{}, err
	}

	plan := Plan{Sessions: make([]PlannedSession, 0, params.Count)}
	cursor := g.clock.DateOf(params.StartDate)
	for number := 1; number <= params.Count; number++ {
		date, ok := g.calendar.NextSchedulableDate(cursor, params.Weekdays, g.horizonDays)
		if !ok {
			g.logger.Warn("session search horizon exhausted",
				zap.Int("session_number", number),
				zap.String("cursor", g.clock.FormatDate(cursor)),
				zap.Int("horizon_days", g.horizonDays),
				zap.Int("generated", len(plan.Sessions)),
			)
			plan.Truncated = true
			break
		}
		startsAt, endsAt, err := g.SessionTimes(date, params.StartTime, params.EndTime)
		if err != nil {
			return Plan{}, err
		}
		plan.Sessions = append(plan.Sessions, PlannedSession{
			Number:   number,
			Date:     date,
			StartsAt: startsAt,
			EndsAt:   endsAt,
		})
		cursor = g.clock.AddDays(date, 1)
	}

	if n := len(plan.Sessions); n > 0 {
		end := plan.Sessions[n-1].Date
		plan.EndDate = &end
	}
	return plan, nil
}

// Materialize turns a plan into session records for aulaID. newID supplies
// identifiers.
func (p Plan) Materialize(aulaID string, newID func() string, now time.Time) []models.Session {
	sessions := make([]models.Session, 0, len(p.Sessions))
	for _, ps := range p.Sessions {
		sessions = append(sessions, models.Session{
			ID:        newID(),
			AulaID:    aulaID,
			Number:    ps.Number,
			Date:      ps.Date,
			StartsAt:  ps.StartsAt,
			EndsAt:    ps.EndsAt,
			Status:    models.SessionStatusScheduled,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return sessions
}
