package scheduling

import "errors"

var (
	// ErrUnknownProgram is returned when a program name is not in the catalog.
	ErrUnknownProgram = errors.New("unknown program")
	// ErrUnknownFrequency is returned for frequency labels with no weekday mapping.
	ErrUnknownFrequency = errors.New("unknown frequency")
	// ErrInvalidCycle is returned when a cycle is outside the program's cycle list.
	ErrInvalidCycle = errors.New("invalid cycle")
	// ErrInvalidTimeRange is returned when a session would not end after it starts.
	ErrInvalidTimeRange = errors.New("end time must be after start time")
	// ErrNotSchedulable is returned when a date falls on a holiday or outside the frequency.
	ErrNotSchedulable = errors.New("date is not schedulable")
	// ErrSessionNotFound is returned when the target session is not part of the aula.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCompleted is returned when a mutation targets a session that already ended.
	ErrSessionCompleted = errors.New("session already completed")
	// ErrDateOutOfOrder is returned when a new date would not keep sessions ordered by date.
	ErrDateOutOfOrder = errors.New("date must be after the previous session")
	// ErrDateInPast is returned when a new date would end before the current instant.
	ErrDateInPast = errors.New("date is in the past")
	// ErrHorizonExhausted is returned when no schedulable date exists inside the search horizon.
	ErrHorizonExhausted = errors.New("no schedulable date within horizon")
)
