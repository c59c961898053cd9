package store

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date format used for daily quotas.
const DateLayout = "2006-01-02"

// Clock supplies wall time. Today is evaluated per call, so a step reads it
// once and reuses the value.
type Clock interface {
	Now() time.Time
	Today() string
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Today returns the current UTC calendar date.
func (c SystemClock) Today() string { return c.Now().Format(DateLayout) }

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.At }

// Today returns the fixed instant's calendar date.
func (c FixedClock) Today() string { return c.At.Format(DateLayout) }

// NewID returns a prefixed, time-ordered identifier.
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "_" + id.String()
}
