package domain

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive window of calendar days in UTC. Start and End
// are normalized to UTC midnight by the constructors.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange builds a range from two instants, truncated to their UTC
// calendar days. Returns ErrInvalidRange when start falls after end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: startOfDay(start), End: startOfDay(end)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// ParseDateRange builds a range from two ISO dates, e.g. "2013-03-30".
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse start date %q: %w", start, err)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse end date %q: %w", end, err)
	}
	return NewDateRange(s, e)
}

// Validate returns ErrInvalidRange when the range is inverted.
func (r DateRange) Validate() error {
	if r.Start.After(r.End) {
		return fmt.Errorf("start %s after end %s: %w",
			r.Start.Format(dateLayout), r.End.Format(dateLayout), ErrInvalidRange)
	}
	return nil
}

// Contains reports whether ts falls on a calendar day within the range,
// inclusive of both endpoints.
func (r DateRange) Contains(ts time.Time) bool {
	day := startOfDay(ts)
	return !day.Before(r.Start) && !day.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.Format(dateLayout) + ".." + r.End.Format(dateLayout)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
