package recurrence

import (
	"time"

	"github.com/choreguild/choreguild/pkg/cerr"
)

// maxIterations bounds the search for the next due instant so pathological
// specs fail fast instead of looping.
const maxIterations = 1000

// Calculator computes due instants in a canonical calendar timezone.
type Calculator struct {
	loc *time.Location
}

func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{loc: loc}
}

func (c *Calculator) Location() *time.Location {
	return c.loc
}

// NextDue returns the first due instant strictly after ref. ref is the
// previous due timestamp, or the completion timestamp for
// completion-anchored specs.
func (c *Calculator) NextDue(spec Spec, ref time.Time) (time.Time, error) {
	if err := spec.Validate(); err != nil {
		return time.Time{}, err
	}
	if !spec.Recurring() {
		return time.Time{}, cerr.NewError(cerr.FailedPrecondition,
			"schedule does not recur", ErrNoNextDate)
	}

	step, err := c.stepFunc(spec)
	if err != nil {
		return time.Time{}, err
	}

	next := ref.In(c.loc)
	for i := 0; i < maxIterations; i++ {
		next = step(next)
		if next.After(ref) {
			return next, nil
		}
	}
	return time.Time{}, cerr.NewError(cerr.OutOfRange,
		"no valid due date within the iteration bound", ErrNoNextDate)
}

func (c *Calculator) stepFunc(spec Spec) (func(time.Time) time.Time, error) {
	switch spec.Frequency {
	case FreqDaily:
		return func(t time.Time) time.Time { return c.addDays(t, 1) }, nil
	case FreqWeekly:
		return func(t time.Time) time.Time { return c.addDays(t, 7) }, nil
	case FreqMonthly:
		return func(t time.Time) time.Time { return c.addMonthsClamped(t, 1) }, nil
	case FreqInterval:
		switch spec.Unit {
		case UnitHours:
			d := time.Duration(spec.Interval) * time.Hour
			return func(t time.Time) time.Time { return t.Add(d) }, nil
		case UnitDays:
			return func(t time.Time) time.Time { return c.addDays(t, spec.Interval) }, nil
		case UnitWeeks:
			return func(t time.Time) time.Time { return c.addDays(t, 7*spec.Interval) }, nil
		case UnitMonths:
			return func(t time.Time) time.Time { return c.addMonthsClamped(t, spec.Interval) }, nil
		}
	case FreqTimesPerDay:
		slots, err := parseSlots(spec.Times)
		if err != nil {
			return nil, err
		}
		return func(t time.Time) time.Time { return c.nextSlot(t, slots) }, nil
	}
	return nil, cerr.NewError(cerr.InvalidArgument, "unsupported frequency", ErrInvalidSpec)
}

// addDays steps by whole calendar days, preserving the wall-clock time of
// day across DST transitions. time.Date normalizes a nonexistent wall time
// (spring-forward gap) onto the following valid instant.
func (c *Calculator) addDays(t time.Time, days int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d+days, hh, mm, ss, t.Nanosecond(), c.loc)
}

// addMonthsClamped steps by calendar months, clamping the day of month to
// the last valid day of the target month (Jan 31 + 1 month -> Feb 28/29).
func (c *Calculator) addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	first := time.Date(y, m+time.Month(months), 1, hh, mm, ss, t.Nanosecond(), c.loc)
	if last := daysInMonth(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), c.loc)
}

// nextSlot returns the next unconsumed time-of-day slot strictly after t,
// wrapping to the first slot of the following day.
func (c *Calculator) nextSlot(t time.Time, slots []slot) time.Time {
	y, m, d := t.In(c.loc).Date()
	for _, s := range slots {
		candidate := time.Date(y, m, d, s.hour, s.minute, 0, 0, c.loc)
		if candidate.After(t) {
			return candidate
		}
	}
	first := slots[0]
	return time.Date(y, m, d+1, first.hour, first.minute, 0, 0, c.loc)
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
