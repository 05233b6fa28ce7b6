// Package recurrence computes the next due instant for a chore schedule.
// All calendar arithmetic happens in a canonical timezone so month
// boundaries, leap years, and DST transitions behave like a wall calendar.
package recurrence

import (
	"errors"
	"fmt"
	"sort"

	"github.com/choreguild/choreguild/pkg/cerr"
)

// Frequency identifies the schedule family.
type Frequency string

const (
	FreqNone        Frequency = "none"
	FreqDaily       Frequency = "daily"
	FreqWeekly      Frequency = "weekly"
	FreqMonthly     Frequency = "monthly"
	FreqInterval    Frequency = "interval"
	FreqTimesPerDay Frequency = "times_per_day"
)

// Unit is the step unit for FreqInterval schedules.
type Unit string

const (
	UnitHours  Unit = "hours"
	UnitDays   Unit = "days"
	UnitWeeks  Unit = "weeks"
	UnitMonths Unit = "months"
)

// Sentinel causes, wrapped into cerr errors by the calculator.
var (
	ErrInvalidSpec = errors.New("invalid schedule spec")
	ErrNoNextDate  = errors.New("no representable next date")
)

// Spec describes a recurrence schedule.
type Spec struct {
	Frequency Frequency `yaml:"frequency" json:"frequency"`
	// Interval and Unit apply when Frequency == FreqInterval.
	Interval int  `yaml:"interval,omitempty" json:"interval,omitempty"`
	Unit     Unit `yaml:"unit,omitempty" json:"unit,omitempty"`
	// Times lists "HH:MM" time-of-day slots for FreqTimesPerDay.
	Times []string `yaml:"times,omitempty" json:"times,omitempty"`
	// FromCompletion anchors the next due date to the actual completion
	// timestamp instead of the previous due date.
	FromCompletion bool `yaml:"from_completion,omitempty" json:"from_completion,omitempty"`
}

// Recurring reports whether the spec produces future due dates.
func (s Spec) Recurring() bool {
	return s.Frequency != "" && s.Frequency != FreqNone
}

// Validate rejects malformed specs with a configuration error.
func (s Spec) Validate() error {
	switch s.Frequency {
	case "", FreqNone, FreqDaily, FreqWeekly, FreqMonthly:
	case FreqInterval:
		if s.Interval < 1 {
			return cerr.NewError(cerr.InvalidArgument,
				fmt.Sprintf("interval must be at least 1, got %d", s.Interval), ErrInvalidSpec)
		}
		switch s.Unit {
		case UnitHours, UnitDays, UnitWeeks, UnitMonths:
		default:
			return cerr.NewError(cerr.InvalidArgument,
				fmt.Sprintf("unknown interval unit %q", s.Unit), ErrInvalidSpec)
		}
	case FreqTimesPerDay:
		if len(s.Times) == 0 {
			return cerr.NewError(cerr.InvalidArgument,
				"times_per_day schedule needs at least one time slot", ErrInvalidSpec)
		}
		if _, err := parseSlots(s.Times); err != nil {
			return err
		}
	default:
		return cerr.NewError(cerr.InvalidArgument,
			fmt.Sprintf("unknown frequency %q", s.Frequency), ErrInvalidSpec)
	}
	return nil
}

type slot struct {
	hour, minute int
}

func parseSlots(times []string) ([]slot, error) {
	slots := make([]slot, 0, len(times))
	for _, raw := range times {
		var h, m int
		if _, err := fmt.Sscanf(raw, "%d:%d", &h, &m); err != nil {
			return nil, cerr.NewError(cerr.InvalidArgument,
				fmt.Sprintf("malformed time slot %q, want HH:MM", raw), ErrInvalidSpec)
		}
		if h < 0 || h > 23 || m < 0 || m > 59 {
			return nil, cerr.NewError(cerr.InvalidArgument,
				fmt.Sprintf("time slot %q out of range", raw), ErrInvalidSpec)
		}
		slots = append(slots, slot{hour: h, minute: m})
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].hour != slots[j].hour {
			return slots[i].hour < slots[j].hour
		}
		return slots[i].minute < slots[j].minute
	})
	return slots, nil
}
