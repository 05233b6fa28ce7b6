package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestNextDueDaily(t *testing.T) {
	loc := mustLoc(t, "UTC")
	c := NewCalculator(loc)

	ref := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	next, err := c.NextDue(Spec{Frequency: FreqDaily}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, loc), next)
	assert.True(t, next.After(ref))
}

func TestNextDueMonthlyClampsDayOfMonth(t *testing.T) {
	loc := mustLoc(t, "UTC")
	c := NewCalculator(loc)

	ref := time.Date(2026, 1, 31, 18, 0, 0, 0, loc)
	next, err := c.NextDue(Spec{Frequency: FreqMonthly}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 18, 0, 0, 0, loc), next)

	// 2028 is a leap year.
	ref = time.Date(2028, 1, 31, 18, 0, 0, 0, loc)
	next, err = c.NextDue(Spec{Frequency: FreqMonthly}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2028, 2, 29, 18, 0, 0, 0, loc), next)
}

func TestNextDueDailyPreservesWallClockAcrossDST(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	c := NewCalculator(loc)

	// 2026-03-08 is the spring-forward date in the US.
	ref := time.Date(2026, 3, 7, 8, 0, 0, 0, loc)
	next, err := c.NextDue(Spec{Frequency: FreqDaily}, ref)
	require.NoError(t, err)
	assert.Equal(t, 8, next.Hour())
	assert.Equal(t, time.Date(2026, 3, 8, 8, 0, 0, 0, loc), next)
	// only 23 real hours elapsed
	assert.Equal(t, 23*time.Hour, next.Sub(ref))
}

func TestNextDueIntervalUnits(t *testing.T) {
	loc := mustLoc(t, "UTC")
	c := NewCalculator(loc)
	ref := time.Date(2026, 5, 1, 12, 0, 0, 0, loc)

	tests := []struct {
		name string
		spec Spec
		want time.Time
	}{
		{"hours", Spec{Frequency: FreqInterval, Interval: 6, Unit: UnitHours}, ref.Add(6 * time.Hour)},
		{"days", Spec{Frequency: FreqInterval, Interval: 3, Unit: UnitDays}, time.Date(2026, 5, 4, 12, 0, 0, 0, loc)},
		{"weeks", Spec{Frequency: FreqInterval, Interval: 2, Unit: UnitWeeks}, time.Date(2026, 5, 15, 12, 0, 0, 0, loc)},
		{"months", Spec{Frequency: FreqInterval, Interval: 2, Unit: UnitMonths}, time.Date(2026, 7, 1, 12, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := c.NextDue(tt.spec, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestNextDueTimesPerDay(t *testing.T) {
	loc := mustLoc(t, "UTC")
	c := NewCalculator(loc)
	spec := Spec{Frequency: FreqTimesPerDay, Times: []string{"20:00", "08:00"}}

	// before the first slot of the day
	ref := time.Date(2026, 4, 2, 6, 30, 0, 0, loc)
	next, err := c.NextDue(spec, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 2, 8, 0, 0, 0, loc), next)

	// between slots
	next, err = c.NextDue(spec, time.Date(2026, 4, 2, 8, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 2, 20, 0, 0, 0, loc), next)

	// after the last slot wraps to the first slot tomorrow
	next, err = c.NextDue(spec, time.Date(2026, 4, 2, 21, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 3, 8, 0, 0, 0, loc), next)
}

func TestNextDueIsStrictlyAfterRef(t *testing.T) {
	loc := mustLoc(t, "UTC")
	c := NewCalculator(loc)
	spec := Spec{Frequency: FreqTimesPerDay, Times: []string{"08:00"}}

	// ref exactly on a slot must advance to the next occurrence
	ref := time.Date(2026, 4, 2, 8, 0, 0, 0, loc)
	next, err := c.NextDue(spec, ref)
	require.NoError(t, err)
	assert.True(t, next.After(ref))
	assert.Equal(t, time.Date(2026, 4, 3, 8, 0, 0, 0, loc), next)
}

func TestNextDueRejectsNonRecurringSpec(t *testing.T) {
	c := NewCalculator(time.UTC)
	_, err := c.NextDue(Spec{Frequency: FreqNone}, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoNextDate)
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"empty", Spec{}, false},
		{"daily", Spec{Frequency: FreqDaily}, false},
		{"interval missing unit", Spec{Frequency: FreqInterval, Interval: 2}, true},
		{"interval zero", Spec{Frequency: FreqInterval, Interval: 0, Unit: UnitDays}, true},
		{"unknown frequency", Spec{Frequency: "fortnightly"}, true},
		{"times_per_day empty", Spec{Frequency: FreqTimesPerDay}, true},
		{"times_per_day malformed", Spec{Frequency: FreqTimesPerDay, Times: []string{"eight"}}, true},
		{"times_per_day out of range", Spec{Frequency: FreqTimesPerDay, Times: []string{"25:00"}}, true},
		{"times_per_day ok", Spec{Frequency: FreqTimesPerDay, Times: []string{"08:00", "20:30"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSpec)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseSlotsSorted(t *testing.T) {
	slots, err := parseSlots([]string{"20:00", "08:15", "12:00"})
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, slot{hour: 8, minute: 15}, slots[0])
	assert.Equal(t, slot{hour: 20, minute: 0}, slots[2])
}

func TestNextDueMonotonicSequence(t *testing.T) {
	loc := mustLoc(t, "Asia/Tokyo")
	c := NewCalculator(loc)
	spec := Spec{Frequency: FreqMonthly}

	prev := time.Date(2026, 1, 31, 7, 0, 0, 0, loc)
	for i := 0; i < 24; i++ {
		next, err := c.NextDue(spec, prev)
		require.NoError(t, err)
		require.True(t, next.After(prev), "step %d: %v not after %v", i, next, prev)
		prev = next
	}
	// after drifting through short months the day stays clamped, never 0
	assert.NotZero(t, prev.Day())
}

func TestNextDueErrorIsTyped(t *testing.T) {
	c := NewCalculator(time.UTC)
	_, err := c.NextDue(Spec{Frequency: FreqInterval, Interval: -1, Unit: UnitDays}, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSpec))
}
