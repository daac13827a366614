package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/easydeed/reportscompany-sub005/internal/models"
)

func weeklySchedule(dow, hour, minute int, tz string) models.Schedule {
	return models.Schedule{
		ReportType:      models.ReportTypeMarketSnapshot,
		Area:            models.CityArea("Pasadena"),
		LookbackDays:    30,
		Cadence:         models.CadenceWeekly,
		WeeklyDayOfWeek: &dow,
		SendHour:        hour,
		SendMinute:      minute,
		Timezone:        tz,
		Recipients:      models.RecipientList{{Kind: models.RecipientKindEmail, Email: "agent@example.com"}},
		Active:          true,
	}
}

func monthlySchedule(dom, hour, minute int, tz string) models.Schedule {
	s := weeklySchedule(0, hour, minute, tz)
	s.Cadence = models.CadenceMonthly
	s.WeeklyDayOfWeek = nil
	s.MonthlyDayOfMonth = &dom
	return s
}

func TestNextOccurrenceWeeklySameDayNotYetDue(t *testing.T) {
	// 2024-03-06 is a Wednesday.
	now := time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)
	s := weeklySchedule(3, 9, 30, "UTC")

	next, err := NextOccurrence(s, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 6, 9, 30, 0, 0, time.UTC), next)
}

func TestNextOccurrenceWeeklySameDayAlreadyDue(t *testing.T) {
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	s := weeklySchedule(3, 9, 30, "UTC")

	next, err := NextOccurrence(s, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 13, 9, 30, 0, 0, time.UTC), next)
}

func TestNextOccurrenceWeeklyExactBoundaryAdvancesFullWeek(t *testing.T) {
	// A slot equal to now must not fire again immediately.
	now := time.Date(2024, 3, 6, 9, 30, 0, 0, time.UTC)
	s := weeklySchedule(3, 9, 30, "UTC")

	next, err := NextOccurrence(s, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 13, 9, 30, 0, 0, time.UTC), next)
}

func TestNextOccurrenceWeeklyWraparound(t *testing.T) {
	// Monday seen from a Wednesday is five days out, not minus two.
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	s := weeklySchedule(1, 7, 0, "UTC")

	next, err := NextOccurrence(s, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC), next)
	require.Equal(t, time.Monday, next.Weekday())
}

func TestNextOccurrenceMonthlyFebruaryNonLeap(t *testing.T) {
	now := time.Date(2023, 2, 27, 23, 0, 0, 0, time.UTC)
	s := monthlySchedule(28, 7, 15, "UTC")

	next, err := NextOccurrence(s, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, 2, 28, 7, 15, 0, 0, time.UTC), next)
}

func TestNextOccurrenceMonthlyRollover(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s := monthlySchedule(1, 9, 0, "UTC")

	next, err := NextOccurrence(s, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrenceMonthlyFromShortMonthTail(t *testing.T) {
	// Jan 31 is past day 28, so the candidate lands in February.
	now := time.Date(2023, 1, 31, 12, 0, 0, 0, time.UTC)
	s := monthlySchedule(28, 8, 0, "UTC")

	next, err := NextOccurrence(s, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, 2, 28, 8, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrenceHonorsScheduleTimezone(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	// 18:00 UTC on Wed 2024-03-06 is 10:00 in Los Angeles.
	now := time.Date(2024, 3, 6, 18, 0, 0, 0, time.UTC)
	s := weeklySchedule(3, 11, 0, "America/Los_Angeles")

	next, err := NextOccurrence(s, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 6, 11, 0, 0, 0, la), next.In(la))
	require.True(t, next.After(now))
}

func TestNextOccurrenceStrictlyFuture(t *testing.T) {
	dows := []int{0, 2, 6}
	doms := []int{1, 15, 28}
	nows := []time.Time{
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC),
	}

	for _, now := range nows {
		for _, dow := range dows {
			next, err := NextOccurrence(weeklySchedule(dow, 0, 0, "UTC"), now)
			require.NoError(t, err)
			require.True(t, next.After(now), "weekly dow=%d now=%s next=%s", dow, now, next)
		}
		for _, dom := range doms {
			next, err := NextOccurrence(monthlySchedule(dom, 0, 0, "UTC"), now)
			require.NoError(t, err)
			require.True(t, next.After(now), "monthly dom=%d now=%s next=%s", dom, now, next)
		}
	}
}

func TestNextOccurrenceDeterministic(t *testing.T) {
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	s := weeklySchedule(5, 9, 0, "UTC")

	first, err := NextOccurrence(s, now)
	require.NoError(t, err)
	second, err := NextOccurrence(s, now)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestNextOccurrenceInactiveSchedule(t *testing.T) {
	s := weeklySchedule(1, 9, 0, "UTC")
	s.Active = false

	_, err := NextOccurrence(s, time.Now())
	require.ErrorIs(t, err, ErrInactiveSchedule)
}

func TestNextOccurrenceInvariantViolations(t *testing.T) {
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		mutate func(*models.Schedule)
	}{
		{"weekly without dow", func(s *models.Schedule) { s.WeeklyDayOfWeek = nil }},
		{"weekly with stale dom", func(s *models.Schedule) { dom := 5; s.MonthlyDayOfMonth = &dom }},
		{"dow out of range", func(s *models.Schedule) { dow := 7; s.WeeklyDayOfWeek = &dow }},
		{"unknown cadence", func(s *models.Schedule) { s.Cadence = "fortnightly" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := weeklySchedule(3, 9, 0, "UTC")
			tc.mutate(&s)
			_, err := NextOccurrence(s, now)
			var invariant *InvariantError
			require.ErrorAs(t, err, &invariant)
		})
	}

	t.Run("dom out of range", func(t *testing.T) {
		s := monthlySchedule(29, 9, 0, "UTC")
		_, err := NextOccurrence(s, now)
		var invariant *InvariantError
		require.ErrorAs(t, err, &invariant)
	})
}

func TestNextOccurrenceUnresolvableTimezone(t *testing.T) {
	s := weeklySchedule(1, 9, 0, "Mars/Olympus_Mons")
	_, err := NextOccurrence(s, time.Now())
	require.Error(t, err)
	var invariant *InvariantError
	require.False(t, errors.As(err, &invariant), "bad zone is a data error, not an invariant violation")
}

func TestNextOccurrencesChainWeekly(t *testing.T) {
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	s := weeklySchedule(3, 9, 30, "UTC")

	occurrences, err := NextOccurrences(s, now, 3)
	require.NoError(t, err)
	require.Equal(t, []time.Time{
		time.Date(2024, 3, 13, 9, 30, 0, 0, time.UTC),
		time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC),
		time.Date(2024, 3, 27, 9, 30, 0, 0, time.UTC),
	}, occurrences)
}

func TestNextOccurrencesZeroCount(t *testing.T) {
	occurrences, err := NextOccurrences(weeklySchedule(1, 9, 0, "UTC"), time.Now(), 0)
	require.NoError(t, err)
	require.Nil(t, occurrences)
}
