package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/easydeed/reportscompany-sub005/internal/models"
)

// ErrInactiveSchedule is the sentinel returned when a paused schedule is
// handed to the calculator. Callers own deactivation policy; the engine only
// refuses to produce a fire time.
var ErrInactiveSchedule = errors.New("schedule is inactive")

// InvariantError signals corrupted canonical data: a cadence whose day field
// is missing, doubled, or out of range. The calculator fails rather than
// guessing a fire time from a corrupted row.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "schedule invariant violated: " + e.Reason
}

// NextOccurrence computes the next fire time strictly after now, as wall-clock
// time in the schedule's zone. It is a pure function of its arguments: the
// same (schedule, now) pair always yields the same instant.
func NextOccurrence(s models.Schedule, now time.Time) (time.Time, error) {
	if !s.Active {
		return time.Time{}, ErrInactiveSchedule
	}

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve timezone %q: %w", s.Timezone, err)
	}

	local := now.In(loc)

	switch s.Cadence {
	case models.CadenceWeekly:
		if s.WeeklyDayOfWeek == nil || s.MonthlyDayOfMonth != nil {
			return time.Time{}, &InvariantError{Reason: "weekly cadence requires weekly_dow and no monthly_dom"}
		}
		dow := *s.WeeklyDayOfWeek
		if dow < 0 || dow > 6 {
			return time.Time{}, &InvariantError{Reason: fmt.Sprintf("weekly_dow %d out of range", dow)}
		}
		return nextWeekly(local, now, dow, s.SendHour, s.SendMinute, loc), nil

	case models.CadenceMonthly:
		if s.MonthlyDayOfMonth == nil || s.WeeklyDayOfWeek != nil {
			return time.Time{}, &InvariantError{Reason: "monthly cadence requires monthly_dom and no weekly_dow"}
		}
		dom := *s.MonthlyDayOfMonth
		if dom < 1 || dom > 28 {
			return time.Time{}, &InvariantError{Reason: fmt.Sprintf("monthly_dom %d out of range", dom)}
		}
		return nextMonthly(local, now, dom, s.SendHour, s.SendMinute, loc), nil

	default:
		return time.Time{}, &InvariantError{Reason: fmt.Sprintf("unknown cadence %q", s.Cadence)}
	}
}

// nextWeekly finds the next weekday hit. When the target weekday is today but
// today's slot is not strictly in the future, the candidate advances a full
// week rather than collapsing to an already-elapsed time.
func nextWeekly(local, now time.Time, dow, hour, minute int, loc *time.Location) time.Time {
	daysUntil := (dow - int(local.Weekday()) + 7) % 7
	candidate := time.Date(local.Year(), local.Month(), local.Day()+daysUntil, hour, minute, 0, 0, loc)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// nextMonthly tries this month's slot, then the same day next month. The 1-28
// bound on the day of month means every month has the day, so no clamping or
// rollover handling is needed.
func nextMonthly(local, now time.Time, dom, hour, minute int, loc *time.Location) time.Time {
	candidate := time.Date(local.Year(), local.Month(), dom, hour, minute, 0, 0, loc)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 1, 0)
	}
	return candidate
}

// NextOccurrences returns the next count fire times after now, each feeding
// the previous result back in as the reference instant. Used by preview
// surfaces so they show exactly what the runner will store.
func NextOccurrences(s models.Schedule, now time.Time, count int) ([]time.Time, error) {
	if count <= 0 {
		return nil, nil
	}
	occurrences := make([]time.Time, 0, count)
	ref := now
	for i := 0; i < count; i++ {
		next, err := NextOccurrence(s, ref)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, next)
		ref = next
	}
	return occurrences, nil
}
