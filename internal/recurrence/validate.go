package recurrence

import (
	"fmt"
	"time"

	"github.com/easydeed/reportscompany-sub005/internal/models"
)

// Violation is one failed boundary check on a canonical schedule.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Violation codes.
const (
	CodeRequired     = "REQUIRED"
	CodeExclusive    = "MUTUALLY_EXCLUSIVE"
	CodeOutOfRange   = "OUT_OF_RANGE"
	CodeUnknownValue = "UNKNOWN_VALUE"
)

// Validate runs every boundary check on a canonical schedule and returns the
// full violation list, so an API handler or form can surface all problems at
// once. It never panics and has no side effects.
func Validate(s models.Schedule) []Violation {
	var violations []Violation

	if !s.ReportType.Valid() {
		violations = append(violations, Violation{
			Field:   "report_type",
			Code:    CodeUnknownValue,
			Message: fmt.Sprintf("unsupported report type %q", s.ReportType),
		})
	}

	violations = append(violations, validateArea(s.Area)...)
	violations = append(violations, validateCadence(s)...)

	if s.SendHour < 0 || s.SendHour > 23 {
		violations = append(violations, Violation{
			Field:   "send_hour",
			Code:    CodeOutOfRange,
			Message: fmt.Sprintf("send_hour %d must be between 0 and 23", s.SendHour),
		})
	}
	if s.SendMinute < 0 || s.SendMinute > 59 {
		violations = append(violations, Violation{
			Field:   "send_minute",
			Code:    CodeOutOfRange,
			Message: fmt.Sprintf("send_minute %d must be between 0 and 59", s.SendMinute),
		})
	}

	if !models.LookbackAllowed(s.LookbackDays) {
		violations = append(violations, Violation{
			Field:   "lookback_days",
			Code:    CodeUnknownValue,
			Message: fmt.Sprintf("lookback_days %d is not an offered window", s.LookbackDays),
		})
	}

	if s.Timezone == "" {
		violations = append(violations, Violation{
			Field:   "timezone",
			Code:    CodeRequired,
			Message: "timezone is required",
		})
	} else if _, err := time.LoadLocation(s.Timezone); err != nil {
		violations = append(violations, Violation{
			Field:   "timezone",
			Code:    CodeUnknownValue,
			Message: fmt.Sprintf("unresolvable timezone %q", s.Timezone),
		})
	}

	if s.Active && len(s.Recipients) == 0 {
		violations = append(violations, Violation{
			Field:   "recipients",
			Code:    CodeRequired,
			Message: "an active schedule needs at least one recipient",
		})
	}
	violations = append(violations, validateRecipients(s.Recipients)...)

	return violations
}

func validateArea(a models.AreaSelector) []Violation {
	hasCity := a.City != nil && *a.City != ""
	hasZips := len(a.ZipCodes) > 0

	switch a.Kind {
	case models.AreaKindCity:
		if !hasCity {
			return []Violation{{Field: "area.city", Code: CodeRequired, Message: "city selector needs a city"}}
		}
		if hasZips {
			return []Violation{{Field: "area", Code: CodeExclusive, Message: "city selector must not carry zip codes"}}
		}
	case models.AreaKindZips:
		if !hasZips {
			return []Violation{{Field: "area.zip_codes", Code: CodeRequired, Message: "zips selector needs at least one zip code"}}
		}
		if hasCity {
			return []Violation{{Field: "area", Code: CodeExclusive, Message: "zips selector must not carry a city"}}
		}
	default:
		return []Violation{{Field: "area.kind", Code: CodeUnknownValue, Message: fmt.Sprintf("unknown area kind %q", a.Kind)}}
	}
	return nil
}

func validateCadence(s models.Schedule) []Violation {
	switch s.Cadence {
	case models.CadenceWeekly:
		if s.WeeklyDayOfWeek == nil {
			return []Violation{{Field: "weekly_dow", Code: CodeRequired, Message: "weekly cadence needs weekly_dow"}}
		}
		if s.MonthlyDayOfMonth != nil {
			return []Violation{{Field: "monthly_dom", Code: CodeExclusive, Message: "weekly cadence must not carry monthly_dom"}}
		}
		if *s.WeeklyDayOfWeek < 0 || *s.WeeklyDayOfWeek > 6 {
			return []Violation{{Field: "weekly_dow", Code: CodeOutOfRange, Message: fmt.Sprintf("weekly_dow %d must be between 0 and 6", *s.WeeklyDayOfWeek)}}
		}
	case models.CadenceMonthly:
		if s.MonthlyDayOfMonth == nil {
			return []Violation{{Field: "monthly_dom", Code: CodeRequired, Message: "monthly cadence needs monthly_dom"}}
		}
		if s.WeeklyDayOfWeek != nil {
			return []Violation{{Field: "weekly_dow", Code: CodeExclusive, Message: "monthly cadence must not carry weekly_dow"}}
		}
		if *s.MonthlyDayOfMonth < 1 || *s.MonthlyDayOfMonth > 28 {
			return []Violation{{Field: "monthly_dom", Code: CodeOutOfRange, Message: fmt.Sprintf("monthly_dom %d must be between 1 and 28", *s.MonthlyDayOfMonth)}}
		}
	default:
		return []Violation{{Field: "cadence", Code: CodeUnknownValue, Message: fmt.Sprintf("unknown cadence %q", s.Cadence)}}
	}
	return nil
}

func validateRecipients(list models.RecipientList) []Violation {
	var violations []Violation
	for i, r := range list {
		field := fmt.Sprintf("recipients[%d]", i)
		switch r.Kind {
		case models.RecipientKindEmail:
			if r.Email == "" {
				violations = append(violations, Violation{Field: field, Code: CodeRequired, Message: "email recipient needs an address"})
			}
		case models.RecipientKindContact:
			if r.ContactID == "" {
				violations = append(violations, Violation{Field: field, Code: CodeRequired, Message: "contact recipient needs a contact id"})
			}
		case models.RecipientKindGroup:
			if r.GroupID == "" {
				violations = append(violations, Violation{Field: field, Code: CodeRequired, Message: "group recipient needs a group id"})
			}
		default:
			violations = append(violations, Violation{Field: field, Code: CodeUnknownValue, Message: fmt.Sprintf("unknown recipient kind %q", r.Kind)})
		}
	}
	return violations
}
