package recurrence

import (
	"fmt"
	"strings"

	"github.com/easydeed/reportscompany-sub005/internal/models"
)

// WizardState is the form-shaped view of a schedule used by the builder UI.
// It is never persisted; it only exists to round-trip through ToCanonical /
// ToWizard while a user edits.
type WizardState struct {
	ReportType   models.ReportType    `json:"report_type"`
	AreaMode     models.AreaKind      `json:"area_mode"`
	City         string               `json:"city,omitempty"`
	ZipCodes     []string             `json:"zip_codes,omitempty"`
	LookbackDays int                  `json:"lookback_days"`
	Cadence      models.Cadence       `json:"cadence"`
	Weekday      string               `json:"weekday,omitempty"`
	DayOfMonth   int                  `json:"day_of_month,omitempty"`
	SendTime     string               `json:"send_time"`
	Timezone     string               `json:"timezone,omitempty"`
	Recipients   models.RecipientList `json:"recipients"`
}

const (
	defaultSendHour   = 9
	defaultSendMinute = 0
	defaultWeekday    = "monday"
	defaultDayOfMonth = 1
)

// weekdayIndex maps form weekday names to the canonical 0-6 encoding
// (0 = Sunday, matching time.Weekday).
var weekdayIndex = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

var weekdayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// ToCanonical converts wizard form state into the canonical schedule shape.
// Identity and timestamp fields are left zero for the caller to assign. The
// conversion is total: a malformed send time falls back to 09:00 and an
// unknown weekday falls back to Monday, so a half-filled form never crashes
// the builder. The unused area field and the unused cadence day field are
// always nulled out.
func ToCanonical(w WizardState) models.Schedule {
	hour, minute := parseSendTime(w.SendTime)

	s := models.Schedule{
		ReportType:   w.ReportType,
		LookbackDays: w.LookbackDays,
		Cadence:      w.Cadence,
		SendHour:     hour,
		SendMinute:   minute,
		Timezone:     w.Timezone,
		Recipients:   w.Recipients,
		Active:       true,
	}

	if w.AreaMode == models.AreaKindZips {
		s.Area = models.ZipArea(w.ZipCodes)
	} else {
		s.Area = models.CityArea(w.City)
	}

	switch w.Cadence {
	case models.CadenceMonthly:
		dom := w.DayOfMonth
		if dom == 0 {
			dom = defaultDayOfMonth
		}
		s.MonthlyDayOfMonth = &dom
		s.WeeklyDayOfWeek = nil
	default:
		dow, ok := weekdayIndex[strings.ToLower(w.Weekday)]
		if !ok {
			dow = weekdayIndex[defaultWeekday]
		}
		s.WeeklyDayOfWeek = &dow
		s.MonthlyDayOfMonth = nil
	}

	return s
}

// ToWizard converts a canonical schedule back into form state for edit flows.
// Missing day fields degrade to presentation defaults (Monday, the 1st)
// instead of failing: this is pre-population data, not a validation surface.
func ToWizard(s models.Schedule) WizardState {
	w := WizardState{
		ReportType:   s.ReportType,
		AreaMode:     s.Area.Kind,
		LookbackDays: s.LookbackDays,
		Cadence:      s.Cadence,
		SendTime:     fmt.Sprintf("%02d:%02d", s.SendHour, s.SendMinute),
		Timezone:     s.Timezone,
		Recipients:   s.Recipients,
	}

	switch s.Area.Kind {
	case models.AreaKindZips:
		w.ZipCodes = s.Area.ZipCodes
	default:
		w.AreaMode = models.AreaKindCity
		if s.Area.City != nil {
			w.City = *s.Area.City
		}
	}

	switch s.Cadence {
	case models.CadenceMonthly:
		w.DayOfMonth = defaultDayOfMonth
		if s.MonthlyDayOfMonth != nil {
			w.DayOfMonth = *s.MonthlyDayOfMonth
		}
	default:
		w.Weekday = defaultWeekday
		if s.WeeklyDayOfWeek != nil && *s.WeeklyDayOfWeek >= 0 && *s.WeeklyDayOfWeek <= 6 {
			w.Weekday = weekdayNames[*s.WeeklyDayOfWeek]
		}
	}

	return w
}

// parseSendTime reads "HH:MM" into hour/minute, substituting 09:00 whenever
// the string is absent or malformed. Parse failure is deliberately non-fatal.
func parseSendTime(raw string) (int, int) {
	var hour, minute int
	if _, err := fmt.Sscanf(raw, "%d:%d", &hour, &minute); err != nil {
		return defaultSendHour, defaultSendMinute
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return defaultSendHour, defaultSendMinute
	}
	return hour, minute
}
