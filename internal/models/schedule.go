package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType enumerates the report kinds a schedule can deliver.
type ReportType string

const (
	ReportTypeMarketSnapshot     ReportType = "market_snapshot"
	ReportTypeNewListings        ReportType = "new_listings"
	ReportTypeInventory          ReportType = "inventory"
	ReportTypeClosedSales        ReportType = "closed_sales"
	ReportTypePriceBands         ReportType = "price_bands"
	ReportTypeOpenHouses         ReportType = "open_houses"
	ReportTypeNewListingsGallery ReportType = "new_listings_gallery"
	ReportTypeFeaturedListings   ReportType = "featured_listings"
)

// ReportTypes lists every supported report kind.
var ReportTypes = []ReportType{
	ReportTypeMarketSnapshot,
	ReportTypeNewListings,
	ReportTypeInventory,
	ReportTypeClosedSales,
	ReportTypePriceBands,
	ReportTypeOpenHouses,
	ReportTypeNewListingsGallery,
	ReportTypeFeaturedListings,
}

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	for _, known := range ReportTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Cadence is the recurrence family of a schedule.
type Cadence string

const (
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// AllowedLookbackDays is the closed set of lookback windows the product offers.
var AllowedLookbackDays = []int{7, 14, 30, 60, 90}

// LookbackAllowed reports whether days is one of the offered lookback windows.
func LookbackAllowed(days int) bool {
	for _, allowed := range AllowedLookbackDays {
		if days == allowed {
			return true
		}
	}
	return false
}

// AreaKind discriminates the geographic selector of a schedule.
type AreaKind string

const (
	AreaKindCity AreaKind = "city"
	AreaKindZips AreaKind = "zips"
)

// AreaSelector scopes a schedule to either a named city or an explicit ZIP set.
// Exactly one side is populated; the zero value is invalid.
type AreaSelector struct {
	Kind     AreaKind `json:"kind"`
	City     *string  `json:"city,omitempty"`
	ZipCodes []string `json:"zip_codes,omitempty"`
}

// CityArea builds a city-scoped selector.
func CityArea(city string) AreaSelector {
	return AreaSelector{Kind: AreaKindCity, City: &city}
}

// ZipArea builds a ZIP-scoped selector.
func ZipArea(zips []string) AreaSelector {
	return AreaSelector{Kind: AreaKindZips, ZipCodes: zips}
}

// Value marshals the selector to JSON for persistence.
func (a AreaSelector) Value() (driver.Value, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal area selector: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the selector.
func (a *AreaSelector) Scan(value interface{}) error {
	if value == nil {
		*a = AreaSelector{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for AreaSelector", value)
	}
	if len(data) == 0 {
		*a = AreaSelector{}
		return nil
	}
	if err := json.Unmarshal(data, a); err != nil {
		return fmt.Errorf("unmarshal area selector: %w", err)
	}
	return nil
}

// RecipientKind discriminates recipient entries.
type RecipientKind string

const (
	RecipientKindEmail   RecipientKind = "email"
	RecipientKindContact RecipientKind = "contact"
	RecipientKindGroup   RecipientKind = "group"
)

// Recipient is one delivery target: a literal email address, a saved contact,
// or a contact group. The field matching Kind is the meaningful one.
type Recipient struct {
	Kind      RecipientKind `json:"kind"`
	Email     string        `json:"email,omitempty"`
	ContactID string        `json:"contact_id,omitempty"`
	GroupID   string        `json:"group_id,omitempty"`
}

// RecipientList persists as a JSONB array, preserving order.
type RecipientList []Recipient

// Value marshals recipients for persistence.
func (r RecipientList) Value() (driver.Value, error) {
	if r == nil {
		r = RecipientList{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal recipients: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the list.
func (r *RecipientList) Scan(value interface{}) error {
	if value == nil {
		*r = RecipientList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for RecipientList", value)
	}
	if len(data) == 0 {
		*r = RecipientList{}
		return nil
	}
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("unmarshal recipients: %w", err)
	}
	return nil
}

// Schedule is the canonical, persisted representation of a recurring report.
// The json tags are the backend wire contract and must not drift.
type Schedule struct {
	ID                string        `db:"id" json:"id"`
	AccountID         string        `db:"account_id" json:"account_id"`
	ReportType        ReportType    `db:"report_type" json:"report_type"`
	Area              AreaSelector  `db:"area" json:"area"`
	LookbackDays      int           `db:"lookback_days" json:"lookback_days"`
	Cadence           Cadence       `db:"cadence" json:"cadence"`
	WeeklyDayOfWeek   *int          `db:"weekly_dow" json:"weekly_dow,omitempty"`
	MonthlyDayOfMonth *int          `db:"monthly_dom" json:"monthly_dom,omitempty"`
	SendHour          int           `db:"send_hour" json:"send_hour"`
	SendMinute        int           `db:"send_minute" json:"send_minute"`
	Timezone          string        `db:"timezone" json:"timezone"`
	Recipients        RecipientList `db:"recipients" json:"recipients"`
	Active            bool          `db:"active" json:"active"`
	LastRunAt         *time.Time    `db:"last_run_at" json:"last_run_at,omitempty"`
	NextRunAt         *time.Time    `db:"next_run_at" json:"next_run_at,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	AccountID  string
	ReportType string
	Cadence    string
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
