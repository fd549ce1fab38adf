// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by trekcore.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAttraction identifies a trekking attraction record.
	EntityAttraction EntityType = "attraction"
	// EntityGuide identifies a guide record.
	EntityGuide EntityType = "guide"
	// EntityUser identifies a tourist or admin account record.
	EntityUser EntityType = "user"
	// EntityTrek identifies a trek record.
	EntityTrek EntityType = "trek"
	// EntityBooking identifies a booking record.
	EntityBooking EntityType = "booking"
	// EntityEmergency identifies an emergency report record.
	EntityEmergency EntityType = "emergency"
)

// Difficulty grades an attraction or trek.
type Difficulty string

// Canonical difficulty grades shared by attractions and treks.
const (
	DifficultyEasy     Difficulty = "Easy"
	DifficultyModerate Difficulty = "Moderate"
	DifficultyHard     Difficulty = "Hard"
)

// UserType distinguishes account roles stored in the user collection.
type UserType string

// Account roles. Guides live in their own collection but carry the same tag.
const (
	UserTypeUser  UserType = "user"
	UserTypeAdmin UserType = "admin"
	UserTypeGuide UserType = "guide"
)

// EmergencySeverity ranks the urgency of a reported emergency.
type EmergencySeverity string

// Canonical emergency severities, least to most urgent.
const (
	SeverityLowEmergency EmergencySeverity = "Low"
	SeverityMedium       EmergencySeverity = "Medium"
	SeverityHigh         EmergencySeverity = "High"
	SeverityCritical     EmergencySeverity = "Critical"
)

// EmergencyStatus tracks the handling lifecycle of an emergency report.
type EmergencyStatus string

// Emergency lifecycle states. New reports always start at Reported.
const (
	StatusReported   EmergencyStatus = "Reported"
	StatusInProgress EmergencyStatus = "In Progress"
	StatusResolved   EmergencyStatus = "Resolved"
)

// AltitudeRisk classifies acute mountain sickness exposure for a trek altitude.
// It is derived at read time and never persisted.
type AltitudeRisk string

// Altitude risk bands, lowest to highest exposure.
const (
	RiskLow      AltitudeRisk = "Low"
	RiskModerate AltitudeRisk = "Moderate"
	RiskHigh     AltitudeRisk = "High"
	RiskVeryHigh AltitudeRisk = "Very High"
	RiskExtreme  AltitudeRisk = "Extreme"
)

// Date and timestamp formats used in the serialized files. Dates are stored as
// strings and re-parsed lazily so that hand-edited files with odd values still
// load; parse failures surface only when the value is actually needed.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
)

// Attraction is a destination that treks are organised around.
type Attraction struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Location   string     `json:"location"`
	Difficulty Difficulty `json:"difficulty"`
	Type       string     `json:"type"`
	Remarks    string     `json:"remarks"`
}

// User is a tourist or admin account. The email is the natural key.
type User struct {
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Password    string   `json:"password"`
	UserType    UserType `json:"userType"`
	Nationality string   `json:"nationality"`
}

// FullName joins the first and last name for display.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Guide is a trek guide account. Guides double as the guide-login credential
// store; the email is the natural key.
type Guide struct {
	FirstName           string   `json:"firstName"`
	LastName            string   `json:"lastName"`
	Email               string   `json:"email"`
	Phone               string   `json:"phone"`
	Password            string   `json:"password"`
	UserType            UserType `json:"userType"`
	Nationality         string   `json:"nationality"`
	ProficiencyLanguage string   `json:"proficiencyLanguage"`
	Experience          string   `json:"experience"`
}

// FullName joins the first and last name for display.
func (g Guide) FullName() string {
	return g.FirstName + " " + g.LastName
}

// Trek is a scheduled trekking trip referencing an attraction and a guide.
type Trek struct {
	ID           int        `json:"id"`
	Name         string     `json:"trekName"`
	Duration     string     `json:"duration"`
	StartDateStr string     `json:"startDateStr"`
	Difficulty   Difficulty `json:"difficulty"`
	MaxAltitude  int        `json:"maxAltitude"`
	Cost         float64    `json:"cost"`
	BestSeason   string     `json:"bestSeason"`
	GuideEmail   string     `json:"guideEmail"`
	AttractionID int        `json:"attractionId"`

	HasDiscount     bool    `json:"hasDiscount"`
	OriginalCost    float64 `json:"originalCost"`
	DiscountPercent float64 `json:"discountPercent"`
}

// StartDate parses the stored start date string.
func (t Trek) StartDate() (time.Time, error) {
	return time.Parse(DateLayout, t.StartDateStr)
}

// SetStartDate stores the date in the serialized string form.
func (t *Trek) SetStartDate(d time.Time) {
	t.StartDateStr = d.Format(DateLayout)
}

// HighAltitude reports whether the trek crosses the 3000m warning threshold.
func (t Trek) HighAltitude() bool {
	return HighAltitude(t.MaxAltitude)
}

// RiskLevel classifies the trek's altitude exposure.
func (t Trek) RiskLevel() AltitudeRisk {
	return AltitudeRiskLevel(t.MaxAltitude)
}

// DiscountAmount returns the absolute discount applied to the original cost.
func (t Trek) DiscountAmount() float64 {
	if !t.HasDiscount {
		return 0
	}
	return t.OriginalCost * (t.DiscountPercent / 100)
}

// Booking links a user to a trek led by a guide. TrekStartDateStr is a
// denormalized snapshot taken at booking time; later trek edits do not touch it.
type Booking struct {
	ID               int    `json:"id"`
	BookingID        string `json:"bookingId"`
	TrekID           int    `json:"trekId"`
	UserEmail        string `json:"userEmail"`
	GuideEmail       string `json:"guideEmail"`
	TrekStartDateStr string `json:"trekStartDateStr"`
}

// TrekStartDate parses the snapshotted trek start date, if present.
func (b Booking) TrekStartDate() (time.Time, error) {
	return time.Parse(DateLayout, b.TrekStartDateStr)
}

// Emergency is a field report filed by a guide.
type Emergency struct {
	ID              int               `json:"id"`
	GuideName       string            `json:"guideName"`
	GuideEmail      string            `json:"guideEmail"`
	EmergencyType   string            `json:"emergencyType"`
	Description     string            `json:"description"`
	Location        string            `json:"location"`
	Severity        EmergencySeverity `json:"severity"`
	Status          EmergencyStatus   `json:"status"`
	ReportedAtStr   string            `json:"reportedAtStr"`
	ResolvedAtStr   string            `json:"resolvedAtStr,omitempty"`
	ContactNumber   string            `json:"contactNumber,omitempty"`
	AdditionalNotes string            `json:"additionalNotes,omitempty"`
}

// ReportedAt parses the stored report timestamp.
func (e Emergency) ReportedAt() (time.Time, error) {
	return time.Parse(DateTimeLayout, e.ReportedAtStr)
}

// SetReportedAt stores the report timestamp in serialized form.
func (e *Emergency) SetReportedAt(ts time.Time) {
	e.ReportedAtStr = ts.Format(DateTimeLayout)
}

// ResolvedAt parses the resolution timestamp; ok is false while unresolved.
func (e Emergency) ResolvedAt() (time.Time, bool) {
	if e.ResolvedAtStr == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(DateTimeLayout, e.ResolvedAtStr)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Change describes a mutation applied to an entity during a store operation.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the supported mutations.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks the mutation from being persisted.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows the save.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations for logging.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity != SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "mutation blocked by rules"
}
