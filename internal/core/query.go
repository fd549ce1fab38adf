package core

import (
	"sort"
	"strings"
)

// Placeholders substituted when a referenced record no longer exists. Dangling
// references are representable, so reads degrade instead of erroring.
const (
	PlaceholderUnknown    = "Unknown"
	PlaceholderAttraction = "Unknown Attraction"
	PlaceholderTourist    = "Unknown Tourist"
	PlaceholderNoGuide    = "Not assigned"
)

// BookingView is a booking joined with its trek, attraction, tourist, and
// guide. Unresolvable references carry placeholder names.
type BookingView struct {
	Booking
	TrekName       string
	AttractionName string
	TouristName    string
	GuideName      string
}

// TrekView is a trek joined with its attraction and guide, plus the derived
// altitude classification.
type TrekView struct {
	Trek
	AttractionName string
	GuideName      string
	RiskLevel      AltitudeRisk
	HighAltitude   bool
}

// NationalityCount is one slice of the tourist nationality distribution.
type NationalityCount struct {
	Nationality string
	Count       int
}

// AttractionBookings counts bookings reaching an attraction through their trek.
type AttractionBookings struct {
	Attraction string
	Count      int
}

// DashboardTotals aggregates collection sizes for the operator dashboard.
type DashboardTotals struct {
	Tourists        int `json:"tourists"`
	Guides          int `json:"guides"`
	Attractions     int `json:"attractions"`
	Treks           int `json:"treks"`
	Bookings        int `json:"bookings"`
	Emergencies     int `json:"emergencies"`
	OpenEmergencies int `json:"open_emergencies"`
}

// TrekByID looks up a trek by its integer id.
func (s *Service) TrekByID(id int) (Trek, bool) { return s.store.FindTrek(id) }

// AttractionByID looks up an attraction by its integer id.
func (s *Service) AttractionByID(id int) (Attraction, bool) { return s.store.FindAttraction(id) }

// GuideByEmail looks up a guide by email, case-insensitively.
func (s *Service) GuideByEmail(email string) (Guide, bool) { return s.store.FindGuide(email) }

// UserByEmail looks up a user by email, case-insensitively.
func (s *Service) UserByEmail(email string) (User, bool) { return s.store.FindUser(email) }

// TrekView resolves a single trek's references.
func (s *Service) TrekView(id int) (TrekView, bool) {
	trek, ok := s.store.FindTrek(id)
	if !ok {
		return TrekView{}, false
	}
	return s.trekView(trek), true
}

// TrekViews resolves references for every trek.
func (s *Service) TrekViews() []TrekView {
	treks := s.store.ListTreks()
	out := make([]TrekView, 0, len(treks))
	for _, t := range treks {
		out = append(out, s.trekView(t))
	}
	return out
}

func (s *Service) trekView(t Trek) TrekView {
	view := TrekView{
		Trek:           t,
		AttractionName: PlaceholderAttraction,
		GuideName:      PlaceholderNoGuide,
		RiskLevel:      t.RiskLevel(),
		HighAltitude:   t.HighAltitude(),
	}
	if a, ok := s.store.FindAttraction(t.AttractionID); ok {
		view.AttractionName = a.Name
	}
	if t.GuideEmail != "" {
		if g, ok := s.store.FindGuide(t.GuideEmail); ok {
			view.GuideName = g.FullName()
		}
	}
	return view
}

// TreksByGuide returns treks assigned to the guide, matched case-insensitively.
func (s *Service) TreksByGuide(email string) []Trek {
	var out []Trek
	for _, t := range s.store.ListTreks() {
		if strings.EqualFold(t.GuideEmail, email) {
			out = append(out, t)
		}
	}
	return out
}

// BookingViews resolves references for every booking.
func (s *Service) BookingViews() []BookingView {
	bookings := s.store.ListBookings()
	out := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, s.bookingView(b))
	}
	return out
}

// BookingsByUser returns the user's resolved bookings, matched
// case-insensitively.
func (s *Service) BookingsByUser(email string) []BookingView {
	var out []BookingView
	for _, b := range s.store.ListBookings() {
		if strings.EqualFold(b.UserEmail, email) {
			out = append(out, s.bookingView(b))
		}
	}
	return out
}

func (s *Service) bookingView(b Booking) BookingView {
	view := BookingView{
		Booking:        b,
		TrekName:       PlaceholderUnknown,
		AttractionName: PlaceholderAttraction,
		TouristName:    PlaceholderTourist,
		GuideName:      PlaceholderNoGuide,
	}
	if trek, ok := s.store.FindTrek(b.TrekID); ok {
		view.TrekName = trek.Name
		if a, ok := s.store.FindAttraction(trek.AttractionID); ok {
			view.AttractionName = a.Name
		}
	}
	if u, ok := s.store.FindUser(b.UserEmail); ok {
		view.TouristName = u.FullName()
	}
	if b.GuideEmail != "" {
		if g, ok := s.store.FindGuide(b.GuideEmail); ok {
			view.GuideName = g.FullName()
		}
	}
	return view
}

// EmergenciesByGuide returns the guide's reports, most recent first.
// Reports with unparsable timestamps sort last.
func (s *Service) EmergenciesByGuide(email string) []Emergency {
	var out []Emergency
	for _, e := range s.store.ListEmergencies() {
		if strings.EqualFold(e.GuideEmail, email) {
			out = append(out, e)
		}
	}
	sortEmergenciesDesc(out)
	return out
}

func sortEmergenciesDesc(emergencies []Emergency) {
	sort.SliceStable(emergencies, func(i, j int) bool {
		ti, erri := emergencies[i].ReportedAt()
		tj, errj := emergencies[j].ReportedAt()
		if (erri == nil) != (errj == nil) {
			return erri == nil
		}
		if erri != nil {
			return false
		}
		return ti.After(tj)
	})
}

// ---- aggregates ----

// TrekCountByDifficulty counts treks per difficulty label.
func (s *Service) TrekCountByDifficulty() map[Difficulty]int {
	out := make(map[Difficulty]int)
	for _, t := range s.store.ListTreks() {
		out[t.Difficulty]++
	}
	return out
}

// EmergencyCountBySeverity counts emergencies per severity label.
func (s *Service) EmergencyCountBySeverity() map[EmergencySeverity]int {
	out := make(map[EmergencySeverity]int)
	for _, e := range s.store.ListEmergencies() {
		out[e.Severity]++
	}
	return out
}

// EmergencyCountByStatus counts emergencies per status label.
func (s *Service) EmergencyCountByStatus() map[EmergencyStatus]int {
	out := make(map[EmergencyStatus]int)
	for _, e := range s.store.ListEmergencies() {
		out[e.Status]++
	}
	return out
}

// NationalityDistribution buckets tourist accounts by nationality, largest
// bucket first. Ties order alphabetically so the result is deterministic.
func (s *Service) NationalityDistribution() []NationalityCount {
	counts := make(map[string]int)
	for _, u := range s.store.ListUsers() {
		if !strings.EqualFold(string(u.UserType), string(UserTypeUser)) {
			continue
		}
		nationality := u.Nationality
		if nationality == "" {
			nationality = PlaceholderUnknown
		}
		counts[nationality]++
	}
	out := make([]NationalityCount, 0, len(counts))
	for nationality, count := range counts {
		out = append(out, NationalityCount{Nationality: nationality, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Nationality < out[j].Nationality
	})
	return out
}

// BookingsPerAttraction counts bookings per attraction name via each booking's
// trek, largest first with alphabetical ties. Bookings whose trek or attraction
// is missing bucket under the Unknown placeholder. A positive limit truncates
// the result.
func (s *Service) BookingsPerAttraction(limit int) []AttractionBookings {
	counts := make(map[string]int)
	for _, b := range s.store.ListBookings() {
		name := PlaceholderUnknown
		if trek, ok := s.store.FindTrek(b.TrekID); ok {
			if a, ok := s.store.FindAttraction(trek.AttractionID); ok {
				name = a.Name
			}
		}
		counts[name]++
	}
	out := make([]AttractionBookings, 0, len(counts))
	for name, count := range counts {
		out = append(out, AttractionBookings{Attraction: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Attraction < out[j].Attraction
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Totals aggregates collection sizes. Tourists counts only accounts with the
// plain user type; open emergencies are everything not yet resolved.
func (s *Service) Totals() DashboardTotals {
	totals := DashboardTotals{
		Guides:      len(s.store.ListGuides()),
		Attractions: len(s.store.ListAttractions()),
		Treks:       len(s.store.ListTreks()),
		Bookings:    len(s.store.ListBookings()),
	}
	for _, u := range s.store.ListUsers() {
		if strings.EqualFold(string(u.UserType), string(UserTypeUser)) {
			totals.Tourists++
		}
	}
	for _, e := range s.store.ListEmergencies() {
		totals.Emergencies++
		if e.Status != StatusResolved {
			totals.OpenEmergencies++
		}
	}
	return totals
}
