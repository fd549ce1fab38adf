// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments. The snapshotting SQL
// backends embed it and persist its exported state after each mutation.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"trekcore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.PersistentStore = (*Store)(nil)
	_ domain.RuleView        = (*Store)(nil)
)

type state struct {
	attractions []domain.Attraction
	guides      []domain.Guide
	users       []domain.User
	treks       []domain.Trek
	bookings    []domain.Booking
	emergencies []domain.Emergency
}

// Snapshot captures a point-in-time copy of the store state, bucketed the same
// way the flat files are. Nil buckets decode as empty.
type Snapshot struct {
	Attractions []domain.Attraction `json:"attractions"`
	Guides      []domain.Guide      `json:"guides"`
	Users       []domain.User       `json:"users"`
	Treks       []domain.Trek       `json:"treks"`
	Bookings    []domain.Booking    `json:"bookings"`
	Emergencies []domain.Emergency  `json:"emergencies"`
}

// Store keeps all collections in process memory behind one RWMutex.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	now    func() time.Time
}

// NewStore returns an empty in-memory store evaluating the given rules engine
// on mutations. A nil engine disables rule evaluation.
func NewStore(engine *domain.RulesEngine) *Store {
	return &Store{engine: engine, now: time.Now}
}

// ExportState returns a deep-enough copy of all collections. Entities contain
// only value fields, so slice copies are sufficient.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Attractions: append([]domain.Attraction(nil), s.state.attractions...),
		Guides:      append([]domain.Guide(nil), s.state.guides...),
		Users:       append([]domain.User(nil), s.state.users...),
		Treks:       append([]domain.Trek(nil), s.state.treks...),
		Bookings:    append([]domain.Booking(nil), s.state.bookings...),
		Emergencies: append([]domain.Emergency(nil), s.state.emergencies...),
	}
}

// ImportState replaces the store contents with the snapshot.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state{
		attractions: append([]domain.Attraction(nil), snap.Attractions...),
		guides:      append([]domain.Guide(nil), snap.Guides...),
		users:       append([]domain.User(nil), snap.Users...),
		treks:       append([]domain.Trek(nil), snap.Treks...),
		bookings:    append([]domain.Booking(nil), snap.Bookings...),
		emergencies: append([]domain.Emergency(nil), snap.Emergencies...),
	}
}

// ruleView is an unlocked view over a state copy handed to rule evaluation.
type ruleView struct {
	state state
}

func (v ruleView) ListAttractions() []domain.Attraction { return v.state.attractions }
func (v ruleView) ListGuides() []domain.Guide           { return v.state.guides }
func (v ruleView) ListUsers() []domain.User             { return v.state.users }
func (v ruleView) ListTreks() []domain.Trek             { return v.state.treks }
func (v ruleView) ListBookings() []domain.Booking       { return v.state.bookings }
func (v ruleView) ListEmergencies() []domain.Emergency  { return v.state.emergencies }

func (v ruleView) FindAttraction(id int) (domain.Attraction, bool) {
	for _, a := range v.state.attractions {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Attraction{}, false
}

func (v ruleView) FindGuide(email string) (domain.Guide, bool) {
	for _, g := range v.state.guides {
		if strings.EqualFold(g.Email, email) {
			return g, true
		}
	}
	return domain.Guide{}, false
}

func (v ruleView) FindUser(email string) (domain.User, bool) {
	for _, u := range v.state.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return domain.User{}, false
}

func (v ruleView) FindTrek(id int) (domain.Trek, bool) {
	for _, t := range v.state.treks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Trek{}, false
}

func (s *Store) evaluate(ctx context.Context, change domain.Change) error {
	res, err := s.engine.Evaluate(ctx, ruleView{state: s.state}, []domain.Change{change})
	if err != nil {
		return err
	}
	if res.HasBlocking() {
		return domain.RuleViolationError{Result: res}
	}
	return nil
}

// ---- attractions ----

// ListAttractions returns a copy of the attraction collection.
func (s *Store) ListAttractions() []domain.Attraction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Attraction(nil), s.state.attractions...)
}

// FindAttraction looks up an attraction by id.
func (s *Store) FindAttraction(id int) (domain.Attraction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ruleView{state: s.state}.FindAttraction(id)
}

// AddAttraction assigns the next id and appends the record.
func (s *Store) AddAttraction(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxID := 0
	for _, existing := range s.state.attractions {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	a.ID = maxID + 1
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityAttraction, Action: domain.ActionCreate, After: a}); err != nil {
		return domain.Attraction{}, err
	}
	s.state.attractions = append(s.state.attractions, a)
	return a, nil
}

// UpdateAttraction replaces the attraction with a matching id.
func (s *Store) UpdateAttraction(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.attractions {
		if s.state.attractions[i].ID != a.ID {
			continue
		}
		if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityAttraction, Action: domain.ActionUpdate, Before: s.state.attractions[i], After: a}); err != nil {
			return domain.Attraction{}, err
		}
		s.state.attractions[i] = a
		return a, nil
	}
	return domain.Attraction{}, domain.ErrNotFound{Entity: domain.EntityAttraction, Key: strconv.Itoa(a.ID)}
}

// DeleteAttraction removes the attraction with a matching id.
func (s *Store) DeleteAttraction(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.attractions[:0]
	removed := false
	for _, a := range s.state.attractions {
		if a.ID == id {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	if !removed {
		return domain.ErrNotFound{Entity: domain.EntityAttraction, Key: strconv.Itoa(id)}
	}
	s.state.attractions = kept
	return nil
}

// ---- guides ----

// ListGuides returns a copy of the guide roster, sorted by email.
func (s *Store) ListGuides() []domain.Guide {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.Guide(nil), s.state.guides...)
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// FindGuide looks up a guide by email, case-insensitively.
func (s *Store) FindGuide(email string) (domain.Guide, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ruleView{state: s.state}.FindGuide(email)
}

// AddGuide appends a guide after rejecting duplicate emails.
func (s *Store) AddGuide(ctx context.Context, g domain.Guide) (domain.Guide, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.state.guides {
		if strings.EqualFold(existing.Email, g.Email) {
			return domain.Guide{}, domain.ErrDuplicateEmail{Entity: domain.EntityGuide, Email: g.Email}
		}
	}
	if g.UserType == "" {
		g.UserType = domain.UserTypeGuide
	}
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityGuide, Action: domain.ActionCreate, After: g}); err != nil {
		return domain.Guide{}, err
	}
	s.state.guides = append(s.state.guides, g)
	return g, nil
}

// UpdateGuide replaces the guide with a matching email.
func (s *Store) UpdateGuide(ctx context.Context, g domain.Guide) (domain.Guide, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.guides {
		if !strings.EqualFold(s.state.guides[i].Email, g.Email) {
			continue
		}
		if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityGuide, Action: domain.ActionUpdate, Before: s.state.guides[i], After: g}); err != nil {
			return domain.Guide{}, err
		}
		s.state.guides[i] = g
		return g, nil
	}
	return domain.Guide{}, domain.ErrNotFound{Entity: domain.EntityGuide, Key: g.Email}
}

// DeleteGuide removes the guide with a matching email.
func (s *Store) DeleteGuide(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.guides[:0]
	removed := false
	for _, g := range s.state.guides {
		if strings.EqualFold(g.Email, email) {
			removed = true
			continue
		}
		kept = append(kept, g)
	}
	if !removed {
		return domain.ErrNotFound{Entity: domain.EntityGuide, Key: email}
	}
	s.state.guides = kept
	return nil
}

// ---- users ----

// ListUsers returns a copy of the user collection, sorted by email.
func (s *Store) ListUsers() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.User(nil), s.state.users...)
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// FindUser looks up a user by email, case-insensitively.
func (s *Store) FindUser(email string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ruleView{state: s.state}.FindUser(email)
}

// AddUser appends a user after rejecting duplicate emails.
func (s *Store) AddUser(ctx context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.state.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.User{}, domain.ErrDuplicateEmail{Entity: domain.EntityUser, Email: u.Email}
		}
	}
	if u.UserType == "" {
		u.UserType = domain.UserTypeUser
	}
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: u}); err != nil {
		return domain.User{}, err
	}
	s.state.users = append(s.state.users, u)
	return u, nil
}

// UpdateUser replaces the user with a matching email.
func (s *Store) UpdateUser(ctx context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.users {
		if !strings.EqualFold(s.state.users[i].Email, u.Email) {
			continue
		}
		if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: s.state.users[i], After: u}); err != nil {
			return domain.User{}, err
		}
		s.state.users[i] = u
		return u, nil
	}
	return domain.User{}, domain.ErrNotFound{Entity: domain.EntityUser, Key: u.Email}
}

// DeleteUser removes the tourist account with a matching email.
func (s *Store) DeleteUser(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.users[:0]
	removed := false
	for _, u := range s.state.users {
		if strings.EqualFold(u.Email, email) && strings.EqualFold(string(u.UserType), string(domain.UserTypeUser)) {
			removed = true
			continue
		}
		kept = append(kept, u)
	}
	if !removed {
		return domain.ErrNotFound{Entity: domain.EntityUser, Key: email}
	}
	s.state.users = kept
	return nil
}

// ---- treks ----

// ListTreks returns a copy of the trek collection.
func (s *Store) ListTreks() []domain.Trek {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Trek(nil), s.state.treks...)
}

// FindTrek looks up a trek by id.
func (s *Store) FindTrek(id int) (domain.Trek, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ruleView{state: s.state}.FindTrek(id)
}

// AddTrek normalizes pricing, assigns the next id, and appends the record.
func (s *Store) AddTrek(ctx context.Context, t domain.Trek) (domain.Trek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	domain.NormalizeTrekPricing(&t)
	maxID := 0
	for _, existing := range s.state.treks {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	t.ID = maxID + 1
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityTrek, Action: domain.ActionCreate, After: t}); err != nil {
		return domain.Trek{}, err
	}
	s.state.treks = append(s.state.treks, t)
	return t, nil
}

// UpdateTrek normalizes pricing and replaces the trek with a matching id.
func (s *Store) UpdateTrek(ctx context.Context, t domain.Trek) (domain.Trek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	domain.NormalizeTrekPricing(&t)
	for i := range s.state.treks {
		if s.state.treks[i].ID != t.ID {
			continue
		}
		if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityTrek, Action: domain.ActionUpdate, Before: s.state.treks[i], After: t}); err != nil {
			return domain.Trek{}, err
		}
		s.state.treks[i] = t
		return t, nil
	}
	return domain.Trek{}, domain.ErrNotFound{Entity: domain.EntityTrek, Key: strconv.Itoa(t.ID)}
}

// DeleteTrek removes the trek with a matching id.
func (s *Store) DeleteTrek(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.treks[:0]
	removed := false
	for _, t := range s.state.treks {
		if t.ID == id {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return domain.ErrNotFound{Entity: domain.EntityTrek, Key: strconv.Itoa(id)}
	}
	s.state.treks = kept
	return nil
}

// ---- bookings ----

// ListBookings returns a copy of the booking collection.
func (s *Store) ListBookings() []domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Booking(nil), s.state.bookings...)
}

// FindBooking looks up a booking by internal id.
func (s *Store) FindBooking(id int) (domain.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.state.bookings {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Booking{}, false
}

// AddBooking assigns the next internal id and appends the record.
func (s *Store) AddBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxID := 0
	for _, existing := range s.state.bookings {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	b.ID = maxID + 1
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityBooking, Action: domain.ActionCreate, After: b}); err != nil {
		return domain.Booking{}, err
	}
	s.state.bookings = append(s.state.bookings, b)
	return b, nil
}

// DeleteBooking removes the booking with a matching internal id.
func (s *Store) DeleteBooking(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.bookings[:0]
	removed := false
	for _, b := range s.state.bookings {
		if b.ID == id {
			removed = true
			continue
		}
		kept = append(kept, b)
	}
	if !removed {
		return domain.ErrNotFound{Entity: domain.EntityBooking, Key: strconv.Itoa(id)}
	}
	s.state.bookings = kept
	return nil
}

// ---- emergencies ----

// ListEmergencies returns a copy of the emergency collection.
func (s *Store) ListEmergencies() []domain.Emergency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Emergency(nil), s.state.emergencies...)
}

// FindEmergency looks up an emergency by id.
func (s *Store) FindEmergency(id int) (domain.Emergency, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.state.emergencies {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Emergency{}, false
}

// AddEmergency assigns the next id and appends the record with defaults applied.
func (s *Store) AddEmergency(ctx context.Context, e domain.Emergency) (domain.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Severity == "" {
		e.Severity = domain.SeverityMedium
	}
	if e.Status == "" {
		e.Status = domain.StatusReported
	}
	if e.ReportedAtStr == "" {
		e.SetReportedAt(s.now())
	}
	domain.NormalizeEmergencyResolution(&e, s.now().Format(domain.DateTimeLayout))
	maxID := 0
	for _, existing := range s.state.emergencies {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	e.ID = maxID + 1
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityEmergency, Action: domain.ActionCreate, After: e}); err != nil {
		return domain.Emergency{}, err
	}
	s.state.emergencies = append(s.state.emergencies, e)
	return e, nil
}

// UpdateEmergency replaces the emergency with a matching id.
func (s *Store) UpdateEmergency(ctx context.Context, e domain.Emergency) (domain.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	domain.NormalizeEmergencyResolution(&e, s.now().Format(domain.DateTimeLayout))
	for i := range s.state.emergencies {
		if s.state.emergencies[i].ID != e.ID {
			continue
		}
		if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityEmergency, Action: domain.ActionUpdate, Before: s.state.emergencies[i], After: e}); err != nil {
			return domain.Emergency{}, err
		}
		s.state.emergencies[i] = e
		return e, nil
	}
	return domain.Emergency{}, domain.ErrNotFound{Entity: domain.EntityEmergency, Key: strconv.Itoa(e.ID)}
}

// DeleteEmergency removes the emergency with a matching id.
func (s *Store) DeleteEmergency(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.emergencies[:0]
	removed := false
	for _, e := range s.state.emergencies {
		if e.ID == id {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return domain.ErrNotFound{Entity: domain.EntityEmergency, Key: strconv.Itoa(id)}
	}
	s.state.emergencies = kept
	return nil
}
