// Package jsonfile implements the canonical trekcore persistence backend: one
// pretty-printed JSON array file per entity collection under a data directory.
// Every operation is a load-mutate-save cycle against the filesystem; the store
// keeps no cache, so readers always observe the latest committed file.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trekcore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.PersistentStore = (*Store)(nil)
	_ domain.RuleView        = (*Store)(nil)
)

// Entity file names under the data directory.
const (
	attractionsFile = "attractions.json"
	guidesFile      = "guides.json"
	usersFile       = "users.json"
	treksFile       = "treks.json"
	bookingsFile    = "bookings.json"
	emergenciesFile = "emergencies.json"
)

var entityFiles = []string{
	attractionsFile,
	guidesFile,
	usersFile,
	treksFile,
	bookingsFile,
	emergenciesFile,
}

// Store is a flat-file persistent store. Writers to the same entity file are
// serialized by a per-file mutex; identifier assignment happens under that
// mutex from a fresh reload, so ids are unique as long as no other process
// writes the same directory.
type Store struct {
	dir    string
	engine *domain.RulesEngine
	log    zerolog.Logger
	locks  map[string]*sync.Mutex
	now    func() time.Time
}

// NewStore creates the data directory and any missing entity files, each
// initialized to an empty JSON array.
func NewStore(dir string, engine *domain.RulesEngine, log zerolog.Logger) (*Store, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{
		dir:    dir,
		engine: engine,
		log:    log.With().Str("component", "jsonfile").Logger(),
		locks:  make(map[string]*sync.Mutex, len(entityFiles)),
		now:    time.Now,
	}
	for _, f := range entityFiles {
		s.locks[f] = &sync.Mutex{}
		if err := s.initFile(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Dir returns the configured data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(file string) string {
	return filepath.Join(s.dir, file)
}

func (s *Store) initFile(file string) error {
	path := s.path(file)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte("[]"), 0o640); err != nil {
		return fmt.Errorf("initialize %s: %w", path, err)
	}
	return nil
}

// loadAll reads and decodes a full collection. A missing file is recreated
// empty; unreadable or corrupt content degrades to an empty collection after
// logging. Corrupt payloads are quarantined to a timestamped sidecar first so
// that a later save of the degraded state never destroys the only copy.
func loadAll[T any](s *Store, file string) []T {
	path := s.path(file)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if initErr := s.initFile(file); initErr != nil {
			s.log.Error().Err(initErr).Str("file", file).Msg("recreate missing entity file")
		}
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("file", file).Msg("read entity file")
		return nil
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		s.quarantine(file, raw, err)
		return nil
	}
	return items
}

// saveAll serializes the full collection and atomically replaces the file.
func saveAll[T any](s *Store, file string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", file, err)
	}
	path := s.path(file)
	tmp, err := os.CreateTemp(s.dir, "."+file+".tmp-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", file, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", file, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", file, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", file, err)
	}
	return nil
}

// quarantine moves a corrupt payload aside and reinitializes the entity file.
func (s *Store) quarantine(file string, raw []byte, cause error) {
	sidecar := s.path(file) + ".corrupt-" + strconv.FormatInt(s.now().UnixNano(), 10)
	if err := os.WriteFile(sidecar, raw, 0o640); err != nil {
		s.log.Error().Err(err).Str("file", file).Msg("write quarantine sidecar")
		return
	}
	if err := os.WriteFile(s.path(file), []byte("[]"), 0o640); err != nil {
		s.log.Error().Err(err).Str("file", file).Msg("reset corrupt entity file")
	}
	s.log.Error().Err(cause).Str("file", file).Str("quarantine", sidecar).
		Msg("corrupt entity file quarantined; collection degraded to empty")
}

// evaluate runs the rules engine for a pending change. Blocking violations
// abort the mutation; warnings are logged and the save proceeds.
func (s *Store) evaluate(ctx context.Context, change domain.Change) error {
	res, err := s.engine.Evaluate(ctx, s, []domain.Change{change})
	if err != nil {
		return err
	}
	if res.HasBlocking() {
		return domain.RuleViolationError{Result: res}
	}
	for _, v := range res.Warnings() {
		s.log.Warn().Str("rule", v.Rule).Str("entity", string(v.Entity)).
			Str("entity_id", v.EntityID).Msg(v.Message)
	}
	return nil
}

func nextID[T any](items []T, id func(T) int) int {
	maxID := 0
	for _, item := range items {
		if v := id(item); v > maxID {
			maxID = v
		}
	}
	return maxID + 1
}

// ---- attractions ----

// ListAttractions returns the persisted attraction collection.
func (s *Store) ListAttractions() []domain.Attraction {
	return loadAll[domain.Attraction](s, attractionsFile)
}

// FindAttraction scans the collection for the given id.
func (s *Store) FindAttraction(id int) (domain.Attraction, bool) {
	for _, a := range s.ListAttractions() {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Attraction{}, false
}

// AddAttraction assigns the next id and appends the record.
func (s *Store) AddAttraction(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	mu := s.locks[attractionsFile]
	mu.Lock()
	defer mu.Unlock()
	items := loadAll[domain.Attraction](s, attractionsFile)
	a.ID = nextID(items, func(v domain.Attraction) int { return v.ID })
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityAttraction, Action: domain.ActionCreate, After: a}); err != nil {
		return domain.Attraction{}, err
	}
	items = append(items, a)
	if err := saveAll(s, attractionsFile, items); err != nil {
		return domain.Attraction{}, err
	}
	return a, nil
}

// UpdateAttraction replaces the record with a matching id.
func (s *Store) UpdateAttraction(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	mu := s.locks[attractionsFile]
	mu.Lock()
	defer mu.Unlock()
	items := loadAll[domain.Attraction](s, attractionsFile)
	for i := range items {
		if items[i].ID != a.ID {
			continue
		}
		if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityAttraction, Action: domain.ActionUpdate, Before: items[i], After: a}); err != nil {
			return domain.Attraction{}, err
		}
		items[i] = a
		if err := saveAll(s, attractionsFile, items); err != nil {
			return domain.Attraction{}, err
		}
		return a, nil
	}
	return domain.Attraction{}, domain.ErrNotFound{Entity: domain.EntityAttraction, Key: strconv.Itoa(a.ID)}
}

// DeleteAttraction removes the record with a matching id. Treks referencing it
// are left dangling; the query layer substitutes placeholders.
func (s *Store) DeleteAttraction(ctx context.Context, id int) error {
	return deleteByID(ctx, s, attractionsFile, domain.EntityAttraction, id,
		func(v domain.Attraction) int { return v.ID })
}

// ---- guides ----

// ListGuides returns the persisted guide roster, sorted by email.
func (s *Store) ListGuides() []domain.Guide {
	items := loadAll[domain.Guide](s, guidesFile)
	sort.Slice(items, func(i, j int) bool { return items[i].Email < items[j].Email })
	return items
}

// FindGuide scans for the email, case-insensitively.
func (s *Store) FindGuide(email string) (domain.Guide, bool) {
	for _, g := range loadAll[domain.Guide](s, guidesFile) {
		if strings.EqualFold(g.Email, email) {
			return g, true
		}
	}
	return domain.Guide{}, false
}

// AddGuide appends a guide after rejecting duplicate emails.
func (s *Store) AddGuide(ctx context.Context, g domain.Guide) (domain.Guide, error) {
	mu := s.locks[guidesFile]
	mu.Lock()
	defer mu.Unlock()
	items := loadAll[domain.Guide](s, guidesFile)
	for _, existing := range items {
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
	items = append(items, g)
	if err := saveAll(s, guidesFile, items); err != nil {
		return domain.Guide{}, err
	}
	return g, nil
}

// UpdateGuide replaces the guide with a matching email.
func (s *Store) UpdateGuide(ctx context.Context, g domain.Guide) (domain.Guide, error) {
	mu := s.locks[guidesFile]
	mu.Lock()
	defer mu.Unlock()
	items := loadAll[domain.Guide](s, guidesFile)
	for i := range items {
		if !strings.EqualFold(items[i].Email, g.Email) {
			continue
		}
		if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityGuide, Action: domain.ActionUpdate, Before: items[i], After: g}); err != nil {
			return domain.Guide{}, err
		}
		items[i] = g
		if err := saveAll(s, guidesFile, items); err != nil {
			return domain.Guide{}, err
		}
		return g, nil
	}
	return domain.Guide{}, domain.ErrNotFound{Entity: domain.EntityGuide, Key: g.Email}
}

// DeleteGuide removes the guide with a matching email.
func (s *Store) DeleteGuide(ctx context.Context, email string) error {
	mu := s.locks[guidesFile]
	mu.Lock()
	defer mu.Unlock()
	items := loadAll[domain.Guide](s, guidesFile)
	kept := items[:0]
	removed := false
	for _, g := range items {
		if strings.EqualFold(g.Email, email) {
			removed = true
			continue
		}
		kept = append(kept, g)
	}
	if !removed {
		return domain.ErrNotFound{Entity: domain.EntityGuide, Key: email}
	}
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityGuide, Action: domain.ActionDelete}); err != nil {
		return err
	}
	return saveAll(s, guidesFile, kept)
}

// ---- users ----

// ListUsers returns the persisted user collection, sorted by email.
func (s *Store) ListUsers() []domain.User {
	items := loadAll[domain.User](s, usersFile)
	sort.Slice(items, func(i, j int) bool { return items[i].Email < items[j].Email })
	return items
}

// FindUser scans for the email, case-insensitively.
func (s *Store) FindUser(email string) (domain.User, bool) {
	for _, u := range loadAll[domain.User](s, usersFile) {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return domain.User{}, false
}

// AddUser appends a user after rejecting duplicate emails.
func (s *Store) AddUser(ctx context.Context, u domain.User) (domain.User, error) {
	mu := s.locks[usersFile]
	mu.Lock()
	defer mu.Unlock()
	items := loadAll[domain.User](s, usersFile)
	for _, existing := range items {
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
	items = append(items, u)
	if err := saveAll(s, usersFile, items); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// UpdateUser replaces the user with a matching email.
func (s *Store) UpdateUser(ctx context.Context, u domain.User) (domain.User, error) {
	mu := s.locks[usersFile]
	mu.Lock()
	defer mu.Unlock()
	items := loadAll[domain.User](s, usersFile)
	for i := range items {
		if !strings.EqualFold(items[i].Email, u.Email) {
			continue
		}
		if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: items[i], After: u}); err != nil {
			return domain.User{}, err
		}
		items[i] = u
		if err := saveAll(s, usersFile, items); err != nil {
			return domain.User{}, err
		}
		return u, nil
	}
	return domain.User{}, domain.ErrNotFound{Entity: domain.EntityUser, Key: u.Email}
}

// DeleteUser removes the tourist account with a matching email. Admin accounts
// share the file but are not deletable through this operation.
func (s *Store) DeleteUser(ctx context.Context, email string) error {
	mu := s.locks[usersFile]
	mu.Lock()
	defer mu.Unlock()
	items := loadAll[domain.User](s, usersFile)
	kept := items[:0]
	removed := false
	for _, u := range items {
		if strings.EqualFold(u.Email, email) && strings.EqualFold(string(u.UserType), string(domain.UserTypeUser)) {
			removed = true
			continue
		}
		kept = append(kept, u)
	}
	if !removed {
		return domain.ErrNotFound{Entity: domain.EntityUser, Key: email}
	}
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityUser, Action: domain.ActionDelete}); err != nil {
		return err
	}
	return saveAll(s, usersFile, kept)
}

// ---- treks ----

// ListTreks returns the persisted trek collection.
func (s *Store) ListTreks() []domain.Trek {
	return loadAll[domain.Trek](s, treksFile)
}

// FindTrek scans the collection for the given id.
func (s *Store) FindTrek(id int) (domain.Trek, bool) {
	for _, t := range s.ListTreks() {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Trek{}, false
}

// AddTrek normalizes pricing, assigns the next id, and appends the record.
func (s *Store) AddTrek(ctx context.Context, t domain.Trek) (domain.Trek, error) {
	mu := s.locks[treksFile]
	mu.Lock()
	defer mu.Unlock()
	domain.NormalizeTrekPricing(&t)
	items := loadAll[domain.Trek](s, treksFile)
	t.ID = nextID(items, func(v domain.Trek) int { return v.ID })
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityTrek, Action: domain.ActionCreate, After: t}); err != nil {
		return domain.Trek{}, err
	}
	items = append(items, t)
	if err := saveAll(s, treksFile, items); err != nil {
		return domain.Trek{}, err
	}
	return t, nil
}

// UpdateTrek normalizes pricing and replaces the trek with a matching id.
func (s *Store) UpdateTrek(ctx context.Context, t domain.Trek) (domain.Trek, error) {
	mu := s.locks[treksFile]
	mu.Lock()
	defer mu.Unlock()
	domain.NormalizeTrekPricing(&t)
	items := loadAll[domain.Trek](s, treksFile)
	for i := range items {
		if items[i].ID != t.ID {
			continue
		}
		if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityTrek, Action: domain.ActionUpdate, Before: items[i], After: t}); err != nil {
			return domain.Trek{}, err
		}
		items[i] = t
		if err := saveAll(s, treksFile, items); err != nil {
			return domain.Trek{}, err
		}
		return t, nil
	}
	return domain.Trek{}, domain.ErrNotFound{Entity: domain.EntityTrek, Key: strconv.Itoa(t.ID)}
}

// DeleteTrek removes the trek with a matching id.
func (s *Store) DeleteTrek(ctx context.Context, id int) error {
	return deleteByID(ctx, s, treksFile, domain.EntityTrek, id,
		func(v domain.Trek) int { return v.ID })
}

// ---- bookings ----

// ListBookings returns the persisted booking collection.
func (s *Store) ListBookings() []domain.Booking {
	return loadAll[domain.Booking](s, bookingsFile)
}

// FindBooking scans the collection for the given internal id.
func (s *Store) FindBooking(id int) (domain.Booking, bool) {
	for _, b := range s.ListBookings() {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Booking{}, false
}

// AddBooking assigns the next internal id and appends the record. The public
// booking id must already be set by the caller and is stored as-is.
func (s *Store) AddBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	mu := s.locks[bookingsFile]
	mu.Lock()
	defer mu.Unlock()
	items := loadAll[domain.Booking](s, bookingsFile)
	b.ID = nextID(items, func(v domain.Booking) int { return v.ID })
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityBooking, Action: domain.ActionCreate, After: b}); err != nil {
		return domain.Booking{}, err
	}
	items = append(items, b)
	if err := saveAll(s, bookingsFile, items); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

// DeleteBooking removes the booking with a matching internal id.
func (s *Store) DeleteBooking(ctx context.Context, id int) error {
	return deleteByID(ctx, s, bookingsFile, domain.EntityBooking, id,
		func(v domain.Booking) int { return v.ID })
}

// ---- emergencies ----

// ListEmergencies returns the persisted emergency collection.
func (s *Store) ListEmergencies() []domain.Emergency {
	return loadAll[domain.Emergency](s, emergenciesFile)
}

// FindEmergency scans the collection for the given id.
func (s *Store) FindEmergency(id int) (domain.Emergency, bool) {
	for _, e := range s.ListEmergencies() {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Emergency{}, false
}

// AddEmergency assigns the next id and appends the record. Missing severity
// and status default to Medium and Reported.
func (s *Store) AddEmergency(ctx context.Context, e domain.Emergency) (domain.Emergency, error) {
	mu := s.locks[emergenciesFile]
	mu.Lock()
	defer mu.Unlock()
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
	items := loadAll[domain.Emergency](s, emergenciesFile)
	e.ID = nextID(items, func(v domain.Emergency) int { return v.ID })
	if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityEmergency, Action: domain.ActionCreate, After: e}); err != nil {
		return domain.Emergency{}, err
	}
	items = append(items, e)
	if err := saveAll(s, emergenciesFile, items); err != nil {
		return domain.Emergency{}, err
	}
	return e, nil
}

// UpdateEmergency replaces the emergency with a matching id, stamping or
// clearing the resolution timestamp according to the new status.
func (s *Store) UpdateEmergency(ctx context.Context, e domain.Emergency) (domain.Emergency, error) {
	mu := s.locks[emergenciesFile]
	mu.Lock()
	defer mu.Unlock()
	domain.NormalizeEmergencyResolution(&e, s.now().Format(domain.DateTimeLayout))
	items := loadAll[domain.Emergency](s, emergenciesFile)
	for i := range items {
		if items[i].ID != e.ID {
			continue
		}
		if err := s.evaluate(ctx, domain.Change{Entity: domain.EntityEmergency, Action: domain.ActionUpdate, Before: items[i], After: e}); err != nil {
			return domain.Emergency{}, err
		}
		items[i] = e
		if err := saveAll(s, emergenciesFile, items); err != nil {
			return domain.Emergency{}, err
		}
		return e, nil
	}
	return domain.Emergency{}, domain.ErrNotFound{Entity: domain.EntityEmergency, Key: strconv.Itoa(e.ID)}
}

// DeleteEmergency removes the emergency with a matching id.
func (s *Store) DeleteEmergency(ctx context.Context, id int) error {
	return deleteByID(ctx, s, emergenciesFile, domain.EntityEmergency, id,
		func(v domain.Emergency) int { return v.ID })
}

// deleteByID removes all records matching an integer id from one entity file.
func deleteByID[T any](ctx context.Context, s *Store, file string, entity domain.EntityType, id int, idOf func(T) int) error {
	mu := s.locks[file]
	mu.Lock()
	defer mu.Unlock()
	items := loadAll[T](s, file)
	kept := items[:0]
	removed := false
	for _, item := range items {
		if idOf(item) == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return domain.ErrNotFound{Entity: entity, Key: strconv.Itoa(id)}
	}
	if err := s.evaluate(ctx, domain.Change{Entity: entity, Action: domain.ActionDelete}); err != nil {
		return err
	}
	return saveAll(s, file, kept)
}
