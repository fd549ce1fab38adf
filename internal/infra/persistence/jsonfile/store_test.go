package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"trekcore/pkg/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), domain.DefaultRulesEngine(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestNewStoreInitializesEntityFiles(t *testing.T) {
	s := newTestStore(t)
	for _, f := range entityFiles {
		raw, err := os.ReadFile(filepath.Join(s.Dir(), f))
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if strings.TrimSpace(string(raw)) != "[]" {
			t.Fatalf("%s = %q, want empty array", f, raw)
		}
	}
}

func TestAddAndFetchFirstAttraction(t *testing.T) {
	s := newTestStore(t)
	created, err := s.AddAttraction(context.Background(), domain.Attraction{Name: "Everest Base Camp", Location: "Khumbu"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("first id = %d, want 1", created.ID)
	}
	got, ok := s.FindAttraction(1)
	if !ok {
		t.Fatal("attraction not found after add")
	}
	if got.Name != "Everest Base Camp" {
		t.Fatalf("name = %q", got.Name)
	}
}

func TestIDMonotonicityAfterDeletingHighest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		if _, err := s.AddAttraction(ctx, domain.Attraction{Name: name}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	if err := s.DeleteAttraction(ctx, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	created, err := s.AddAttraction(ctx, domain.Attraction{Name: "d"})
	if err != nil {
		t.Fatalf("add after delete: %v", err)
	}
	for _, a := range s.ListAttractions() {
		if a.ID >= created.ID && a.Name != "d" {
			t.Fatalf("new id %d does not exceed remaining id %d", created.ID, a.ID)
		}
	}
}

func TestReloadIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.AddAttraction(ctx, domain.Attraction{Name: "Langtang"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	first := s.ListAttractions()
	second := s.ListAttractions()
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("lengths = %d, %d, want 1, 1", len(first), len(second))
	}
	if first[0] != second[0] {
		t.Fatalf("reload changed record: %+v vs %+v", first[0], second[0])
	}

	// A fresh store over the same directory sees identical state.
	reopened, err := NewStore(s.Dir(), domain.DefaultRulesEngine(), zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	third := reopened.ListAttractions()
	if len(third) != 1 || third[0] != first[0] {
		t.Fatalf("reopened state diverged: %+v", third)
	}
}

func TestDuplicateGuideEmailRejectedCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.AddGuide(ctx, domain.Guide{Email: "dawa@example.com", FirstName: "Dawa"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := s.AddGuide(ctx, domain.Guide{Email: "DAWA@Example.COM", FirstName: "Imposter"})
	var dup domain.ErrDuplicateEmail
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
	if got := len(s.ListGuides()); got != 1 {
		t.Fatalf("guides = %d, want 1 (failed add must not modify collection)", got)
	}
}

func TestAddGuideDefaultsUserType(t *testing.T) {
	s := newTestStore(t)
	g, err := s.AddGuide(context.Background(), domain.Guide{Email: "mingma@example.com"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if g.UserType != domain.UserTypeGuide {
		t.Fatalf("userType = %q, want guide", g.UserType)
	}
}

func TestDeleteUserOnlyRemovesTourists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.AddUser(ctx, domain.User{Email: "admin@example.com", UserType: domain.UserTypeAdmin}); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if _, err := s.AddUser(ctx, domain.User{Email: "tourist@example.com"}); err != nil {
		t.Fatalf("add tourist: %v", err)
	}

	var notFound domain.ErrNotFound
	if err := s.DeleteUser(ctx, "admin@example.com"); !errors.As(err, &notFound) {
		t.Fatalf("deleting admin: err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteUser(ctx, "TOURIST@example.com"); err != nil {
		t.Fatalf("deleting tourist: %v", err)
	}
	if _, ok := s.FindUser("tourist@example.com"); ok {
		t.Fatal("tourist still present after delete")
	}
	if _, ok := s.FindUser("admin@example.com"); !ok {
		t.Fatal("admin removed")
	}
}

func TestAddTrekNormalizesPricing(t *testing.T) {
	s := newTestStore(t)
	trek, err := s.AddTrek(context.Background(), domain.Trek{
		Name:            "Manaslu Circuit",
		HasDiscount:     true,
		OriginalCost:    1000,
		DiscountPercent: 20,
		Cost:            1000,
		AttractionID:    1,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if math.Abs(trek.Cost-800) > 1e-6 {
		t.Fatalf("cost = %v, want 800", trek.Cost)
	}
}

func TestAddEmergencyDefaults(t *testing.T) {
	s := newTestStore(t)
	e, err := s.AddEmergency(context.Background(), domain.Emergency{GuideEmail: "dawa@example.com", Description: "altitude sickness"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.Severity != domain.SeverityMedium {
		t.Fatalf("severity = %q, want Medium", e.Severity)
	}
	if e.Status != domain.StatusReported {
		t.Fatalf("status = %q, want Reported", e.Status)
	}
	if e.ReportedAtStr == "" {
		t.Fatal("reportedAt not stamped")
	}
	if _, err := e.ReportedAt(); err != nil {
		t.Fatalf("reportedAt not parseable: %v", err)
	}
}

func TestResolveEmergencyStampsAndClears(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e, err := s.AddEmergency(ctx, domain.Emergency{GuideEmail: "dawa@example.com"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	e.Status = domain.StatusResolved
	resolved, err := s.UpdateEmergency(ctx, e)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ResolvedAtStr == "" {
		t.Fatal("resolvedAt not stamped on transition to Resolved")
	}

	resolved.Status = domain.StatusInProgress
	reopened, err := s.UpdateEmergency(ctx, resolved)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ResolvedAtStr != "" {
		t.Fatalf("resolvedAt = %q, want cleared", reopened.ResolvedAtStr)
	}
}

func TestUpdateMissingRecordReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	var notFound domain.ErrNotFound

	if _, err := s.UpdateTrek(ctx, domain.Trek{ID: 404}); !errors.As(err, &notFound) {
		t.Fatalf("update trek: err = %v, want ErrNotFound", err)
	}
	if _, err := s.UpdateGuide(ctx, domain.Guide{Email: "ghost@example.com"}); !errors.As(err, &notFound) {
		t.Fatalf("update guide: err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteBooking(ctx, 404); !errors.As(err, &notFound) {
		t.Fatalf("delete booking: err = %v, want ErrNotFound", err)
	}
}

func TestMissingFileRecreatedOnLoad(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Dir(), attractionsFile)
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := s.ListAttractions(); len(got) != 0 {
		t.Fatalf("attractions = %d, want 0", len(got))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not recreated: %v", err)
	}
}

func TestCorruptFileQuarantinedNotDestroyed(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Dir(), treksFile)
	corrupt := []byte(`[{"id": 1, "trekName": "broken"`)
	if err := os.WriteFile(path, corrupt, 0o640); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}

	if got := s.ListTreks(); len(got) != 0 {
		t.Fatalf("treks = %d, want 0 after corruption", len(got))
	}

	matches, err := filepath.Glob(path + ".corrupt-*")
	if err != nil || len(matches) != 1 {
		t.Fatalf("quarantine sidecars = %v (err %v), want exactly one", matches, err)
	}
	saved, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if string(saved) != string(corrupt) {
		t.Fatalf("sidecar content = %q, want original corrupt payload", saved)
	}

	// The entity file is reset and usable again.
	if _, err := s.AddTrek(context.Background(), domain.Trek{Name: "fresh", AttractionID: 1}); err != nil {
		t.Fatalf("add after quarantine: %v", err)
	}
}

func TestSaveWritesPrettyPrintedArray(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddAttraction(context.Background(), domain.Attraction{Name: "Poon Hill"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(s.Dir(), attractionsFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(raw), "[\n") {
		t.Fatalf("file not pretty printed: %q", raw[:min(len(raw), 20)])
	}
	var items []domain.Attraction
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Poon Hill" {
		t.Fatalf("round trip items: %+v", items)
	}
}

func TestBookingKeepsCallerAssignedPublicID(t *testing.T) {
	s := newTestStore(t)
	b, err := s.AddBooking(context.Background(), domain.Booking{BookingID: "BK17000000000000ab", TrekID: 5, UserEmail: "a@b.c"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if b.ID != 1 {
		t.Fatalf("internal id = %d, want 1", b.ID)
	}
	if b.BookingID != "BK17000000000000ab" {
		t.Fatalf("bookingId rewritten to %q", b.BookingID)
	}
}

type blockTrekCreates struct{}

func (blockTrekCreates) Name() string { return "block-trek-creates" }

func (r blockTrekCreates) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, ch := range changes {
		if ch.Entity == domain.EntityTrek && ch.Action == domain.ActionCreate {
			res.Violations = append(res.Violations, domain.Violation{
				Rule: r.Name(), Severity: domain.SeverityBlock, Message: "trek creation disabled", Entity: ch.Entity,
			})
		}
	}
	return res, nil
}

func TestBlockingRuleAbortsSave(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockTrekCreates{})
	s, err := NewStore(t.TempDir(), engine, zerolog.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = s.AddTrek(context.Background(), domain.Trek{Name: "blocked", AttractionID: 1, Cost: 100})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("err = %v, want RuleViolationError", err)
	}
	if got := len(s.ListTreks()); got != 0 {
		t.Fatalf("treks = %d, want 0 (blocked mutation must not persist)", got)
	}
}
