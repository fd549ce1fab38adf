package memory

import (
	"context"
	"errors"
	"math"
	"testing"

	"trekcore/pkg/domain"
)

func TestAddAssignsSequentialIDs(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	for want := 1; want <= 3; want++ {
		a, err := s.AddAttraction(ctx, domain.Attraction{Name: "x"})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if a.ID != want {
			t.Fatalf("id = %d, want %d", a.ID, want)
		}
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	if _, err := s.AddUser(ctx, domain.User{Email: "pema@example.com"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := s.AddUser(ctx, domain.User{Email: "PEMA@example.com"})
	var dup domain.ErrDuplicateEmail
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestTrekPricingNormalizedOnWrite(t *testing.T) {
	s := NewStore(nil)
	trek, err := s.AddTrek(context.Background(), domain.Trek{HasDiscount: true, OriginalCost: 1000, DiscountPercent: 20})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if math.Abs(trek.Cost-800) > 1e-6 {
		t.Fatalf("cost = %v, want 800", trek.Cost)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	if _, err := s.AddAttraction(ctx, domain.Attraction{Name: "ABC"}); err != nil {
		t.Fatalf("add attraction: %v", err)
	}
	if _, err := s.AddGuide(ctx, domain.Guide{Email: "dawa@example.com"}); err != nil {
		t.Fatalf("add guide: %v", err)
	}
	if _, err := s.AddBooking(ctx, domain.Booking{BookingID: "BK1", TrekID: 1, UserEmail: "a@b.c"}); err != nil {
		t.Fatalf("add booking: %v", err)
	}

	snap := s.ExportState()
	restored := NewStore(nil)
	restored.ImportState(snap)

	if len(restored.ListAttractions()) != 1 || len(restored.ListGuides()) != 1 || len(restored.ListBookings()) != 1 {
		t.Fatal("restored state incomplete")
	}

	// The snapshot is a copy: mutating the source after export must not leak.
	if _, err := s.AddAttraction(ctx, domain.Attraction{Name: "second"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := len(restored.ListAttractions()); got != 1 {
		t.Fatalf("restored attractions = %d, want 1", got)
	}

	// Ids continue above imported state.
	a, err := restored.AddAttraction(ctx, domain.Attraction{Name: "next"})
	if err != nil {
		t.Fatalf("add to restored: %v", err)
	}
	if a.ID != 2 {
		t.Fatalf("id after import = %d, want 2", a.ID)
	}
}

func TestDeleteUserSkipsAdmins(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	if _, err := s.AddUser(ctx, domain.User{Email: "admin@example.com", UserType: domain.UserTypeAdmin}); err != nil {
		t.Fatalf("add: %v", err)
	}
	var notFound domain.ErrNotFound
	if err := s.DeleteUser(ctx, "admin@example.com"); !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEmergencyLifecycle(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	e, err := s.AddEmergency(ctx, domain.Emergency{GuideEmail: "dawa@example.com"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.Status != domain.StatusReported || e.Severity != domain.SeverityMedium {
		t.Fatalf("defaults not applied: %+v", e)
	}
	e.Status = domain.StatusResolved
	resolved, err := s.UpdateEmergency(ctx, e)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ResolvedAtStr == "" {
		t.Fatal("resolvedAt not stamped")
	}
}

func TestListCopiesAreIsolated(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.AddAttraction(context.Background(), domain.Attraction{Name: "original"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	list := s.ListAttractions()
	list[0].Name = "mutated"
	if got, _ := s.FindAttraction(1); got.Name != "original" {
		t.Fatalf("store state mutated through list copy: %q", got.Name)
	}
}
