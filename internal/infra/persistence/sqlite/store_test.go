package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"trekcore/pkg/domain"
)

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trekcore.db")
	ctx := context.Background()

	s, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.AddAttraction(ctx, domain.Attraction{Name: "Gokyo Lakes"}); err != nil {
		t.Fatalf("add attraction: %v", err)
	}
	if _, err := s.AddGuide(ctx, domain.Guide{Email: "dawa@example.com", FirstName: "Dawa"}); err != nil {
		t.Fatalf("add guide: %v", err)
	}
	trek, err := s.AddTrek(ctx, domain.Trek{Name: "Gokyo Trek", AttractionID: 1, GuideEmail: "dawa@example.com", Cost: 900})
	if err != nil {
		t.Fatalf("add trek: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, ok := reopened.FindTrek(trek.ID)
	if !ok {
		t.Fatal("trek missing after reopen")
	}
	if got.Name != "Gokyo Trek" || got.Cost != 900 {
		t.Fatalf("rehydrated trek = %+v", got)
	}
	if _, ok := reopened.FindGuide("DAWA@example.com"); !ok {
		t.Fatal("guide lookup not case-insensitive after reopen")
	}

	// Ids continue after rehydration.
	next, err := reopened.AddAttraction(ctx, domain.Attraction{Name: "Renjo La"})
	if err != nil {
		t.Fatalf("add after reopen: %v", err)
	}
	if next.ID != 2 {
		t.Fatalf("id after reopen = %d, want 2", next.ID)
	}
}

func TestDeletePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trekcore.db")
	ctx := context.Background()

	s, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.AddUser(ctx, domain.User{Email: "tourist@example.com"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.DeleteUser(ctx, "tourist@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if _, ok := reopened.FindUser("tourist@example.com"); ok {
		t.Fatal("deleted user resurrected after reopen")
	}
}

func TestFailedMutationDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trekcore.db")
	ctx := context.Background()

	s, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := s.AddGuide(ctx, domain.Guide{Email: "dawa@example.com"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err = s.AddGuide(ctx, domain.Guide{Email: "dawa@example.com"})
	var dup domain.ErrDuplicateEmail
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
	if got := len(s.ListGuides()); got != 1 {
		t.Fatalf("guides = %d, want 1", got)
	}
}
