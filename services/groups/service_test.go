package groups

import (
	"errors"
	"path/filepath"
	"testing"

	"reelparty/internal/database"
	"reelparty/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db.Repository)
}

func TestCreateGroupWithOwnerMembership(t *testing.T) {
	svc := newTestService(t)

	group, err := svc.Create("Movie Night", "acc1", "Alex")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if group.ID == "" || group.OwnerID != "acc1" {
		t.Fatalf("unexpected group: %+v", group)
	}
	if group.Policy.MediaScope != models.MediaScopeBoth || !group.Policy.PopularityFloor {
		t.Fatalf("expected default policy, got %+v", group.Policy)
	}

	member, err := svc.MemberFor(group.ID, "acc1")
	if err != nil {
		t.Fatalf("MemberFor() error = %v", err)
	}
	if member.Name != "Alex" {
		t.Fatalf("unexpected owner member: %+v", member)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create("  ", "acc1", "Alex"); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := svc.Create("Name", "", "Alex"); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("expected ErrOwnerRequired, got %v", err)
	}
}

func TestJoinAndMembers(t *testing.T) {
	svc := newTestService(t)

	group, _ := svc.Create("Movie Night", "acc1", "Alex")

	member, err := svc.Join(group.ID, "acc2", "Sam")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if member.GroupID != group.ID {
		t.Fatalf("unexpected member: %+v", member)
	}

	if _, err := svc.Join(group.ID, "acc2", "Sam Again"); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	members, err := svc.Members(group.ID)
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestJoinUnknownGroup(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Join("missing", "acc1", "Alex"); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}
}

func TestUpdatePolicyOwnerOnly(t *testing.T) {
	svc := newTestService(t)

	group, _ := svc.Create("Movie Night", "acc1", "Alex")

	p := group.Policy
	p.AllowedMovieRatings = []string{"G", "PG"}

	if _, err := svc.UpdatePolicy(group.ID, "acc2", p, false); !errors.Is(err, ErrNotGroupOwner) {
		t.Fatalf("expected ErrNotGroupOwner, got %v", err)
	}

	updated, err := svc.UpdatePolicy(group.ID, "acc1", p, false)
	if err != nil {
		t.Fatalf("UpdatePolicy() error = %v", err)
	}
	if len(updated.Policy.AllowedMovieRatings) != 2 {
		t.Fatalf("policy not applied: %+v", updated.Policy)
	}

	// Elevated callers bypass the owner check.
	if _, err := svc.UpdatePolicy(group.ID, "acc2", p, true); err != nil {
		t.Fatalf("elevated UpdatePolicy() error = %v", err)
	}
}

func TestUpdatePolicyValidation(t *testing.T) {
	svc := newTestService(t)

	group, _ := svc.Create("Movie Night", "acc1", "Alex")

	bad := group.Policy
	bad.MediaScope = "podcasts"
	if _, err := svc.UpdatePolicy(group.ID, "acc1", bad, false); !errors.Is(err, ErrInvalidMediaScope) {
		t.Fatalf("expected ErrInvalidMediaScope, got %v", err)
	}

	bad = group.Policy
	bad.AllowedMovieRatings = []string{"NC-17"}
	if _, err := svc.UpdatePolicy(group.ID, "acc1", bad, false); !errors.Is(err, ErrInvalidRatings) {
		t.Fatalf("expected ErrInvalidRatings, got %v", err)
	}

	bad = group.Policy
	bad.ReleaseFrom = "2025-01-01"
	bad.ReleaseTo = "2020-01-01"
	if _, err := svc.UpdatePolicy(group.ID, "acc1", bad, false); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}

	bad = group.Policy
	bad.ReleaseFrom = "not-a-date"
	if _, err := svc.UpdatePolicy(group.ID, "acc1", bad, false); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for malformed date, got %v", err)
	}
}

func TestUpdatePolicyDefaultsVoteFloor(t *testing.T) {
	svc := newTestService(t)

	group, _ := svc.Create("Movie Night", "acc1", "Alex")

	p := models.ContentPolicy{MediaScope: models.MediaScopeMovies, PopularityFloor: true}
	updated, err := svc.UpdatePolicy(group.ID, "acc1", p, false)
	if err != nil {
		t.Fatalf("UpdatePolicy() error = %v", err)
	}
	if updated.Policy.MinVoteCount != models.DefaultMinVoteCount {
		t.Fatalf("expected default vote floor, got %d", updated.Policy.MinVoteCount)
	}
}

func TestDeleteGroup(t *testing.T) {
	svc := newTestService(t)

	group, _ := svc.Create("Movie Night", "acc1", "Alex")

	if err := svc.Delete(group.ID, "acc2", false); !errors.Is(err, ErrNotGroupOwner) {
		t.Fatalf("expected ErrNotGroupOwner, got %v", err)
	}
	if err := svc.Delete(group.ID, "acc1", false); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(group.ID); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound after delete, got %v", err)
	}
}
