package shortlist

import (
	"errors"
	"testing"

	"reelparty/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(t.TempDir())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func entry(titleID, name string, year int) models.ShortlistEntry {
	return models.ShortlistEntry{
		TitleID:   titleID,
		MediaType: models.MediaTypeMovie,
		Name:      name,
		Year:      year,
		AddedBy:   "m1",
	}
}

func TestAddAndList(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Add("g1", entry("tmdb:movie:1", "First", 2020)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := svc.Add("g1", entry("tmdb:movie:2", "Second", 2021)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	list, err := svc.List("g1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].TitleID != "tmdb:movie:1" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list[0].AddedAt.IsZero() {
		t.Fatal("AddedAt should be stamped on insert")
	}

	// Lists are per group.
	other, err := svc.List("g2")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected empty list for g2, got %+v", other)
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Add("g1", entry("tmdb:movie:1", "First", 2020)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := svc.Add("g1", entry("tmdb:movie:1", "Renamed", 2022)); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestAddRejectsFoldedDuplicateName(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Add("g1", entry("tmdb:movie:1", "Amélie", 2001)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	// Same name modulo accents and punctuation, same year.
	if _, err := svc.Add("g1", entry("tmdb:movie:2", "amelie!", 2001)); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry for folded name, got %v", err)
	}
	// A different year is a different film.
	if _, err := svc.Add("g1", entry("tmdb:movie:3", "Amelie", 2011)); err != nil {
		t.Fatalf("Add() with different year error = %v", err)
	}
}

func TestRemove(t *testing.T) {
	svc := newTestService(t)

	svc.Add("g1", entry("tmdb:movie:1", "First", 2020))
	svc.Add("g1", entry("tmdb:movie:2", "Second", 2021))

	if err := svc.Remove("g1", "tmdb:movie:1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	list, _ := svc.List("g1")
	if len(list) != 1 || list[0].TitleID != "tmdb:movie:2" {
		t.Fatalf("unexpected list after remove: %+v", list)
	}

	if err := svc.Remove("g1", "tmdb:movie:999"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestFoldKey(t *testing.T) {
	if foldKey("Amélie", 2001) != foldKey("amelie", 2001) {
		t.Fatal("accents should fold away")
	}
	if foldKey("Spider-Man: No Way Home", 2021) != foldKey("spiderman no way home", 2021) {
		t.Fatal("punctuation should fold away")
	}
	if foldKey("Dune", 1984) == foldKey("Dune", 2021) {
		t.Fatal("year must distinguish remakes")
	}
}
