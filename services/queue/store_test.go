package queue

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/spf13/afero"

	"reelparty/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(afero.NewMemMapFs(), "/queues", true)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestNewStoreRequiresDir(t *testing.T) {
	if _, err := NewStore(afero.NewMemMapFs(), "  ", false); err != ErrStorageDirRequired {
		t.Fatalf("expected ErrStorageDirRequired, got %v", err)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	state := State{
		Buffer: []models.QueueItem{
			{TitleID: "tmdb:movie:550", MediaType: "movie", TMDBID: 550, Name: "Fight Club"},
		},
		Seen:  []string{"tmdb:movie:603"},
		Rated: []string{"tmdb:series:1396"},
	}
	state.Cursor.ResetFor("fp-1")
	state.Cursor.Advance("movie", 1, 40, 20)

	if err := store.Save("g1", "m1", state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := store.Load("g1", "m1")
	if len(got.Buffer) != 1 || got.Buffer[0].TitleID != "tmdb:movie:550" {
		t.Fatalf("unexpected buffer: %+v", got.Buffer)
	}
	if got.Cursor.Fingerprint != "fp-1" || got.Cursor.PageFor("movie") != 2 {
		t.Fatalf("unexpected cursor: %+v", got.Cursor)
	}
	if len(got.Seen) != 1 || len(got.Rated) != 1 {
		t.Fatalf("unexpected ledgers: seen=%v rated=%v", got.Seen, got.Rated)
	}
}

func TestLoadMissingStateIsEmpty(t *testing.T) {
	store := newTestStore(t)

	state := store.Load("g1", "nobody")
	if len(state.Buffer) != 0 || len(state.Seen) != 0 || len(state.Rated) != 0 {
		t.Fatalf("expected empty state, got %+v", state)
	}
	if state.Cursor.NextPage == nil || state.Cursor.Exhausted == nil {
		t.Fatal("expected initialized cursor maps")
	}
}

func TestLoadCorruptStateStartsFresh(t *testing.T) {
	store := newTestStore(t)

	path := store.statePath("g1", "m1")
	if err := afero.WriteFile(store.fs, path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	state := store.Load("g1", "m1")
	if len(state.Buffer) != 0 {
		t.Fatalf("expected empty buffer, got %+v", state.Buffer)
	}
}

func TestLoadDropsInvalidBufferEntries(t *testing.T) {
	store := newTestStore(t)

	state := State{
		Buffer: []models.QueueItem{
			{TitleID: "tmdb:movie:550", Name: "Fight Club"},
			{TitleID: "", Name: "no id"},
			{TitleID: "tmdb:movie:550", Name: "duplicate"},
			{TitleID: "tmdb:movie:603", Name: "The Matrix"},
		},
		Seen: []string{"a", "", "a", "b"},
	}
	if err := store.Save("g1", "m1", state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := store.Load("g1", "m1")
	if len(got.Buffer) != 2 {
		t.Fatalf("expected 2 buffer entries, got %+v", got.Buffer)
	}
	if got.Buffer[0].Name != "Fight Club" || got.Buffer[1].Name != "The Matrix" {
		t.Fatalf("unexpected survivors: %+v", got.Buffer)
	}
	if len(got.Seen) != 2 {
		t.Fatalf("expected deduped seen ledger, got %v", got.Seen)
	}
}

func TestLoadMigratesLegacySeenFile(t *testing.T) {
	store := newTestStore(t)

	legacy := store.legacySeenPath("g1", "m1")
	data, _ := json.Marshal([]string{"tmdb:movie:1", "tmdb:movie:2"})
	if err := afero.WriteFile(store.fs, legacy, data, 0o644); err != nil {
		t.Fatalf("seed legacy file: %v", err)
	}

	state := store.Load("g1", "m1")
	if len(state.Seen) != 2 {
		t.Fatalf("expected migrated seen entries, got %v", state.Seen)
	}

	if _, err := store.fs.Stat(legacy); err == nil {
		t.Fatal("expected legacy file to be removed")
	}

	// The migrated ledger must survive a plain reload.
	state = store.Load("g1", "m1")
	if len(state.Seen) != 2 {
		t.Fatalf("migration did not persist, got %v", state.Seen)
	}
}

func TestCapSeenEvictsOldestFirst(t *testing.T) {
	seen := make([]string, 0, SeenRetention+5)
	for i := 0; i < SeenRetention+5; i++ {
		seen = append(seen, fmt.Sprintf("tmdb:movie:%d", i))
	}

	capped := capSeen(seen)
	if len(capped) != SeenRetention {
		t.Fatalf("expected %d entries, got %d", SeenRetention, len(capped))
	}
	if capped[0] != "tmdb:movie:5" {
		t.Fatalf("expected oldest entries evicted, got first=%s", capped[0])
	}
	if capped[len(capped)-1] != fmt.Sprintf("tmdb:movie:%d", SeenRetention+4) {
		t.Fatalf("expected newest entry retained, got last=%s", capped[len(capped)-1])
	}
}

func TestCursorAdvance(t *testing.T) {
	var c Cursor
	c.ResetFor("fp")

	c.Advance("movie", 1, 3, 20)
	if c.PageFor("movie") != 2 || c.Exhausted["movie"] {
		t.Fatalf("unexpected cursor after page 1: %+v", c)
	}

	c.Advance("movie", 2, 3, 20)
	c.Advance("movie", 3, 3, 20)
	if !c.Exhausted["movie"] {
		t.Fatal("expected exhaustion at final page")
	}
	if c.PageFor("movie") != 4 {
		t.Fatalf("expected next page 4, got %d", c.PageFor("movie"))
	}

	// An empty page exhausts even before the reported total.
	c.ResetFor("fp2")
	c.Advance("series", 1, 10, 0)
	if !c.Exhausted["series"] {
		t.Fatal("expected empty page to mark exhaustion")
	}
}

func TestCursorAllExhausted(t *testing.T) {
	var c Cursor
	c.ResetFor("fp")
	scope := []string{"movie", "series"}

	if c.AllExhausted(scope) {
		t.Fatal("fresh cursor must not report exhaustion")
	}
	c.Advance("movie", 1, 1, 5)
	if c.AllExhausted(scope) {
		t.Fatal("one media type left must not report exhaustion")
	}
	c.Advance("series", 1, 1, 5)
	if !c.AllExhausted(scope) {
		t.Fatal("expected exhaustion across full scope")
	}
	if c.AllExhausted(nil) {
		t.Fatal("empty scope must not report exhaustion")
	}
}
