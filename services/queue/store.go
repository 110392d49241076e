package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"reelparty/models"
)

var ErrStorageDirRequired = errors.New("storage directory not provided")

// Cursor tracks pagination progress per media type under one policy
// fingerprint. Page numbers only increase within a fingerprint; exhaustion
// is sticky until the fingerprint changes.
type Cursor struct {
	Fingerprint string          `json:"fingerprint"`
	NextPage    map[string]int  `json:"nextPage"`
	Exhausted   map[string]bool `json:"exhausted"`
}

// ResetFor reinitializes the cursor for a fingerprint: all pages back to 1,
// nothing exhausted.
func (c *Cursor) ResetFor(fingerprint string) {
	c.Fingerprint = fingerprint
	c.NextPage = make(map[string]int)
	c.Exhausted = make(map[string]bool)
}

// PageFor returns the next page to fetch for a media type (starting at 1).
func (c *Cursor) PageFor(mediaType string) int {
	if c.NextPage == nil {
		return 1
	}
	if page, ok := c.NextPage[mediaType]; ok && page > 0 {
		return page
	}
	return 1
}

// Advance records the outcome of fetching a page: the next-page counter
// moves forward, and the media type is marked exhausted when the upstream
// signals no more pages (empty page, or current page at/after the total).
func (c *Cursor) Advance(mediaType string, page, totalPages, resultCount int) {
	if c.NextPage == nil {
		c.NextPage = make(map[string]int)
	}
	if c.Exhausted == nil {
		c.Exhausted = make(map[string]bool)
	}
	if next := page + 1; next > c.NextPage[mediaType] {
		c.NextPage[mediaType] = next
	}
	if resultCount == 0 || (totalPages > 0 && page >= totalPages) {
		c.Exhausted[mediaType] = true
	}
}

// AllExhausted reports whether every media type in scope has been exhausted.
func (c *Cursor) AllExhausted(mediaTypes []string) bool {
	for _, mt := range mediaTypes {
		if !c.Exhausted[mt] {
			return false
		}
	}
	return len(mediaTypes) > 0
}

// State is everything persisted for one (group, member) queue: the ordered
// buffer of not-yet-rated candidates, the seen ledger, the local rated
// cache, and the discovery cursor.
type State struct {
	Buffer []models.QueueItem `json:"buffer"`
	Seen   []string           `json:"seen"`
	Rated  []string           `json:"rated"`
	Cursor Cursor             `json:"cursor"`
}

// Store persists queue state as one JSON file per (group, member). The
// filesystem is abstracted so tests run against an in-memory fs.
type Store struct {
	mu    sync.Mutex
	fs    afero.Fs
	dir   string
	debug bool
}

// NewStore creates a queue store rooted at dir. Pass nil for fs to use the
// OS filesystem.
func NewStore(fs afero.Fs, dir string, debug bool) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrStorageDirRequired
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	return &Store{fs: fs, dir: dir, debug: debug}, nil
}

func (s *Store) statePath(groupID, memberID string) string {
	return filepath.Join(s.dir, groupID, memberID+".json")
}

// legacySeenPath is the retired single-array seen file, migrated on load.
func (s *Store) legacySeenPath(groupID, memberID string) string {
	return filepath.Join(s.dir, groupID, memberID+"_seen.json")
}

// Load reads the state for a (group, member), migrating the legacy seen
// file when present. Corrupt or unparseable state is treated as empty.
func (s *Store) Load(groupID, memberID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(groupID, memberID)
}

func (s *Store) loadLocked(groupID, memberID string) State {
	var state State

	data, err := afero.ReadFile(s.fs, s.statePath(groupID, memberID))
	if err == nil && len(data) > 0 {
		if jsonErr := json.Unmarshal(data, &state); jsonErr != nil {
			if s.debug {
				log.Printf("[queue] corrupt state for %s/%s, starting fresh: %v", groupID, memberID, jsonErr)
			}
			state = State{}
		}
	}

	state = sanitize(state)

	if migrated := s.migrateLegacySeen(groupID, memberID, &state); migrated {
		if err := s.saveLocked(groupID, memberID, state); err != nil && s.debug {
			log.Printf("[queue] failed to persist migrated state for %s/%s: %v", groupID, memberID, err)
		}
	}

	return state
}

// migrateLegacySeen folds the old bare-array seen file into the state and
// deletes the old key. One-time, idempotent.
func (s *Store) migrateLegacySeen(groupID, memberID string, state *State) bool {
	path := s.legacySeenPath(groupID, memberID)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return false
	}

	var legacy []string
	if jsonErr := json.Unmarshal(data, &legacy); jsonErr == nil {
		known := make(map[string]bool, len(state.Seen))
		for _, id := range state.Seen {
			known[id] = true
		}
		for _, id := range legacy {
			id = strings.TrimSpace(id)
			if id == "" || known[id] {
				continue
			}
			state.Seen = append(state.Seen, id)
			known[id] = true
		}
		state.Seen = capSeen(state.Seen)
	} else if s.debug {
		log.Printf("[queue] corrupt legacy seen file for %s/%s, discarding: %v", groupID, memberID, jsonErr)
	}

	_ = s.fs.Remove(path)
	return true
}

// Save persists the state atomically (temp file + rename).
func (s *Store) Save(groupID, memberID string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(groupID, memberID, state)
}

func (s *Store) saveLocked(groupID, memberID string, state State) error {
	path := s.statePath(groupID, memberID)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create queue state dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue state: %w", err)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write queue state temp file: %w", err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace queue state file: %w", err)
	}
	return nil
}

// sanitize validates a loaded state field by field: buffer entries without a
// title id are dropped, duplicates collapse to the first occurrence, blank
// ledger entries are removed, and the seen cap is enforced.
func sanitize(state State) State {
	seenIDs := make(map[string]bool, len(state.Buffer))
	buffer := make([]models.QueueItem, 0, len(state.Buffer))
	for _, item := range state.Buffer {
		if strings.TrimSpace(item.TitleID) == "" || seenIDs[item.TitleID] {
			continue
		}
		seenIDs[item.TitleID] = true
		buffer = append(buffer, item)
	}
	state.Buffer = buffer

	state.Seen = capSeen(dedupeIDs(state.Seen))
	state.Rated = dedupeIDs(state.Rated)

	if state.Cursor.NextPage == nil {
		state.Cursor.NextPage = make(map[string]int)
	}
	if state.Cursor.Exhausted == nil {
		state.Cursor.Exhausted = make(map[string]bool)
	}
	return state
}

func dedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || known[id] {
			continue
		}
		known[id] = true
		out = append(out, id)
	}
	return out
}

// capSeen truncates the seen ledger to the most recent SeenRetention
// entries, evicting oldest first. A title evicted here may resurface later;
// bounded storage wins that tradeoff.
func capSeen(seen []string) []string {
	if len(seen) <= SeenRetention {
		return seen
	}
	return seen[len(seen)-SeenRetention:]
}
