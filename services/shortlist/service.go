package shortlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mozillazg/go-unidecode"

	"reelparty/models"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrTitleIDRequired    = errors.New("title id is required")
	ErrNameRequired       = errors.New("title name is required")
	ErrDuplicateEntry     = errors.New("title is already on the shortlist")
	ErrEntryNotFound      = errors.New("shortlist entry not found")
)

// Service manages per-group shortlists: fixed lists of titles a group rates
// through instead of (or alongside) the discovery queue.
type Service struct {
	mu  sync.Mutex
	dir string
}

// NewService creates a shortlist service storing one JSON file per group
// inside the provided directory.
func NewService(storageDir string) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create shortlist dir: %w", err)
	}
	return &Service{dir: storageDir}, nil
}

func (s *Service) path(groupID string) string {
	return filepath.Join(s.dir, groupID+".json")
}

// Add appends a title to the group's shortlist. Besides exact title-ID
// duplicates, entries that fold to the same name and year are rejected, so
// "Amélie (2001)" and "Amelie (2001)" cannot both land on the list.
func (s *Service) Add(groupID string, entry models.ShortlistEntry) (models.ShortlistEntry, error) {
	entry.TitleID = strings.TrimSpace(entry.TitleID)
	if entry.TitleID == "" {
		return models.ShortlistEntry{}, ErrTitleIDRequired
	}
	entry.Name = strings.TrimSpace(entry.Name)
	if entry.Name == "" {
		return models.ShortlistEntry{}, ErrNameRequired
	}
	entry.MediaType = models.NormalizeMediaType(entry.MediaType)
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked(groupID)
	if err != nil {
		return models.ShortlistEntry{}, err
	}

	key := foldKey(entry.Name, entry.Year)
	for _, existing := range entries {
		if existing.TitleID == entry.TitleID {
			return models.ShortlistEntry{}, ErrDuplicateEntry
		}
		if foldKey(existing.Name, existing.Year) == key {
			return models.ShortlistEntry{}, ErrDuplicateEntry
		}
	}

	entries = append(entries, entry)
	if err := s.saveLocked(groupID, entries); err != nil {
		return models.ShortlistEntry{}, err
	}
	return entry, nil
}

// Remove deletes a title from the group's shortlist.
func (s *Service) Remove(groupID, titleID string) error {
	titleID = strings.TrimSpace(titleID)
	if titleID == "" {
		return ErrTitleIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked(groupID)
	if err != nil {
		return err
	}

	kept := make([]models.ShortlistEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.TitleID != titleID {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(entries) {
		return ErrEntryNotFound
	}
	return s.saveLocked(groupID, kept)
}

// List returns the group's shortlist in insertion order.
func (s *Service) List(groupID string) ([]models.ShortlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(groupID)
}

// foldKey normalizes a name for duplicate detection: accents stripped,
// case-folded, punctuation dropped, year appended.
func foldKey(name string, year int) string {
	folded := strings.ToLower(unidecode.Unidecode(name))
	var b strings.Builder
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String() + "|" + strconv.Itoa(year)
}

func (s *Service) loadLocked(groupID string) ([]models.ShortlistEntry, error) {
	data, err := os.ReadFile(s.path(groupID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read shortlist: %w", err)
	}

	var entries []models.ShortlistEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode shortlist: %w", err)
	}

	kept := make([]models.ShortlistEntry, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.TitleID) == "" {
			continue
		}
		kept = append(kept, entry)
	}
	return kept, nil
}

func (s *Service) saveLocked(groupID string, entries []models.ShortlistEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode shortlist: %w", err)
	}

	path := s.path(groupID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write shortlist temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace shortlist file: %w", err)
	}
	return nil
}
