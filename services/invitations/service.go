package invitations

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-password/password"

	"reelparty/models"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrGroupIDRequired    = errors.New("group id is required")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationExpired  = errors.New("invitation has expired")
	ErrInvitationUsed     = errors.New("invitation has already been used")
	ErrInvalidCode        = errors.New("invalid invitation code")
)

const (
	// DefaultExpirationDuration is how long invitations are valid by default (7 days)
	DefaultExpirationDuration = 7 * 24 * time.Hour
	// CodeLength is the length of the generated join code. Codes are short
	// enough to read out loud; uniqueness is enforced against live codes.
	CodeLength = 8
	// codeDigits is how many of those characters are digits.
	codeDigits = 3
)

// Service manages single-use join codes for groups.
type Service struct {
	mu          sync.RWMutex
	path        string
	invitations map[string]models.Invitation
}

// NewService creates an invitations service storing data inside the provided directory.
func NewService(storageDir string) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create invitations dir: %w", err)
	}

	svc := &Service{
		path:        filepath.Join(storageDir, "invitations.json"),
		invitations: make(map[string]models.Invitation),
	}

	if err := svc.load(); err != nil {
		return nil, err
	}

	return svc, nil
}

// Create generates a new join code for a group.
func (s *Service) Create(groupID, createdBy string, expiresIn time.Duration) (models.Invitation, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return models.Invitation{}, ErrGroupIDRequired
	}
	if expiresIn <= 0 {
		expiresIn = DefaultExpirationDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.generateCodeLocked()
	if err != nil {
		return models.Invitation{}, err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	invitation := models.Invitation{
		ID:        id,
		Code:      code,
		GroupID:   groupID,
		CreatedBy: createdBy,
		ExpiresAt: now.Add(expiresIn),
		CreatedAt: now,
	}

	s.invitations[id] = invitation

	if err := s.saveLocked(); err != nil {
		delete(s.invitations, id)
		return models.Invitation{}, err
	}

	return invitation, nil
}

// generateCodeLocked produces a join code unique among still-valid
// invitations. Codes exclude ambiguous characters and carry a few digits so
// they survive being read over voice chat.
func (s *Service) generateCodeLocked() (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		raw, err := password.Generate(CodeLength, codeDigits, 0, true, false)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		code := strings.ToUpper(raw)

		taken := false
		for _, inv := range s.invitations {
			if inv.Code == code && inv.IsValid() {
				taken = true
				break
			}
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("generate join code: exhausted attempts")
}

// GetByCode finds an invitation by its join code. Codes are matched
// case-insensitively.
func (s *Service) GetByCode(code string) (models.Invitation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.Invitation{}, ErrInvalidCode
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Prefer a still-valid invitation when a retired one shares the code.
	var expired *models.Invitation
	for _, inv := range s.invitations {
		if inv.Code != code {
			continue
		}
		if inv.IsValid() {
			return inv, nil
		}
		inv := inv
		expired = &inv
	}
	if expired != nil {
		return *expired, nil
	}

	return models.Invitation{}, ErrInvitationNotFound
}

// Validate checks if a join code is usable (exists, not expired, not used).
func (s *Service) Validate(code string) (models.Invitation, error) {
	inv, err := s.GetByCode(code)
	if err != nil {
		return models.Invitation{}, err
	}

	if inv.UsedAt != nil {
		return models.Invitation{}, ErrInvitationUsed
	}

	if time.Now().After(inv.ExpiresAt) {
		return models.Invitation{}, ErrInvitationExpired
	}

	return inv, nil
}

// MarkUsed marks an invitation as used.
func (s *Service) MarkUsed(code string, usedBy string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.Lock()
	defer s.mu.Unlock()

	var foundID string
	for id, inv := range s.invitations {
		if inv.Code == code && inv.UsedAt == nil {
			foundID = id
			break
		}
	}

	if foundID == "" {
		return ErrInvitationNotFound
	}

	inv := s.invitations[foundID]
	if time.Now().After(inv.ExpiresAt) {
		return ErrInvitationExpired
	}

	now := time.Now().UTC()
	inv.UsedAt = &now
	inv.UsedBy = usedBy
	s.invitations[foundID] = inv

	return s.saveLocked()
}

// ListForGroup returns a group's invitations, newest first.
func (s *Service) ListForGroup(groupID string) []models.Invitation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invitations := make([]models.Invitation, 0)
	for _, inv := range s.invitations {
		if inv.GroupID == groupID {
			invitations = append(invitations, inv)
		}
	}

	sort.Slice(invitations, func(i, j int) bool {
		return invitations[i].CreatedAt.After(invitations[j].CreatedAt)
	})

	return invitations
}

// Delete removes an invitation.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invitations[id]; !ok {
		return ErrInvitationNotFound
	}

	delete(s.invitations, id)
	return s.saveLocked()
}

// CleanupExpired removes expired and used invitations older than the given duration.
func (s *Service) CleanupExpired(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var count int

	for id, inv := range s.invitations {
		if (time.Now().After(inv.ExpiresAt) && inv.ExpiresAt.Before(cutoff)) ||
			(inv.UsedAt != nil && inv.UsedAt.Before(cutoff)) {
			delete(s.invitations, id)
			count++
		}
	}

	if count > 0 {
		if err := s.saveLocked(); err != nil {
			return 0, err
		}
	}

	return count, nil
}

func (s *Service) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open invitations file: %w", err)
	}
	defer file.Close()

	var stored []models.Invitation
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode invitations: %w", err)
	}

	s.invitations = make(map[string]models.Invitation, len(stored))
	for _, inv := range stored {
		if strings.TrimSpace(inv.ID) == "" {
			continue
		}
		s.invitations[inv.ID] = inv
	}

	return nil
}

func (s *Service) saveLocked() error {
	invitations := make([]models.Invitation, 0, len(s.invitations))
	for _, inv := range s.invitations {
		invitations = append(invitations, inv)
	}

	sort.Slice(invitations, func(i, j int) bool {
		return invitations[i].CreatedAt.Before(invitations[j].CreatedAt)
	})

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create invitations temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(invitations); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode invitations: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync invitations: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close invitations temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace invitations file: %w", err)
	}

	return nil
}
