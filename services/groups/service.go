package groups

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelparty/internal/database"
	"reelparty/models"
	"reelparty/services/policy"
)

var (
	ErrNameRequired      = errors.New("group name is required")
	ErrOwnerRequired     = errors.New("owner account is required")
	ErrGroupNotFound     = errors.New("group not found")
	ErrMemberNotFound    = errors.New("member not found")
	ErrAlreadyMember     = errors.New("account is already a member of this group")
	ErrNotGroupOwner     = errors.New("only the group owner can do this")
	ErrInvalidMediaScope = errors.New("media scope must be movie, series, or both")
	ErrInvalidRatings    = errors.New("certification allow list contains an unrecognized rating")
	ErrInvalidWindow     = errors.New("release window must be YYYY-MM-DD with from <= to")
)

// Service manages rating groups and their memberships.
type Service struct {
	repo *database.Repository
}

// NewService creates a groups service over the shared repository.
func NewService(repo *database.Repository) *Service {
	return &Service{repo: repo}
}

// Create makes a new group owned by the account, with the owner joined as
// its first member under the given display name.
func (s *Service) Create(name, ownerAccountID, ownerName string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, ErrNameRequired
	}
	ownerAccountID = strings.TrimSpace(ownerAccountID)
	if ownerAccountID == "" {
		return models.Group{}, ErrOwnerRequired
	}
	ownerName = strings.TrimSpace(ownerName)
	if ownerName == "" {
		ownerName = "Owner"
	}

	now := time.Now().UTC()
	group := models.Group{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerAccountID,
		Policy:    models.DefaultContentPolicy(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateGroup(&group); err != nil {
		return models.Group{}, err
	}

	member := models.Member{
		ID:        uuid.NewString(),
		GroupID:   group.ID,
		AccountID: ownerAccountID,
		Name:      ownerName,
		JoinedAt:  now,
	}
	if err := s.repo.AddMember(&member); err != nil {
		_ = s.repo.DeleteGroup(group.ID)
		return models.Group{}, fmt.Errorf("add owner membership: %w", err)
	}

	return group, nil
}

// Get returns a group by ID.
func (s *Service) Get(groupID string) (models.Group, error) {
	group, err := s.repo.GetGroup(strings.TrimSpace(groupID))
	if err != nil {
		return models.Group{}, err
	}
	if group == nil {
		return models.Group{}, ErrGroupNotFound
	}
	return *group, nil
}

// ListForAccount returns the groups an account belongs to.
func (s *Service) ListForAccount(accountID string) ([]models.Group, error) {
	return s.repo.GetGroupsForAccount(strings.TrimSpace(accountID))
}

// UpdatePolicy replaces a group's content policy. Only the owner may change
// it; admins go through the same path with elevated set by the caller.
func (s *Service) UpdatePolicy(groupID, accountID string, p models.ContentPolicy, elevated bool) (models.Group, error) {
	group, err := s.Get(groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !elevated && group.OwnerID != accountID {
		return models.Group{}, ErrNotGroupOwner
	}

	normalized, err := normalizePolicy(p)
	if err != nil {
		return models.Group{}, err
	}

	group.Policy = normalized
	group.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateGroupPolicy(&group); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// normalizePolicy validates and canonicalizes an incoming policy.
func normalizePolicy(p models.ContentPolicy) (models.ContentPolicy, error) {
	scope := strings.ToLower(strings.TrimSpace(p.MediaScope))
	switch scope {
	case "":
		scope = models.MediaScopeBoth
	case models.MediaScopeMovies, models.MediaScopeSeries, models.MediaScopeBoth:
	default:
		return models.ContentPolicy{}, ErrInvalidMediaScope
	}
	p.MediaScope = scope

	if p.PopularityFloor && p.MinVoteCount <= 0 {
		p.MinVoteCount = models.DefaultMinVoteCount
	}

	if !policy.ValidateRatings(models.MediaTypeMovie, p.AllowedMovieRatings) {
		return models.ContentPolicy{}, ErrInvalidRatings
	}
	if !policy.ValidateRatings(models.MediaTypeSeries, p.AllowedTVRatings) {
		return models.ContentPolicy{}, ErrInvalidRatings
	}

	p.ReleaseFrom = strings.TrimSpace(p.ReleaseFrom)
	p.ReleaseTo = strings.TrimSpace(p.ReleaseTo)
	if !validDate(p.ReleaseFrom) || !validDate(p.ReleaseTo) {
		return models.ContentPolicy{}, ErrInvalidWindow
	}
	if p.ReleaseFrom != "" && p.ReleaseTo != "" && p.ReleaseFrom > p.ReleaseTo {
		return models.ContentPolicy{}, ErrInvalidWindow
	}

	return p, nil
}

func validDate(date string) bool {
	if date == "" {
		return true
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// Join adds an account to a group under a display name.
func (s *Service) Join(groupID, accountID, name string) (models.Member, error) {
	group, err := s.Get(groupID)
	if err != nil {
		return models.Member{}, err
	}

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return models.Member{}, ErrOwnerRequired
	}

	existing, err := s.repo.GetMemberByAccount(group.ID, accountID)
	if err != nil {
		return models.Member{}, err
	}
	if existing != nil {
		return models.Member{}, ErrAlreadyMember
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Member"
	}

	member := models.Member{
		ID:        uuid.NewString(),
		GroupID:   group.ID,
		AccountID: accountID,
		Name:      name,
		JoinedAt:  time.Now().UTC(),
	}
	if err := s.repo.AddMember(&member); err != nil {
		return models.Member{}, err
	}
	return member, nil
}

// Members returns a group's members, oldest first.
func (s *Service) Members(groupID string) ([]models.Member, error) {
	if _, err := s.Get(groupID); err != nil {
		return nil, err
	}
	return s.repo.GetMembers(strings.TrimSpace(groupID))
}

// MemberFor returns the account's membership in a group.
func (s *Service) MemberFor(groupID, accountID string) (models.Member, error) {
	member, err := s.repo.GetMemberByAccount(strings.TrimSpace(groupID), strings.TrimSpace(accountID))
	if err != nil {
		return models.Member{}, err
	}
	if member == nil {
		return models.Member{}, ErrMemberNotFound
	}
	return *member, nil
}

// Delete removes a group and everything hanging off it.
func (s *Service) Delete(groupID, accountID string, elevated bool) error {
	group, err := s.Get(groupID)
	if err != nil {
		return err
	}
	if !elevated && group.OwnerID != accountID {
		return ErrNotGroupOwner
	}
	return s.repo.DeleteGroup(group.ID)
}
