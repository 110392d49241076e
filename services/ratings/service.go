package ratings

import (
	"errors"
	"strings"
	"time"

	"reelparty/internal/database"
	"reelparty/models"
)

var (
	ErrTitleIDRequired  = errors.New("title id is required")
	ErrMemberNotFound   = errors.New("member not found in this group")
	ErrScoreOutOfRange  = errors.New("score must be between 1 and 10")
	ErrInvalidMediaType = errors.New("unknown media type")
)

const (
	MinScore = 1
	MaxScore = 10
)

// Service records member ratings in the shared store. The rated set it
// exposes is the authoritative dedup source for queue refills.
type Service struct {
	repo *database.Repository
}

// NewService creates a ratings service over the shared repository.
func NewService(repo *database.Repository) *Service {
	return &Service{repo: repo}
}

// Rate records (or replaces) a member's score for a title.
func (s *Service) Rate(groupID, memberID, titleID, mediaType, titleName string, score int) (models.Rating, error) {
	titleID = strings.TrimSpace(titleID)
	if titleID == "" {
		return models.Rating{}, ErrTitleIDRequired
	}
	if score < MinScore || score > MaxScore {
		return models.Rating{}, ErrScoreOutOfRange
	}
	mediaType = models.NormalizeMediaType(mediaType)
	if mediaType == "" {
		return models.Rating{}, ErrInvalidMediaType
	}

	member, err := s.repo.GetMember(strings.TrimSpace(memberID))
	if err != nil {
		return models.Rating{}, err
	}
	if member == nil || member.GroupID != strings.TrimSpace(groupID) {
		return models.Rating{}, ErrMemberNotFound
	}

	rating := models.Rating{
		GroupID:   member.GroupID,
		MemberID:  member.ID,
		TitleID:   titleID,
		MediaType: mediaType,
		TitleName: strings.TrimSpace(titleName),
		Score:     score,
		RatedAt:   time.Now().UTC(),
	}
	if err := s.repo.UpsertRating(&rating); err != nil {
		return models.Rating{}, err
	}
	return rating, nil
}

// RatedTitleIDs returns every title a member has rated in a group.
func (s *Service) RatedTitleIDs(groupID, memberID string) ([]string, error) {
	return s.repo.RatedTitleIDs(strings.TrimSpace(groupID), strings.TrimSpace(memberID))
}

// ForMember returns a member's ratings, newest first.
func (s *Service) ForMember(groupID, memberID string) ([]models.Rating, error) {
	return s.repo.GetMemberRatings(strings.TrimSpace(groupID), strings.TrimSpace(memberID))
}

// Results aggregates the group's ratings per title, best average first.
func (s *Service) Results(groupID string) ([]models.GroupResult, error) {
	return s.repo.GetGroupResults(strings.TrimSpace(groupID))
}
