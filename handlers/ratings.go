package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"reelparty/internal/auth"
	"reelparty/models"
	"reelparty/services/groups"
	"reelparty/services/ratings"
)

type ratingsService interface {
	Rate(groupID, memberID, titleID, mediaType, titleName string, score int) (models.Rating, error)
	ForMember(groupID, memberID string) ([]models.Rating, error)
	Results(groupID string) ([]models.GroupResult, error)
}

var _ ratingsService = (*ratings.Service)(nil)

type queueMarker interface {
	MarkRated(groupID, memberID, titleID string) error
}

// RatingsHandler records scores and serves group results.
type RatingsHandler struct {
	Ratings ratingsService
	Groups  groupsService
	Queue   queueMarker
}

func NewRatingsHandler(ratingsSvc ratingsService, groupsSvc groupsService, queueSvc queueMarker) *RatingsHandler {
	return &RatingsHandler{Ratings: ratingsSvc, Groups: groupsSvc, Queue: queueSvc}
}

// Rate records the caller's score for a title and retires the title from
// their queue.
func (h *RatingsHandler) Rate(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupID"]

	member, err := h.Groups.MemberFor(groupID, auth.GetAccountID(r))
	if err != nil {
		writeRatingsError(w, err)
		return
	}

	var body struct {
		TitleID   string `json:"titleId"`
		MediaType string `json:"mediaType"`
		TitleName string `json:"titleName"`
		Score     int    `json:"score"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rating, err := h.Ratings.Rate(member.GroupID, member.ID, body.TitleID, body.MediaType, body.TitleName, body.Score)
	if err != nil {
		writeRatingsError(w, err)
		return
	}

	// Retire the title locally so it cannot resurface before the next
	// authoritative rated-set fetch.
	if h.Queue != nil {
		if err := h.Queue.MarkRated(member.GroupID, member.ID, rating.TitleID); err != nil {
			// Non-fatal: the shared store already has the rating.
			writeRatingsError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rating)
}

// Mine returns the caller's ratings in the group, newest first.
func (h *RatingsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupID"]

	member, err := h.Groups.MemberFor(groupID, auth.GetAccountID(r))
	if err != nil {
		writeRatingsError(w, err)
		return
	}

	list, err := h.Ratings.ForMember(member.GroupID, member.ID)
	if err != nil {
		writeRatingsError(w, err)
		return
	}
	if list == nil {
		list = []models.Rating{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// Results returns the group's aggregated scores, best average first.
func (h *RatingsHandler) Results(w http.ResponseWriter, r *http.Request) {
	results, err := h.Ratings.Results(mux.Vars(r)["groupID"])
	if err != nil {
		writeRatingsError(w, err)
		return
	}
	if results == nil {
		results = []models.GroupResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func writeRatingsError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, groups.ErrGroupNotFound),
		errors.Is(err, groups.ErrMemberNotFound),
		errors.Is(err, ratings.ErrMemberNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ratings.ErrTitleIDRequired),
		errors.Is(err, ratings.ErrScoreOutOfRange),
		errors.Is(err, ratings.ErrInvalidMediaType):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}
