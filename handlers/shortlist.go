package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"reelparty/internal/auth"
	"reelparty/models"
	"reelparty/services/groups"
	"reelparty/services/shortlist"
)

type shortlistService interface {
	Add(groupID string, entry models.ShortlistEntry) (models.ShortlistEntry, error)
	Remove(groupID, titleID string) error
	List(groupID string) ([]models.ShortlistEntry, error)
}

var _ shortlistService = (*shortlist.Service)(nil)

// ShortlistHandler manages a group's fixed shortlist.
type ShortlistHandler struct {
	Shortlist shortlistService
	Groups    groupsService
}

func NewShortlistHandler(shortlistSvc shortlistService, groupsSvc groupsService) *ShortlistHandler {
	return &ShortlistHandler{Shortlist: shortlistSvc, Groups: groupsSvc}
}

// Add puts a title on the group's shortlist, attributed to the caller.
func (h *ShortlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupID"]

	member, err := h.Groups.MemberFor(groupID, auth.GetAccountID(r))
	if err != nil {
		writeShortlistError(w, err)
		return
	}

	var entry models.ShortlistEntry
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entry); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entry.AddedBy = member.ID

	added, err := h.Shortlist.Add(groupID, entry)
	if err != nil {
		writeShortlistError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(added)
}

// List returns the group's shortlist in insertion order.
func (h *ShortlistHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Shortlist.List(mux.Vars(r)["groupID"])
	if err != nil {
		writeShortlistError(w, err)
		return
	}
	if entries == nil {
		entries = []models.ShortlistEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// Remove takes a title off the shortlist.
func (h *ShortlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.Shortlist.Remove(vars["groupID"], vars["titleID"]); err != nil {
		writeShortlistError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "removed"})
}

func writeShortlistError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, groups.ErrGroupNotFound),
		errors.Is(err, groups.ErrMemberNotFound),
		errors.Is(err, shortlist.ErrEntryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shortlist.ErrDuplicateEntry):
		status = http.StatusConflict
	case errors.Is(err, shortlist.ErrTitleIDRequired), errors.Is(err, shortlist.ErrNameRequired):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}
