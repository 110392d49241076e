package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"reelparty/internal/auth"
	"reelparty/models"
	"reelparty/services/groups"
	"reelparty/services/invitations"
)

type groupsService interface {
	Create(name, ownerAccountID, ownerName string) (models.Group, error)
	Get(groupID string) (models.Group, error)
	ListForAccount(accountID string) ([]models.Group, error)
	UpdatePolicy(groupID, accountID string, p models.ContentPolicy, elevated bool) (models.Group, error)
	Join(groupID, accountID, name string) (models.Member, error)
	Members(groupID string) ([]models.Member, error)
	MemberFor(groupID, accountID string) (models.Member, error)
	Delete(groupID, accountID string, elevated bool) error
}

var _ groupsService = (*groups.Service)(nil)

type invitationsService interface {
	Create(groupID, createdBy string, expiresIn time.Duration) (models.Invitation, error)
	Validate(code string) (models.Invitation, error)
	MarkUsed(code, usedBy string) error
	ListForGroup(groupID string) []models.Invitation
}

var _ invitationsService = (*invitations.Service)(nil)

// GroupsHandler handles group and membership endpoints.
type GroupsHandler struct {
	Groups      groupsService
	Invitations invitationsService
}

func NewGroupsHandler(groupsSvc groupsService, invitationsSvc invitationsService) *GroupsHandler {
	return &GroupsHandler{Groups: groupsSvc, Invitations: invitationsSvc}
}

// Create makes a new group owned by the caller.
func (h *GroupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       string `json:"name"`
		MemberName string `json:"memberName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	group, err := h.Groups.Create(body.Name, auth.GetAccountID(r), body.MemberName)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, groups.ErrNameRequired) || errors.Is(err, groups.ErrOwnerRequired) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(group)
}

// List returns the caller's groups.
func (h *GroupsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Groups.ListForAccount(auth.GetAccountID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []models.Group{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// Get returns one group.
func (h *GroupsHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, err := h.Groups.Get(mux.Vars(r)["groupID"])
	if err != nil {
		h.writeGroupError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(group)
}

// UpdatePolicy replaces the group's content policy. Owner only (admins are
// elevated past the check).
func (h *GroupsHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var policy models.ContentPolicy
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&policy); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	group, err := h.Groups.UpdatePolicy(mux.Vars(r)["groupID"], auth.GetAccountID(r), policy, auth.IsAdmin(r))
	if err != nil {
		h.writeGroupError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(group)
}

// Members lists the group's members.
func (h *GroupsHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.Groups.Members(mux.Vars(r)["groupID"])
	if err != nil {
		h.writeGroupError(w, err)
		return
	}
	if members == nil {
		members = []models.Member{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(members)
}

// Delete removes a group.
func (h *GroupsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Groups.Delete(mux.Vars(r)["groupID"], auth.GetAccountID(r), auth.IsAdmin(r)); err != nil {
		h.writeGroupError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

// CreateInvitation issues a join code for the group.
func (h *GroupsHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupID"]

	// Membership is enforced by middleware; issuing codes is open to any
	// member, not only the owner.
	inv, err := h.Invitations.Create(groupID, auth.GetAccountID(r), 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(inv)
}

// ListInvitations lists a group's join codes, newest first.
func (h *GroupsHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	list := h.Invitations.ListForGroup(mux.Vars(r)["groupID"])

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// Join redeems a join code: the caller becomes a member of the code's group
// and the code is spent.
func (h *GroupsHandler) Join(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code       string `json:"code"`
		MemberName string `json:"memberName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inv, err := h.Invitations.Validate(body.Code)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, invitations.ErrInvitationNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	member, err := h.Groups.Join(inv.GroupID, auth.GetAccountID(r), body.MemberName)
	if err != nil {
		if errors.Is(err, groups.ErrAlreadyMember) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.writeGroupError(w, err)
		return
	}

	if err := h.Invitations.MarkUsed(inv.Code, auth.GetAccountID(r)); err != nil {
		// The join already happened; a lost code-spend only risks reuse.
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(member)
}

func (h *GroupsHandler) writeGroupError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, groups.ErrGroupNotFound), errors.Is(err, groups.ErrMemberNotFound):
		status = http.StatusNotFound
	case errors.Is(err, groups.ErrNotGroupOwner):
		status = http.StatusForbidden
	case errors.Is(err, groups.ErrInvalidMediaScope),
		errors.Is(err, groups.ErrInvalidRatings),
		errors.Is(err, groups.ErrInvalidWindow),
		errors.Is(err, groups.ErrNameRequired),
		errors.Is(err, groups.ErrOwnerRequired):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}
