package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"reelparty/internal/auth"
	"reelparty/models"
	"reelparty/services/groups"
	"reelparty/services/queue"
)

type queueService interface {
	EnsureQueue(ctx context.Context, groupID, memberID string, p models.ContentPolicy) (queue.Snapshot, error)
	Peek(groupID, memberID string, p models.ContentPolicy) (queue.Snapshot, error)
	Consume(groupID, memberID, titleID string) error
}

var _ queueService = (*queue.Service)(nil)

// QueueHandler serves the per-member discovery queue.
type QueueHandler struct {
	Queue  queueService
	Groups groupsService
}

func NewQueueHandler(queueSvc queueService, groupsSvc groupsService) *QueueHandler {
	return &QueueHandler{Queue: queueSvc, Groups: groupsSvc}
}

// memberAndPolicy resolves the caller's membership and the group's current
// policy for the routed group.
func (h *QueueHandler) memberAndPolicy(w http.ResponseWriter, r *http.Request) (models.Member, models.ContentPolicy, bool) {
	groupID := mux.Vars(r)["groupID"]

	group, err := h.Groups.Get(groupID)
	if err != nil {
		writeQueueError(w, err)
		return models.Member{}, models.ContentPolicy{}, false
	}

	member, err := h.Groups.MemberFor(groupID, auth.GetAccountID(r))
	if err != nil {
		writeQueueError(w, err)
		return models.Member{}, models.ContentPolicy{}, false
	}

	return member, group.Policy, true
}

// Get returns the caller's queue, refilling it when it has run low. This is
// the endpoint the rating screen polls; a healthy queue costs no upstream
// traffic.
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	member, policy, ok := h.memberAndPolicy(w, r)
	if !ok {
		return
	}

	snap, err := h.Queue.EnsureQueue(r.Context(), member.GroupID, member.ID, policy)
	if err != nil {
		writeQueueError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// Peek returns the queue as-is, without triggering a refill.
func (h *QueueHandler) Peek(w http.ResponseWriter, r *http.Request) {
	member, policy, ok := h.memberAndPolicy(w, r)
	if !ok {
		return
	}

	snap, err := h.Queue.Peek(member.GroupID, member.ID, policy)
	if err != nil {
		writeQueueError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// Skip removes a title from the caller's queue without rating it. The title
// lands in the seen ledger, so it will not come back on the next refill.
func (h *QueueHandler) Skip(w http.ResponseWriter, r *http.Request) {
	member, _, ok := h.memberAndPolicy(w, r)
	if !ok {
		return
	}

	var body struct {
		TitleID string `json:"titleId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Queue.Consume(member.GroupID, member.ID, body.TitleID); err != nil {
		writeQueueError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "skipped"})
}

func writeQueueError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, groups.ErrGroupNotFound), errors.Is(err, groups.ErrMemberNotFound):
		status = http.StatusNotFound
	case errors.Is(err, queue.ErrGroupIDRequired), errors.Is(err, queue.ErrMemberIDRequired):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}
