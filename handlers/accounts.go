package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"reelparty/services/accounts"
	"reelparty/services/sessions"
)

// AccountsHandler handles account management endpoints (admin only).
type AccountsHandler struct {
	accounts *accounts.Service
	sessions *sessions.Service
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(accountsSvc *accounts.Service, sessionsSvc *sessions.Service) *AccountsHandler {
	return &AccountsHandler{
		accounts: accountsSvc,
		sessions: sessionsSvc,
	}
}

// List returns all accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.accounts.List())
}

// Get returns a single account by ID.
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := h.accounts.Get(mux.Vars(r)["accountID"])
	if !ok {
		http.Error(w, `{"error": "account not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// RenameAccountRequest represents the rename request body.
type RenameAccountRequest struct {
	Username string `json:"username"`
}

// Rename changes an account's username.
func (h *AccountsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	accountID := mux.Vars(r)["accountID"]
	if err := h.accounts.Rename(accountID, req.Username); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, accounts.ErrAccountNotFound):
			status = http.StatusNotFound
		case errors.Is(err, accounts.ErrUsernameExists):
			status = http.StatusConflict
		case errors.Is(err, accounts.ErrUsernameRequired):
			status = http.StatusBadRequest
		}
		writeJSONError(w, status, err.Error())
		return
	}

	account, _ := h.accounts.Get(accountID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// Delete removes an account and revokes all of its sessions.
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountID"]

	if err := h.accounts.Delete(accountID); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, accounts.ErrAccountNotFound):
			status = http.StatusNotFound
		case errors.Is(err, accounts.ErrCannotDeleteAdmin), errors.Is(err, accounts.ErrCannotDeleteLastAcct):
			status = http.StatusForbidden
		}
		writeJSONError(w, status, err.Error())
		return
	}

	revoked := h.sessions.RevokeAllForAccount(accountID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":          "deleted",
		"sessionsRevoked": revoked,
	})
}
