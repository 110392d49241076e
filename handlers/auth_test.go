package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelparty/handlers"
	"reelparty/services/accounts"
	"reelparty/services/sessions"
)

// Helper to create accounts and sessions services and auth handler for testing.
func setupAuthHandler(t *testing.T) (*handlers.AuthHandler, *accounts.Service, *sessions.Service) {
	t.Helper()
	tmpDir := t.TempDir()

	accountsSvc, err := accounts.NewService(tmpDir)
	if err != nil {
		t.Fatalf("failed to create accounts service: %v", err)
	}

	sessionsSvc, err := sessions.NewService(tmpDir, sessions.DefaultSessionDuration)
	if err != nil {
		t.Fatalf("failed to create sessions service: %v", err)
	}

	handler := handlers.NewAuthHandler(accountsSvc, sessionsSvc)
	return handler, accountsSvc, sessionsSvc
}

func postJSON(t *testing.T, target string, body interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLogin_Success(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	req := postJSON(t, "/api/auth/login", handlers.LoginRequest{
		Username: "admin",
		Password: accounts.DefaultAdminPassword,
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp handlers.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Token == "" {
		t.Error("expected non-empty token")
	}
	if !resp.IsAdmin {
		t.Error("expected admin login to report isAdmin")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	req := postJSON(t, "/api/auth/login", handlers.LoginRequest{
		Username: "admin",
		Password: "not-the-password",
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestLogin_InvalidBody(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRegister_CreatesAccountAndSession(t *testing.T) {
	handler, _, sessionsSvc := setupAuthHandler(t)

	req := postJSON(t, "/api/auth/register", handlers.RegisterRequest{
		Username: "frida",
		Password: "longenough",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp handlers.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Username != "frida" {
		t.Errorf("expected username frida, got %q", resp.Username)
	}
	if resp.IsAdmin {
		t.Error("self-registered account must not be admin")
	}

	// The returned token is a live session.
	if _, err := sessionsSvc.Validate(resp.Token); err != nil {
		t.Fatalf("expected returned token to validate, got %v", err)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	handler, accountsSvc, _ := setupAuthHandler(t)

	if _, err := accountsSvc.Create("frida", "longenough"); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	req := postJSON(t, "/api/auth/register", handlers.RegisterRequest{
		Username: "FRIDA",
		Password: "alsolongenough",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	req := postJSON(t, "/api/auth/register", handlers.RegisterRequest{
		Username: "frida",
		Password: "short",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	handler, _, sessionsSvc := setupAuthHandler(t)

	session, err := sessionsSvc.Create("admin", true, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	if _, err := sessionsSvc.Validate(session.Token); err == nil {
		t.Fatal("expected session to be revoked")
	}
}

func TestMe_ReturnsAccount(t *testing.T) {
	handler, accountsSvc, sessionsSvc := setupAuthHandler(t)

	account, err := accountsSvc.Create("frida", "longenough")
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	session, err := sessionsSvc.Create(account.ID, false, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp handlers.AccountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != account.ID {
		t.Errorf("expected account ID %q, got %q", account.ID, resp.ID)
	}
}

func TestMe_NoToken(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestChangePassword_Success(t *testing.T) {
	handler, accountsSvc, sessionsSvc := setupAuthHandler(t)

	account, err := accountsSvc.Create("frida", "oldpassword")
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	session, err := sessionsSvc.Create(account.ID, false, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	req := postJSON(t, "/api/auth/password", handlers.ChangePasswordRequest{
		CurrentPassword: "oldpassword",
		NewPassword:     "newpassword",
	})
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := accountsSvc.Authenticate("frida", "newpassword"); err != nil {
		t.Fatalf("expected new password to authenticate, got %v", err)
	}
	if _, err := accountsSvc.Authenticate("frida", "oldpassword"); err == nil {
		t.Fatal("expected old password to stop working")
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	handler, accountsSvc, sessionsSvc := setupAuthHandler(t)

	account, err := accountsSvc.Create("frida", "oldpassword")
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	session, err := sessionsSvc.Create(account.ID, false, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	req := postJSON(t, "/api/auth/password", handlers.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "newpassword",
	})
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}
