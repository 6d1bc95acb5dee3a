package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *auth.TokenIssuer) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthHandler(store.NewUserStore(db), tokens, logger), tokens
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

type authResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
	Error   string       `json:"error"`
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) authResponse {
	t.Helper()
	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	h, tokens := setupAuthHandler(t)

	rec := post(h.Register, `{"name":"Alice","email":"Alice@Example.com","password":"hunter22"}`)
	expectStatus(t, rec, http.StatusCreated)
	reg := decodeAuth(t, rec)
	if reg.User.Email != "alice@example.com" {
		t.Errorf("email = %q, want lower-cased", reg.User.Email)
	}
	if reg.User.HouseholdID != nil {
		t.Error("new user should have no household")
	}

	rec = post(h.Login, `{"email":"ALICE@example.com","password":"hunter22"}`)
	expectStatus(t, rec, http.StatusOK)
	login := decodeAuth(t, rec)
	if login.Token == "" {
		t.Fatal("expected token")
	}
	userID, err := tokens.Verify(login.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if userID != reg.User.ID {
		t.Errorf("token subject = %q, want %q", userID, reg.User.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _ := setupAuthHandler(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing fields", `{"name":"Alice"}`, "Name, email, and password are required."},
		{"short password", `{"name":"Alice","email":"a@example.com","password":"abc"}`, "Password must be at least 6 characters."},
		{"bad json", `not json`, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(h.Register, tt.body)
			expectStatus(t, rec, http.StatusBadRequest)
			if got := decodeAuth(t, rec).Error; got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, _ := setupAuthHandler(t)

	expectStatus(t, post(h.Register, `{"name":"Alice","email":"alice@example.com","password":"hunter22"}`), http.StatusCreated)
	rec := post(h.Register, `{"name":"Other","email":"ALICE@example.com","password":"hunter22"}`)
	expectStatus(t, rec, http.StatusBadRequest)
	if got := decodeAuth(t, rec).Error; got != "A user with that email already exists." {
		t.Errorf("error = %q", got)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	h, _ := setupAuthHandler(t)
	expectStatus(t, post(h.Register, `{"name":"Alice","email":"alice@example.com","password":"hunter22"}`), http.StatusCreated)

	for _, body := range []string{
		`{"email":"alice@example.com","password":"wrong-password"}`,
		`{"email":"nobody@example.com","password":"hunter22"}`,
	} {
		rec := post(h.Login, body)
		expectStatus(t, rec, http.StatusBadRequest)
		if got := decodeAuth(t, rec).Error; got != "Invalid email or password." {
			t.Errorf("error = %q", got)
		}
	}

	rec := post(h.Login, `{"email":"alice@example.com"}`)
	expectStatus(t, rec, http.StatusBadRequest)
	if got := decodeAuth(t, rec).Error; got != "Email and password are required." {
		t.Errorf("error = %q", got)
	}
}

func TestMe(t *testing.T) {
	h, _ := setupAuthHandler(t)

	hid := "h1"
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{
		User: model.User{ID: "u1", Name: "Alice", Email: "alice@example.com", HouseholdID: &hid},
	}))
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	expectStatus(t, rec, http.StatusOK)
	var got userResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "u1" || got.HouseholdID == nil || *got.HouseholdID != "h1" {
		t.Errorf("me = %+v", got)
	}

	rec = httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest("GET", "/api/auth/me", nil))
	expectStatus(t, rec, http.StatusUnauthorized)
}
