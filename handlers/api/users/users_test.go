package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"mbdocs-server/auth"
	"mbdocs-server/core"
	authMiddleware "mbdocs-server/middleware"
	"mbdocs-server/stores/memory"
)

func newTestRouter() (*chi.Mux, core.UserStore, *auth.TokenService) {
	store := memory.NewStore()
	tokens := auth.NewTokenServiceWithSecret([]byte("test-secret"))

	r := chi.NewRouter()
	r.Post("/signup", HandleSignup(store))
	r.Post("/login", HandleLogin(store, tokens))
	r.Post("/forgotpass", HandleForgotPassword(store, tokens))
	r.Put("/reset", HandleResetPassword(store, tokens))
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT(tokens))
		r.Get("/", HandleGetProfile(store))
		r.Put("/", HandleUpdateProfile(store))
	})
	r.Get("/{userId}", HandleGetUser(store))

	return r, store, tokens
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSignupAndLogin(t *testing.T) {
	r, _, _ := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/signup", "", SignupRequest{
		Name: "Maya", Email: "maya@example.com", Password: "s3cret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("signup status = %d, want 200: %s", w.Code, w.Body.String())
	}

	// Duplicate email is rejected.
	w = doJSON(t, r, http.MethodPost, "/signup", "", SignupRequest{
		Name: "Other", Email: "maya@example.com", Password: "x",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("duplicate signup status = %d, want 401", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/login", "", LoginRequest{
		Email: "maya@example.com", Password: "s3cret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var loginResp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if loginResp["token"] == "" {
		t.Fatal("login response has no token")
	}

	w = doJSON(t, r, http.MethodPost, "/login", "", LoginRequest{
		Email: "maya@example.com", Password: "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password login status = %d, want 401", w.Code)
	}
}

func TestProfileRequiresAuth(t *testing.T) {
	r, _, _ := newTestRouter()

	w := doJSON(t, r, http.MethodGet, "/", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated profile status = %d, want 401", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/", "garbage-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token profile status = %d, want 401", w.Code)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	r, _, _ := newTestRouter()

	doJSON(t, r, http.MethodPost, "/signup", "", SignupRequest{
		Name: "Maya", Email: "maya@example.com", Password: "s3cret",
	})
	w := doJSON(t, r, http.MethodPost, "/login", "", LoginRequest{
		Email: "maya@example.com", Password: "s3cret",
	})
	var loginResp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	token := loginResp["token"]

	w = doJSON(t, r, http.MethodGet, "/", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("profile status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var user core.User
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("failed to decode profile: %v", err)
	}
	if user.Email != "maya@example.com" {
		t.Errorf("profile email = %q, want maya@example.com", user.Email)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("passwordHash")) {
		t.Error("profile response leaks the password hash")
	}

	w = doJSON(t, r, http.MethodPut, "/", token, UpdateRequest{
		Name: "Maya B", Email: "maya@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/"+user.ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("public profile status = %d, want 200", w.Code)
	}
}

func TestPasswordReset(t *testing.T) {
	r, store, tokens := newTestRouter()

	doJSON(t, r, http.MethodPost, "/signup", "", SignupRequest{
		Name: "Maya", Email: "maya@example.com", Password: "old-pass",
	})

	w := doJSON(t, r, http.MethodPost, "/forgotpass", "", ForgotPasswordRequest{Email: "maya@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("forgotpass status = %d, want 200", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/forgotpass", "", ForgotPasswordRequest{Email: "nobody@example.com"})
	if w.Code != http.StatusNotFound {
		t.Errorf("forgotpass for unknown email status = %d, want 404", w.Code)
	}

	user, err := store.FindEmail(context.Background(), "maya@example.com")
	if err != nil {
		t.Fatalf("FindEmail() failed: %v", err)
	}
	resetToken, err := tokens.CreateResetToken(user.ID)
	if err != nil {
		t.Fatalf("CreateResetToken() failed: %v", err)
	}

	w = doJSON(t, r, http.MethodPut, "/reset", "", ResetPasswordRequest{
		Token: resetToken, Password: "new-pass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want 200: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/login", "", LoginRequest{
		Email: "maya@example.com", Password: "new-pass",
	})
	if w.Code != http.StatusOK {
		t.Errorf("login with new password status = %d, want 200", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/login", "", LoginRequest{
		Email: "maya@example.com", Password: "old-pass",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("login with old password status = %d, want 401", w.Code)
	}

	w = doJSON(t, r, http.MethodPut, "/reset", "", ResetPasswordRequest{
		Token: "garbage", Password: "x",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("reset with bad token status = %d, want 400", w.Code)
	}
}
