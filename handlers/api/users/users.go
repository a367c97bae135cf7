package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"mbdocs-server/auth"
	"mbdocs-server/core"
	"mbdocs-server/middleware"
)

type (
	SignupRequest struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"passwd"`
	}

	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"passwd"`
	}

	UpdateRequest struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"passwd"`
	}

	ForgotPasswordRequest struct {
		Email string `json:"email"`
	}

	ResetPasswordRequest struct {
		Token    string `json:"userToken"`
		Password string `json:"passwd"`
	}
)

// HandleSignup registers a new account with a bcrypt-hashed password.
func HandleSignup(store core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.Name == "" || req.Email == "" || req.Password == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Name, email and password are required"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			logrus.WithError(err).Error("Failed to hash password")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create user"})
			return
		}

		user := &core.User{
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: hash,
		}
		id, err := store.CreateUser(r.Context(), user)
		if err != nil {
			if errors.Is(err, core.ErrEmailTaken) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "User already exists"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error": err,
				"email": req.Email,
			}).Error("Failed to create user")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create user"})
			return
		}

		user.ID = id
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]any{"message": "User signed up successfully", "user": user})
	}
}

// HandleLogin checks email and password and issues a bearer token.
func HandleLogin(store core.UserStore, tokens *auth.TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Email or password missing"})
			return
		}

		user, err := store.FindEmail(r.Context(), req.Email)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "User not found"})
				return
			}
			logrus.WithError(err).Error("Failed to look up user")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Internal server error"})
			return
		}

		if !auth.CheckPassword(user.PasswordHash, req.Password) {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Incorrect password"})
			return
		}

		token, err := tokens.CreateToken(user)
		if err != nil {
			logrus.WithError(err).Error("Failed to issue token")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to issue token"})
			return
		}

		render.JSON(w, r, map[string]string{"message": "Login successful", "token": token})
	}
}

// HandleGetProfile returns the authenticated user's own record.
func HandleGetProfile(store core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		user, err := store.FindUserID(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "User not found"})
				return
			}
			logrus.WithError(err).Error("Failed to get user")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Internal server error"})
			return
		}

		render.JSON(w, r, user)
	}
}

// HandleUpdateProfile updates the caller's name, email and optionally
// password.
func HandleUpdateProfile(store core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.Name == "" || req.Email == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Email and name required"})
			return
		}

		user := &core.User{
			ID:    claims.Subject,
			Name:  req.Name,
			Email: req.Email,
		}
		if req.Password != "" {
			hash, err := auth.HashPassword(req.Password)
			if err != nil {
				logrus.WithError(err).Error("Failed to hash password")
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "Failed to update user"})
				return
			}
			user.PasswordHash = hash
		}

		if err := store.UpdateUser(r.Context(), user); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "User not found"})
				return
			}
			logrus.WithError(err).Error("Failed to update user")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to update user"})
			return
		}

		render.JSON(w, r, map[string]string{"message": "User details updated"})
	}
}

// HandleGetUser returns a user's public record by id.
func HandleGetUser(store core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")
		if userID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "User id is required"})
			return
		}

		user, err := store.FindUserID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "User not found"})
				return
			}
			logrus.WithError(err).Error("Failed to get user")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Internal server error"})
			return
		}

		render.JSON(w, r, user)
	}
}

// HandleForgotPassword issues a short-lived reset token for the account.
// The reset link is logged; wiring it to a mail provider is a deployment
// concern.
func HandleForgotPassword(store core.UserStore, tokens *auth.TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ForgotPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Email is required"})
			return
		}

		user, err := store.FindEmail(r.Context(), req.Email)
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "User not found"})
			return
		}

		token, err := tokens.CreateResetToken(user.ID)
		if err != nil {
			logrus.WithError(err).Error("Failed to issue reset token")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to issue reset token"})
			return
		}

		resetLink := os.Getenv("CLIENT_URL") + "/resetpass?token=" + token
		logrus.WithFields(logrus.Fields{
			"user_id":    user.ID,
			"reset_link": resetLink,
		}).Info("Password reset link issued")

		render.JSON(w, r, map[string]string{"message": "Reset instructions sent"})
	}
}

// HandleResetPassword sets a new password given a valid reset token.
func HandleResetPassword(store core.UserStore, tokens *auth.TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.Password == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Token and password are required"})
			return
		}

		userID, err := tokens.Verify(req.Token)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Token is either invalid or expired"})
			return
		}

		user, err := store.FindUserID(r.Context(), userID)
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Token is invalid"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			logrus.WithError(err).Error("Failed to hash password")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to reset password"})
			return
		}

		user.PasswordHash = hash
		if err := store.UpdateUser(r.Context(), user); err != nil {
			logrus.WithError(err).Error("Failed to update password")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to reset password"})
			return
		}

		render.JSON(w, r, map[string]string{"message": "Password reset successful"})
	}
}
