package http

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adarsh745/etaxmentor-sub000/internal/auth"
	"github.com/adarsh745/etaxmentor-sub000/internal/crypto"
	"github.com/adarsh745/etaxmentor-sub000/internal/events"
	"github.com/adarsh745/etaxmentor-sub000/internal/model"
	"github.com/adarsh745/etaxmentor-sub000/internal/repository"
)

type registerRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type userSummary struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	Phone         *string `json:"phone,omitempty"`
	Role          string  `json:"role"`
	Status        string  `json:"status"`
	EmailVerified bool    `json:"emailVerified"`
	CreatedAt     int64   `json:"createdAt"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  userSummary `json:"user"`
}

func mapUserSummary(user model.User) userSummary {
	return userSummary{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Phone:         user.Phone,
		Role:          user.Role,
		Status:        user.Status,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt.Unix(),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid_email")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	now := time.Now().UTC()
	user := model.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Name:      req.Name,
		Phone:     req.Phone,
		Role:      model.RoleUser,
		Status:    model.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateUser(r.Context(), user, hash); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "duplicate_email")
			return
		}
		writeStoreError(w, err, "register user")
		return
	}

	s.producer.Publish(events.Event{Type: "user.registered", UserID: user.ID})
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": mapUserSummary(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Same code as a wrong password so accounts cannot be enumerated.
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeStoreError(w, err, "login lookup")
		return
	}

	cred, err := s.store.GetCredential(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, err, "credential lookup")
		return
	}
	if err := crypto.CheckPassword(cred.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	if user.Status == model.UserStatusSuspended {
		writeError(w, http.StatusForbidden, "account_suspended")
		return
	}

	token, err := s.issueSession(r, user)
	if err != nil {
		writeStoreError(w, err, "issue session")
		return
	}

	setAuthCookie(w, token, s.cfg.SessionTTL)
	s.producer.Publish(events.Event{Type: "user.login", UserID: user.ID, Detail: map[string]string{"ip": clientIP(r)}})
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: mapUserSummary(user)})
}

// issueSession creates the server-side session row and wraps its opaque
// token in a signed JWT.
func (s *Server) issueSession(r *http.Request, user model.User) (string, error) {
	sessionToken, err := crypto.NewSessionToken()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	session := model.Session{
		TokenHash: crypto.HashToken(sessionToken),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if ua := r.UserAgent(); ua != "" {
		session.UserAgent = &ua
	}
	if ip := clientIP(r); ip != "" {
		session.IPAddress = &ip
	}
	if err := s.store.CreateSession(r.Context(), session); err != nil {
		return "", err
	}

	return auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		SID:    sessionToken,
	})
}

func setAuthCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleLogout is idempotent: an absent, expired or already-revoked session
// logs out just as successfully as a live one.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		if cookie, err := r.Cookie(authCookieName); err == nil {
			token = cookie.Value
		}
	}

	if claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token); err == nil && claims.SID != "" {
		tokenHash := crypto.HashToken(claims.SID)
		if err := s.store.DeleteSession(r.Context(), tokenHash); err != nil {
			writeStoreError(w, err, "logout")
			return
		}
		s.evictSessionCache(r.Context(), []string{tokenHash})
		s.producer.Publish(events.Event{Type: "user.logout", UserID: claims.UserID})
	}

	clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeStoreError(w, err, "get me")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": mapUserSummary(user)})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}

	cred, err := s.store.GetCredential(r.Context(), claims.UserID)
	if err != nil {
		writeStoreError(w, err, "credential lookup")
		return
	}
	if err := crypto.CheckPassword(cred.PasswordHash, req.CurrentPassword); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.store.ReplaceCredential(r.Context(), claims.UserID, hash, time.Now().UTC()); err != nil {
		writeStoreError(w, err, "replace credential")
		return
	}

	// Revoke every other session of the user. The session behind this
	// request stays alive; already-issued JWTs for revoked sessions die at
	// the session check, so their cache entries must go with the rows.
	revoked, err := s.store.DeleteUserSessionsExcept(r.Context(), claims.UserID, crypto.HashToken(claims.SID))
	if err != nil {
		log.Printf("session revocation after password change error: %v", err)
	} else {
		s.evictSessionCache(r.Context(), revoked)
	}

	s.producer.Publish(events.Event{Type: "user.password_changed", UserID: claims.UserID})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
