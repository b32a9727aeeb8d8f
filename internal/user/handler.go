package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/guard"
	"github.com/ovaphlow/linkhoard/service-auth-go/internal/httpx"
	"github.com/ovaphlow/linkhoard/service-auth-go/internal/session"
	sessionentity "github.com/ovaphlow/linkhoard/service-auth-go/internal/session/entity"
	"github.com/ovaphlow/linkhoard/service-auth-go/internal/setting"
)

// Handler exposes the authentication endpoints: login, logout, register
// and profile.
type Handler struct {
	svc      *Service
	sessions *session.Service
	settings *setting.Service
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, sessions *session.Service, settings *setting.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, settings: settings, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionPayload struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func sessionCookie(s *sessionentity.Session) *http.Cookie {
	return &http.Cookie{
		Name:     session.CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  s.ExpiresAt,
	}
}

func clearedCookie() *http.Cookie {
	return &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	}
}

// Login authenticates a credential pair, issues a session and sets the
// session cookie. The 401 body is identical whether the username exists
// or not.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		httpx.Fail(w, http.StatusBadRequest, "username and password required")
		return
	}

	sec, err := h.settings.LoadSecurity(r.Context())
	if err != nil {
		httpx.ServerError(w, h.logger, "login: load settings", err)
		return
	}

	// a client disconnect must not abort a half-applied lockout or
	// session mutation
	ctx := context.WithoutCancel(r.Context())

	policy := LockoutPolicy{
		MaxAttempts: sec.MaxLoginAttempts,
		Duration:    time.Duration(sec.LockoutDuration) * time.Second,
	}
	u, err := h.svc.Authenticate(ctx, req.Username, req.Password, policy)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadCredentials):
			httpx.Fail(w, http.StatusUnauthorized, "invalid username or password")
		case errors.Is(err, ErrLocked):
			httpx.Fail(w, http.StatusLocked, "account locked, try again later")
		default:
			httpx.ServerError(w, h.logger, "login: authenticate", err)
		}
		return
	}

	sess, err := h.sessions.Create(ctx, u.ID, time.Duration(sec.SessionTimeout)*time.Second)
	if err != nil {
		httpx.ServerError(w, h.logger, "login: create session", err)
		return
	}

	http.SetCookie(w, sessionCookie(sess))
	httpx.OK(w, "login successful", map[string]any{
		"user":    u,
		"session": sessionPayload{ID: sess.ID, ExpiresAt: sess.ExpiresAt},
	})
}

// Logout revokes whatever token the request carries and clears the cookie.
// Always 200; revoking an already-deleted token is fine.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := session.ExtractToken(r)
	if err := h.sessions.Delete(context.WithoutCancel(r.Context()), token); err != nil {
		h.logger.Warnw("logout: delete session", "err", err)
	}
	http.SetCookie(w, clearedCookie())
	httpx.OK(w, "logged out", nil)
}

type registerRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
}

// Register creates a plain user account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		httpx.Fail(w, http.StatusBadRequest, "username and password required")
		return
	}
	u, err := h.svc.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, ErrPasswordTooShort):
			httpx.Fail(w, http.StatusBadRequest, "password must be at least 8 characters")
		case errors.Is(err, ErrUsernameTaken):
			httpx.Fail(w, http.StatusConflict, "username already taken")
		case errors.Is(err, ErrBadCredentials):
			httpx.Fail(w, http.StatusBadRequest, "username and password required")
		default:
			httpx.ServerError(w, h.logger, "register", err)
		}
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, httpx.Reply{Success: true, Message: "account created", Data: u})
}

// Profile returns the authenticated account.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, ok := guard.UserFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	httpx.OK(w, "", u)
}

type updateProfileRequest struct {
	Email           *string `json:"email"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password"`
}

// UpdateProfile updates the email and, when a new password is supplied,
// changes the password after checking the current one.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := guard.UserFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			httpx.Fail(w, http.StatusBadRequest, "current password required")
			return
		}
		if err := h.svc.ChangePassword(ctx, u.ID, req.CurrentPassword, req.NewPassword); err != nil {
			switch {
			case errors.Is(err, ErrBadCredentials):
				httpx.Fail(w, http.StatusUnauthorized, "current password is incorrect")
			case errors.Is(err, ErrPasswordTooShort):
				httpx.Fail(w, http.StatusBadRequest, "password must be at least 8 characters")
			default:
				httpx.ServerError(w, h.logger, "profile: change password", err)
			}
			return
		}
	}
	if req.Email != nil {
		if err := h.svc.UpdateEmail(ctx, u.ID, req.Email); err != nil {
			httpx.ServerError(w, h.logger, "profile: update email", err)
			return
		}
		u.Email = req.Email
	}
	httpx.OK(w, "profile updated", u)
}
