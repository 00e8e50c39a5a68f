package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nippolabs/nippo/internal/metrics"
	"github.com/nippolabs/nippo/internal/ratelimit"
	"github.com/nippolabs/nippo/internal/session"
	"github.com/nippolabs/nippo/internal/user"
)

// UserDirectory is the user-store surface the handlers depend on.
// Implemented by user.Store; faked in tests.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id int64) (*user.User, error)
	IsSubordinate(ctx context.Context, userID, managerID int64) (bool, error)
	ListSubordinateIDs(ctx context.Context, managerID int64) ([]int64, error)
}

// authHandler groups authentication HTTP handlers.
type authHandler struct {
	users    UserDirectory
	sessions *session.Manager
	csrf     *session.Guard
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
}

func newAuthHandler(users UserDirectory, sessions *session.Manager, csrf *session.Guard, limiter *ratelimit.Limiter, m *metrics.Metrics) *authHandler {
	return &authHandler{users: users, sessions: sessions, csrf: csrf, limiter: limiter, metrics: m}
}

// userProfile is the user shape returned by login and me.
type userProfile struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        user.Role `json:"role"`
	ManagerID   *int64    `json:"managerId"`
	ManagerName *string   `json:"managerName"`
}

func profileOf(u *user.User) userProfile {
	return userProfile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		ManagerID:   u.ManagerID,
		ManagerName: u.ManagerName,
	}
}

func validateLogin(email, password string) []fieldIssue {
	var issues []fieldIssue
	if email == "" || !strings.Contains(email, "@") {
		issues = append(issues, fieldIssue{Field: "email", Message: "a valid email address is required"})
	}
	if password == "" {
		issues = append(issues, fieldIssue{Field: "password", Message: "password is required"})
	}
	return issues
}

// Login handles POST /api/auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	// Rate limit by source IP before touching the database or comparing
	// passwords, so credential stuffing cannot amplify load.
	ip := ratelimit.ClientIP(r)
	if !h.limiter.AllowLogin(ip) {
		if h.metrics != nil {
			h.metrics.IncRateLimitRejection("login")
		}
		auditLog(r, "login.rate_limited", "user", "")
		writeError(w, http.StatusTooManyRequests, CodeRateLimited,
			"too many login attempts, try again later")
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeValidationError(w, "invalid request body", nil)
		return
	}
	if issues := validateLogin(req.Email, req.Password); issues != nil {
		writeValidationError(w, "invalid input", issues)
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		h.internalError(w, r, "login", err)
		return
	}

	// One message for both unknown email and wrong password, so the
	// endpoint cannot be used to enumerate accounts.
	if u == nil || !user.CheckPassword(u, req.Password) {
		if h.metrics != nil {
			h.metrics.IncLoginFailure("invalid_credentials")
		}
		auditLog(r, "login.failed", "user", "")
		writeError(w, http.StatusUnauthorized, CodeInvalidCredentials,
			"invalid email or password")
		return
	}

	d, err := h.sessions.Create(w, session.Identity{
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		ManagerID: u.ManagerID,
	})
	if err != nil {
		h.internalError(w, r, "login", err)
		return
	}

	token, err := h.csrf.Generate(w, d)
	if err != nil {
		h.internalError(w, r, "login", err)
		return
	}

	if h.metrics != nil {
		h.metrics.LoginSuccessesTotal.Inc()
	}
	auditLog(r, "login.succeeded", "user", u.Email, "user_id", u.ID, "role", u.Role)

	writeData(w, http.StatusOK, map[string]any{
		"user":          profileOf(u),
		"csrfToken":     token,
		"sessionExpiry": time.Now().Add(h.sessions.Timeout()).Format(time.RFC3339),
	})
}

// Logout handles POST /api/auth/logout.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	d := h.sessions.Get(r)
	if !d.IsAuthenticated() {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	// Clear the CSRF token first so it can never leak into a later
	// session, then drop the cookie itself.
	if err := h.csrf.Reset(w, d); err != nil {
		h.internalError(w, r, "logout", err)
		return
	}
	h.sessions.Destroy(w)

	auditLog(r, "logout", "user", d.Email)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	d := h.sessions.CurrentUser(w, r)
	if d == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	// Re-read from the database: the session's denormalized copy may be
	// stale, and the account may have been deleted since login.
	u, err := h.users.GetByID(r.Context(), *d.UserID)
	if errors.Is(err, user.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "user not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "me", err)
		return
	}

	writeData(w, http.StatusOK, struct {
		userProfile
		CreatedAt time.Time `json:"createdAt"`
	}{profileOf(u), u.CreatedAt})
}

// CSRFToken handles GET /api/csrf-token.
func (h *authHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	d := h.sessions.CurrentUser(w, r)
	if d == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	token, err := h.csrf.Generate(w, d)
	if err != nil {
		h.internalError(w, r, "csrf-token", err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"csrfToken": token})
}

// internalError logs the real failure server-side and returns an opaque 500.
func (h *authHandler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logInternalError(r, op, err)
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}
