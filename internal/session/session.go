// Package session implements encrypted cookie-backed sessions with a sliding
// inactivity timeout. The cookie is the store: there is no server-side session
// table, so each request reads, possibly mutates, and rewrites its own cookie.
package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nippolabs/nippo/internal/crypto"
	"github.com/nippolabs/nippo/internal/user"
)

// Data is the session payload carried in the encrypted cookie. A nil UserID
// means unauthenticated. Timestamps are epoch milliseconds.
type Data struct {
	UserID       *int64    `json:"userId,omitempty"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         user.Role `json:"role,omitempty"`
	ManagerID    *int64    `json:"managerId,omitempty"`
	CreatedAt    int64     `json:"createdAt,omitempty"`
	LastActivity int64     `json:"lastActivity,omitempty"`
	CSRFToken    string    `json:"csrfToken,omitempty"`
}

// IsAuthenticated reports whether the session carries an identity. This is
// the coarse check only; it does not consult the inactivity timeout.
func (d *Data) IsAuthenticated() bool {
	return d.UserID != nil
}

// Identity is the subset of user fields denormalized into a new session.
type Identity struct {
	UserID    int64
	Name      string
	Email     string
	Role      user.Role
	ManagerID *int64
}

// Options configures the session cookie.
type Options struct {
	CookieName string
	Secret     string
	Timeout    time.Duration
	Secure     bool

	// OnTimeout, if set, is called whenever a session is destroyed for
	// exceeding the inactivity window.
	OnTimeout func()
}

// Manager creates, reads, refreshes, and destroys sessions.
type Manager struct {
	sealer *crypto.Sealer
	opts   Options
	now    func() time.Time // injectable clock for testing
}

// NewManager builds a Manager. The secret must be at least 32 characters;
// a shorter one is rejected so the server never runs with a weak key.
func NewManager(opts Options) (*Manager, error) {
	sealer, err := crypto.NewSealer(opts.Secret)
	if err != nil {
		return nil, fmt.Errorf("session secret: %w", err)
	}
	if opts.CookieName == "" {
		opts.CookieName = "daily-report-session"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}
	return &Manager{sealer: sealer, opts: opts, now: time.Now}, nil
}

// Timeout returns the configured inactivity timeout.
func (m *Manager) Timeout() time.Duration {
	return m.opts.Timeout
}

// CookieName returns the configured session cookie name.
func (m *Manager) CookieName() string {
	return m.opts.CookieName
}

// Get decodes the session cookie from the request. It fails closed: a
// missing cookie, a forged payload, or a decryption failure all yield an
// empty session rather than an error, so tampering never produces an oracle.
func (m *Manager) Get(r *http.Request) *Data {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return &Data{}
	}

	plaintext, err := m.sealer.Open(c.Value)
	if err != nil {
		return &Data{}
	}

	d := &Data{}
	if err := json.Unmarshal(plaintext, d); err != nil {
		return &Data{}
	}
	return d
}

// Save re-encrypts the session and writes the cookie.
func (m *Manager) Save(w http.ResponseWriter, d *Data) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	value, err := m.sealer.Seal(payload)
	if err != nil {
		return fmt.Errorf("sealing session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.opts.Timeout.Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Create starts a fresh session for the given identity, overwriting any
// prior session. CreatedAt and LastActivity are both set to now.
func (m *Manager) Create(w http.ResponseWriter, id Identity) (*Data, error) {
	now := m.now().UnixMilli()
	d := &Data{
		UserID:       &id.UserID,
		Name:         id.Name,
		Email:        id.Email,
		Role:         id.Role,
		ManagerID:    id.ManagerID,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.Save(w, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Destroy invalidates the session cookie. Idempotent.
func (m *Manager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CheckTimeout enforces the sliding inactivity window. An expired session is
// destroyed and false is returned; a live one has LastActivity refreshed and
// re-saved. Sessions without an identity or activity timestamp are invalid.
func (m *Manager) CheckTimeout(w http.ResponseWriter, d *Data) bool {
	if d.UserID == nil || d.LastActivity == 0 {
		return false
	}

	elapsed := m.now().Sub(time.UnixMilli(d.LastActivity))
	if elapsed > m.opts.Timeout {
		m.Destroy(w)
		if m.opts.OnTimeout != nil {
			m.opts.OnTimeout()
		}
		return false
	}

	d.LastActivity = m.now().UnixMilli()
	if err := m.Save(w, d); err != nil {
		return false
	}
	return true
}

// CurrentUser is the single source of truth for "am I logged in". It is a
// side-effecting read: a valid session gets its activity refreshed, an
// expired one is destroyed. Returns nil when there is no valid session.
func (m *Manager) CurrentUser(w http.ResponseWriter, r *http.Request) *Data {
	d := m.Get(r)
	if d.UserID == nil {
		return nil
	}
	if !m.CheckTimeout(w, d) {
		return nil
	}
	return d
}
