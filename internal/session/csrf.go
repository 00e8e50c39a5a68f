package session

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CSRFHeader is the request header clients must echo the token in.
// A custom header is unreachable by plain cross-site form submissions,
// which combined with the session-stored token gives double-submit
// protection.
const CSRFHeader = "X-CSRF-Token"

// Guard issues and verifies per-session CSRF tokens.
type Guard struct {
	sessions *Manager
}

// NewGuard creates a Guard bound to the given session manager.
func NewGuard(sessions *Manager) *Guard {
	return &Guard{sessions: sessions}
}

// Generate returns the session's CSRF token, minting and persisting a new
// one only when the session holds none. Idempotent per session.
func (g *Guard) Generate(w http.ResponseWriter, d *Data) (string, error) {
	if d.CSRFToken != "" {
		return d.CSRFToken, nil
	}

	token := uuid.NewString()
	d.CSRFToken = token
	if err := g.sessions.Save(w, d); err != nil {
		return "", err
	}
	return token, nil
}

// Verify compares candidate against the session's stored token in constant
// time. False when the candidate is empty, the session holds no token, or
// the values differ. The length check short-circuits before the byte-wise
// comparison; for equal lengths the comparison time does not depend on the
// position of the first mismatch.
func (g *Guard) Verify(d *Data, candidate string) bool {
	if candidate == "" || d.CSRFToken == "" {
		return false
	}
	if len(candidate) != len(d.CSRFToken) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(d.CSRFToken)) == 1
}

// Reset clears the stored token and persists the session. Called on logout
// so a token never survives across session boundaries.
func (g *Guard) Reset(w http.ResponseWriter, d *Data) error {
	d.CSRFToken = ""
	return g.sessions.Save(w, d)
}

// TokenFromHeader returns the CSRF token from the request headers, or ""
// when absent. Header lookup is case-insensitive.
func TokenFromHeader(h http.Header) string {
	return h.Get(CSRFHeader)
}

// RequiresCSRF reports whether the given HTTP method needs CSRF protection.
// Safe methods (GET, HEAD, OPTIONS) do not; everything else does.
func RequiresCSRF(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
