package auth

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"
)

// SessionName is the name of the dashboard session cookie.
const SessionName = "trace-dashboard"

// SessionKeyDashboardID is the session value holding the dashboard id.
const SessionKeyDashboardID = "dashboard_id"

// SessionStore maps browsers to dashboard ids through a signed cookie.
type SessionStore struct {
	store *sessions.CookieStore
}

// NewSessionStore creates a cookie-backed session store.
//
// The secret can be any passphrase; HKDF-SHA256 expands it into separate
// signing and encryption keys. It must be stable across restarts for cookies
// to stay valid.
func NewSessionStore(secret string, maxAge time.Duration, settings CookieSettings) *SessionStore {
	store := sessions.NewCookieStore(
		deriveKey(secret, "trace-dashboard session signing", 64),
		deriveKey(secret, "trace-dashboard session encryption", 32),
	)
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store}
}

// DashboardID returns the dashboard id bound to the request's session,
// assigning and saving a new one when the session has none. The cookie is
// refreshed on every call so active sessions do not expire.
func (s *SessionStore) DashboardID(w http.ResponseWriter, r *http.Request) (string, error) {
	// A cookie that fails verification yields a fresh session plus an error;
	// the fresh session is still usable.
	session, _ := s.store.Get(r, SessionName)
	if session == nil {
		return "", fmt.Errorf("failed to open session")
	}

	id, _ := session.Values[SessionKeyDashboardID].(string)
	if id == "" {
		id = uuid.NewString()
		session.Values[SessionKeyDashboardID] = id
	}

	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return id, nil
}

// deriveKey expands the secret into a key of the given size for one purpose.
func deriveKey(secret, purpose string, size int) []byte {
	key := make([]byte, size)
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	if _, err := io.ReadFull(reader, key); err != nil {
		// HKDF-SHA256 yields up to 8160 bytes; smaller reads cannot fail.
		panic(fmt.Sprintf("derive session key: %v", err))
	}
	return key
}
