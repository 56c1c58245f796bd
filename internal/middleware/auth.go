package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	SessionKey   contextKey = "session"
	RequestIDKey contextKey = "request_id"

	SessionCookie = "wildlife_session"
	sessionIssuer = "wildlife-dashboard"
)

// ErrInvalidCredentials is returned for any username/password mismatch.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrNoSession means the request carries no valid session cookie.
var ErrNoSession = errors.New("no session")

// Session is the authenticated user for one request.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionManager checks the configured credentials and issues signed
// session cookies. The session lives in the cookie only; nothing is stored
// server-side.
type SessionManager struct {
	username string
	password string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time

	// Secure marks the cookie Secure (set when served over TLS).
	Secure bool
}

// NewSessionManager builds a manager. An empty secret gets a random
// per-process key, which logs everybody out on restart.
func NewSessionManager(username, password string, secret []byte, ttl time.Duration) (*SessionManager, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		username: username,
		password: password,
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Authenticate compares both fields in constant time.
func (m *SessionManager) Authenticate(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(m.password))
	if userOK&passOK != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// Issue signs a new session token for username.
func (m *SessionManager) Issue(username string) (string, *Session, error) {
	now := m.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		ExpiresAt: now.Add(m.ttl),
	}
	claims := sessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   username,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return token, sess, nil
}

// Parse validates a token and returns its session.
func (m *SessionManager) Parse(token string) (*Session, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if claims.Username == "" || claims.ID == "" {
		return nil, ErrNoSession
	}
	sess := &Session{ID: claims.ID, Username: claims.Username}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// Login authenticates and, on success, writes the session cookie.
func (m *SessionManager) Login(w http.ResponseWriter, username, password string) (*Session, error) {
	if err := m.Authenticate(username, password); err != nil {
		return nil, err
	}
	token, sess, err := m.Issue(username)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

// Logout expires the session cookie.
func (m *SessionManager) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// LoadSession puts the session from the cookie (if valid) into the context.
// It never rejects; RequireSession does.
func (m *SessionManager) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err == nil && c.Value != "" {
			if sess, err := m.Parse(c.Value); err == nil {
				r = r.WithContext(WithSession(r.Context(), sess))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects requests without a session: API paths get 401,
// pages are redirected to the login form.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}

// SessionFromContext extracts session from context
func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(SessionKey).(*Session)
	return sess, ok && sess != nil
}
