package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession is returned when a request carries no valid session cookie
var ErrNoSession = errors.New("no session")

// Claims is the payload of the session cookie
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager ties the Redis store to a signed cookie
type Manager struct {
	store      *Store
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewManager creates a session manager
func NewManager(store *Store, secret, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:      store,
		secret:     []byte(secret),
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Begin stores sess under a new id and sets the session cookie
func (m *Manager) Begin(ctx context.Context, w http.ResponseWriter, sess Session) (string, error) {
	id := NewID()
	if err := m.store.Set(ctx, id, sess); err != nil {
		return "", err
	}

	token, err := m.sign(id)
	if err != nil {
		m.store.Clear(ctx, id)
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// Load resolves the request's session. A missing or forged cookie returns
// ErrNoSession together with the zero Session.
func (m *Manager) Load(ctx context.Context, r *http.Request) (string, Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", Session{}, ErrNoSession
	}

	id, err := m.parse(cookie.Value)
	if err != nil {
		return "", Session{}, ErrNoSession
	}

	sess, err := m.store.Read(ctx, id)
	if err != nil {
		return id, Session{}, err
	}
	return id, sess, nil
}

// End clears the stored session and expires the cookie
func (m *Manager) End(ctx context.Context, w http.ResponseWriter, id string) error {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	if id == "" {
		return nil
	}
	return m.store.Clear(ctx, id)
}

func (m *Manager) sign(id string) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrNoSession
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.SessionID == "" {
		return "", ErrNoSession
	}
	return claims.SessionID, nil
}
