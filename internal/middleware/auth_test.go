package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/session"
)

func setupManager(t *testing.T) *session.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := session.NewStore(client, time.Hour)
	return session.NewManager(store, "test-secret", "sf", time.Hour, false)
}

func newAuthRouter(m *session.Manager) *gin.Engine {
	router := gin.New()
	router.Use(LoadSession(m, logging.Nop()))
	router.GET("/whoami", func(c *gin.Context) {
		sess := GetSession(c)
		c.JSON(http.StatusOK, gin.H{"email": sess.Email, "loggedIn": sess.LoggedIn})
	})
	router.GET("/private", RequireLogin("/login"), func(c *gin.Context) {
		c.String(http.StatusOK, "secret")
	})
	return router
}

func TestLoadSessionAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := newAuthRouter(setupManager(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"email":"","loggedIn":false}`, w.Body.String())
}

func TestLoadSessionWithCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := setupManager(t)
	router := newAuthRouter(m)

	rec := httptest.NewRecorder()
	_, err := m.Begin(context.Background(), rec, session.Session{LoggedIn: true, Email: "alice@example.com", Name: "alice"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.JSONEq(t, `{"email":"alice@example.com","loggedIn":true}`, w.Body.String())
}

func TestRequireLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := setupManager(t)
	router := newAuthRouter(m)

	tests := []struct {
		name           string
		loggedIn       bool
		accept         string
		expectedStatus int
	}{
		{name: "Anonymous page request", expectedStatus: http.StatusSeeOther},
		{name: "Anonymous API request", accept: "application/json", expectedStatus: http.StatusUnauthorized},
		{name: "Logged in", loggedIn: true, expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.loggedIn {
				rec := httptest.NewRecorder()
				_, err := m.Begin(context.Background(), rec, session.Session{LoggedIn: true, Email: "bob@example.com", Name: "bob"})
				require.NoError(t, err)
				req.AddCookie(rec.Result().Cookies()[0])
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusSeeOther {
				assert.Equal(t, "/login", w.Header().Get("Location"))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Logger(logging.Nop()), Metrics())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDContextKey))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
