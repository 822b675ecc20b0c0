package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/session"
)

const (
	SessionContextKey   = "session"
	SessionIDContextKey = "session_id"
)

// LoadSession reads the session cookie once per request and stores the
// session in the gin context. Requests without a valid cookie carry the
// zero session.
func LoadSession(m *session.Manager, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, sess, err := m.Load(c.Request.Context(), c.Request)
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			logger.WithError(err).Warn("failed to load session")
		}

		c.Set(SessionIDContextKey, id)
		c.Set(SessionContextKey, sess)
		c.Next()
	}
}

// RequireLogin redirects page requests without a logged-in session to
// loginPath. API requests get 401.
func RequireLogin(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := GetSession(c)
		if sess.LoggedIn && sess.Email != "" {
			c.Next()
			return
		}

		if c.GetHeader("Accept") == "application/json" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Login required"})
			c.Abort()
			return
		}
		c.Redirect(http.StatusSeeOther, loginPath)
		c.Abort()
	}
}

// GetSession returns the session loaded for this request
func GetSession(c *gin.Context) session.Session {
	v, exists := c.Get(SessionContextKey)
	if !exists {
		return session.Session{}
	}
	sess, _ := v.(session.Session)
	return sess
}

// GetSessionID returns the id of the session loaded for this request
func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionIDContextKey)
}

// SetSession replaces the session seen by later handlers of this request
func SetSession(c *gin.Context, id string, sess session.Session) {
	c.Set(SessionIDContextKey, id)
	c.Set(SessionContextKey, sess)
}
