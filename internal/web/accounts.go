package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/account"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/middleware"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/session"
)

func (s *Server) loginForm(c *gin.Context) {
	if middleware.GetSession(c).LoggedIn {
		redirect(c, CatalogPath)
		return
	}
	s.render(c, http.StatusOK, "login.html", gin.H{
		"Title":   "Sign In",
		"Message": c.Query("message"),
	})
}

func (s *Server) login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")

	sess, err := s.Accounts.Login(c.Request.Context(), username, password)
	if err != nil {
		status := http.StatusUnauthorized
		var verr *account.ValidationError
		switch {
		case errors.As(err, &verr):
			status = http.StatusBadRequest
		case !errors.Is(err, account.ErrInvalidCredentials):
			status = http.StatusBadGateway
			middleware.GetLogger(c, s.Logger).WithError(err).Error("login failed")
		}
		s.render(c, status, "login.html", gin.H{
			"Title":    "Sign In",
			"Error":    account.LoginMessage(err),
			"Username": username,
		})
		return
	}

	if !s.startSession(c, sess) {
		return
	}
	redirect(c, CatalogPath)
}

func (s *Server) registerForm(c *gin.Context) {
	s.render(c, http.StatusOK, "register.html", gin.H{"Title": "Create Account"})
}

func (s *Server) register(c *gin.Context) {
	reg := account.Registration{
		Username: strings.TrimSpace(c.PostForm("username")),
		Email:    strings.TrimSpace(c.PostForm("email")),
		Password: c.PostForm("password"),
	}

	sess, err := s.Accounts.Register(c.Request.Context(), reg)
	if err != nil {
		status := http.StatusBadGateway
		var verr *account.ValidationError
		if errors.As(err, &verr) {
			status = http.StatusBadRequest
		} else {
			middleware.GetLogger(c, s.Logger).WithError(err).Error("registration failed")
		}
		s.render(c, status, "register.html", gin.H{
			"Title":    "Create Account",
			"Error":    account.RegisterMessage(err),
			"Username": reg.Username,
			"Email":    reg.Email,
		})
		return
	}

	if !s.startSession(c, sess) {
		return
	}
	redirect(c, CatalogPath)
}

// startSession stores sess and sets the cookie. On failure it renders the
// error page and returns false.
func (s *Server) startSession(c *gin.Context, sess session.Session) bool {
	id, err := s.Sessions.Begin(c.Request.Context(), c.Writer, sess)
	if err != nil {
		middleware.GetLogger(c, s.Logger).WithError(err).Error("failed to start session")
		s.errorPage(c, http.StatusInternalServerError, account.MessageLoginFailed)
		return false
	}
	middleware.SetSession(c, id, sess)
	return true
}

func (s *Server) logout(c *gin.Context) {
	if err := s.Sessions.End(c.Request.Context(), c.Writer, middleware.GetSessionID(c)); err != nil {
		middleware.GetLogger(c, s.Logger).WithError(err).Warn("failed to clear session")
	}
	middleware.SetSession(c, "", session.Session{})
	redirect(c, LoginPath)
}

func (s *Server) forgotPasswordForm(c *gin.Context) {
	s.render(c, http.StatusOK, "forgot_password.html", gin.H{"Title": "Forgot Password"})
}

func (s *Server) forgotPassword(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))

	err := s.Accounts.RequestPasswordReset(c.Request.Context(), email)
	var verr *account.ValidationError
	switch {
	case errors.As(err, &verr):
		s.render(c, http.StatusBadRequest, "forgot_password.html", gin.H{
			"Title": "Forgot Password",
			"Error": verr.Message,
		})
		return
	case err != nil:
		// The response must not reveal whether the address exists.
		middleware.GetLogger(c, s.Logger).WithError(err).Error("password reset request failed")
	}

	s.render(c, http.StatusOK, "forgot_password.html", gin.H{
		"Title":   "Forgot Password",
		"Message": account.MessageResetRequested,
	})
}

func (s *Server) resetPasswordForm(c *gin.Context) {
	token := c.Query("token")
	if _, err := s.Accounts.VerifyResetToken(token); err != nil {
		s.render(c, http.StatusBadRequest, "reset_password.html", gin.H{
			"Title": "Reset Password",
			"Error": account.MessageResetInvalid,
		})
		return
	}
	s.render(c, http.StatusOK, "reset_password.html", gin.H{
		"Title": "Reset Password",
		"Token": token,
	})
}

func (s *Server) resetPassword(c *gin.Context) {
	token := c.PostForm("token")

	if err := s.Accounts.ResetPassword(c.Request.Context(), token, c.PostForm("password")); err != nil {
		status := http.StatusBadRequest
		data := gin.H{
			"Title": "Reset Password",
			"Error": account.ResetMessage(err),
		}
		var verr *account.ValidationError
		switch {
		case errors.As(err, &verr):
			data["Token"] = token
		case errors.Is(err, account.ErrInvalidResetToken):
		default:
			status = http.StatusBadGateway
			data["Token"] = token
			middleware.GetLogger(c, s.Logger).WithError(err).Error("password reset failed")
		}
		s.render(c, status, "reset_password.html", data)
		return
	}

	redirect(c, LoginPath+"?message="+url.QueryEscape(account.MessageResetDone))
}
