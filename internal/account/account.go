package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/backend"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/config"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/events"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/mail"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/metrics"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/session"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
)

// User-facing messages
const (
	MessageMissingCredentials = "Please enter both username and password"
	MessageInvalidCredentials = "Invalid username or password. Please try again."
	MessageLoginFailed        = "Something went wrong. Please try again."
	MessageMissingFields      = "Please fill out all required fields."
	MessagePasswordTooShort   = "Password must be at least 6 characters long."
	MessageUsernameTooShort   = "Username must be at least 3 characters long."
	MessageRegisterEmpty      = "Registration failed. Please try again."
	MessageRegisterFailed     = "Registration failed. Please try again later."
	MessageRegistered         = "Account created successfully! Redirecting..."
	MessageResetRequested     = "If an account exists for that email, a password reset link has been sent."
	MessageResetInvalid       = "This password reset link is invalid or has expired."
	MessageResetDone          = "Your password has been reset. Please log in."
	MessageResetFailed        = "Could not reset your password. Please try again later."
)

const (
	MinPasswordLength = 6
	MinUsernameLength = 3
	DefaultResetTTL   = 15 * time.Minute

	resetPurpose = "password_reset"
)

var (
	// ErrInvalidCredentials means no user matched the username/password pair
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidResetToken means a reset token failed verification
	ErrInvalidResetToken = errors.New("invalid reset token")
)

// ValidationError is a form check that failed before any backend call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UserSource is the part of the backend client accounts need
type UserSource interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	RegisterUser(ctx context.Context, user models.User) (string, error)
	ResetPassword(ctx context.Context, email, password string) error
}

// TokenLedger records reset tokens that have been spent. ClaimResetToken
// reports false when the token was already claimed.
type TokenLedger interface {
	ClaimResetToken(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	ReleaseResetToken(ctx context.Context, tokenID string) error
}

// Service implements login, registration and password recovery
type Service struct {
	users       UserSource
	mailer      mail.Mailer
	publisher   events.Publisher
	admin       config.AdminConfig
	resetSecret []byte
	resetTTL    time.Duration
	baseURL     string
	ledger      TokenLedger
	logger      *logging.Logger
}

// NewService creates an account service
func NewService(users UserSource, mailer mail.Mailer, publisher events.Publisher, admin config.AdminConfig, resetSecret string, resetTTL time.Duration, baseURL string, logger *logging.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if resetTTL <= 0 {
		resetTTL = DefaultResetTTL
	}
	return &Service{
		users:       users,
		mailer:      mailer,
		publisher:   publisher,
		admin:       admin,
		resetSecret: []byte(resetSecret),
		resetTTL:    resetTTL,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger,
	}
}

// WithTokenLedger makes reset tokens single use
func (s *Service) WithTokenLedger(ledger TokenLedger) *Service {
	s.ledger = ledger
	return s
}

// Login checks username and password against the backend's user list and
// returns the session to start
func (s *Service) Login(ctx context.Context, username, password string) (session.Session, error) {
	if username == "" || password == "" {
		metrics.RecordLogin("invalid")
		return session.Session{}, &ValidationError{Field: "username", Message: MessageMissingCredentials}
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		metrics.RecordLogin("error")
		return session.Session{}, fmt.Errorf("failed to list users: %w", err)
	}

	user, ok := matchUser(users, username, password)
	if !ok {
		metrics.RecordLogin("failure")
		return session.Session{}, ErrInvalidCredentials
	}

	metrics.RecordLogin("success")
	s.logger.WithField("username", user.Username).Info("user logged in")
	return session.Session{LoggedIn: true, Email: user.Email, Name: user.Username}, nil
}

// matchUser compares every record in constant time per field
func matchUser(users []models.User, username, password string) (models.User, bool) {
	var found models.User
	matched := false
	for _, u := range users {
		nameOK := subtle.ConstantTimeCompare([]byte(u.Username), []byte(username))
		passOK := subtle.ConstantTimeCompare([]byte(u.Password), []byte(password))
		if nameOK&passOK == 1 && !matched {
			found = u
			matched = true
		}
	}
	return found, matched
}

// LoginMessage maps a Login error to the message shown on the form
func LoginMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrInvalidCredentials):
		return MessageInvalidCredentials
	default:
		return MessageLoginFailed
	}
}

// Registration is a submitted sign-up form
type Registration struct {
	Username string
	Email    string
	Password string
}

// Validate applies the required-field and length rules
func (r Registration) Validate() error {
	if r.Username == "" || r.Email == "" || r.Password == "" {
		return &ValidationError{Field: "form", Message: MessageMissingFields}
	}
	if len(r.Password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: MessagePasswordTooShort}
	}
	if len(r.Username) < MinUsernameLength {
		return &ValidationError{Field: "username", Message: MessageUsernameTooShort}
	}
	return nil
}

// Role is ADMIN only for the configured admin email/password pair
func (s *Service) Role(email, password string) models.UserRole {
	if s.admin.Email != "" && email == s.admin.Email && password == s.admin.Password {
		return models.UserRoleAdmin
	}
	return models.UserRoleUser
}

// errEmptyRegistration is returned when the backend accepts the request
// but answers with an empty body
var errEmptyRegistration = errors.New("empty registration response")

// Register creates the user on the backend and returns the session to start
func (s *Service) Register(ctx context.Context, reg Registration) (session.Session, error) {
	if err := reg.Validate(); err != nil {
		return session.Session{}, err
	}

	user := models.User{
		Username: reg.Username,
		Email:    reg.Email,
		Password: reg.Password,
		Role:     s.Role(reg.Email, reg.Password),
	}

	reply, err := s.users.RegisterUser(ctx, user)
	if err != nil {
		return session.Session{}, err
	}
	if reply == "" {
		return session.Session{}, errEmptyRegistration
	}
	metrics.RecordRegistration(string(user.Role))

	event := events.New(events.TypeUserRegistered)
	event.Email = user.Email
	event.Username = user.Username
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).Warn("failed to publish registration event")
	}

	s.logger.WithField("username", user.Username).WithField("role", user.Role).Info("user registered")
	return session.Session{LoggedIn: true, Email: user.Email, Name: user.Username}, nil
}

// RegisterMessage maps a Register error to the message shown on the form
func RegisterMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	if errors.Is(err, errEmptyRegistration) {
		return MessageRegisterEmpty
	}

	var berr *backend.Error
	if errors.As(err, &berr) && (berr.Kind == backend.KindServer || berr.Kind == backend.KindNotFound) && berr.Message != "" {
		return berr.Message
	}
	return MessageRegisterFailed
}

// ResetClaims is the payload of a password reset token
type ResetClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// RequestPasswordReset mails a reset link when email belongs to a user.
// Unknown addresses succeed silently so the response reveals nothing.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "Please enter your email address."}
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	var user *models.User
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			user = &users[i]
			break
		}
	}
	if user == nil {
		s.logger.Debug("password reset requested for unknown email")
		return nil
	}

	token, err := s.IssueResetToken(user.Email)
	if err != nil {
		return err
	}

	link := s.baseURL + "/reset-password?token=" + token
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Username, link); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// IssueResetToken signs a reset token for email
func (s *Service) IssueResetToken(email string) (string, error) {
	now := time.Now()
	claims := ResetClaims{
		Email:   email,
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.resetTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.resetSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

// VerifyResetToken returns the email a valid reset token was issued for
func (s *Service) VerifyResetToken(tokenString string) (string, error) {
	claims, err := s.parseResetToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}

func (s *Service) parseResetToken(tokenString string) (*ResetClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ResetClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.resetSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidResetToken
	}

	claims, ok := token.Claims.(*ResetClaims)
	if !ok || claims.Purpose != resetPurpose || claims.Email == "" {
		return nil, ErrInvalidResetToken
	}
	return claims, nil
}

// ResetPassword verifies token and sets a new password on the backend.
// With a ledger configured each token resets the password once.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	claims, err := s.parseResetToken(token)
	if err != nil {
		return err
	}
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: MessagePasswordTooShort}
	}

	if s.ledger != nil {
		if claims.ID == "" {
			return ErrInvalidResetToken
		}
		ttl := time.Second
		if claims.ExpiresAt != nil {
			if left := time.Until(claims.ExpiresAt.Time); left > ttl {
				ttl = left
			}
		}
		fresh, err := s.ledger.ClaimResetToken(ctx, claims.ID, ttl)
		if err != nil {
			return fmt.Errorf("failed to claim reset token: %w", err)
		}
		if !fresh {
			s.logger.WithField("email", claims.Email).Warn("reset token reused")
			return ErrInvalidResetToken
		}
	}

	if err := s.users.ResetPassword(ctx, claims.Email, password); err != nil {
		if s.ledger != nil {
			if rerr := s.ledger.ReleaseResetToken(ctx, claims.ID); rerr != nil {
				s.logger.WithError(rerr).Warn("failed to release reset token")
			}
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}
	s.logger.WithField("email", claims.Email).Info("password reset")
	return nil
}

// ResetMessage maps a ResetPassword error to the message shown on the form
func ResetMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrInvalidResetToken):
		return MessageResetInvalid
	default:
		return MessageResetFailed
	}
}
