package account

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/backend"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/config"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/events"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/session"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
)

// MockUserSource is a mock implementation of UserSource
type MockUserSource struct {
	mock.Mock
}

func (m *MockUserSource) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserSource) RegisterUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockUserSource) ResetPassword(ctx context.Context, email, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

// MockMailer is a mock implementation of mail.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, toEmail, toName, resetLink string) error {
	args := m.Called(ctx, toEmail, toName, resetLink)
	return args.Error(0)
}

// memoryLedger is an in-memory TokenLedger
type memoryLedger struct {
	used map[string]time.Duration
}

func (l *memoryLedger) ClaimResetToken(_ context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if _, ok := l.used[tokenID]; ok {
		return false, nil
	}
	l.used[tokenID] = ttl
	return true, nil
}

func (l *memoryLedger) ReleaseResetToken(_ context.Context, tokenID string) error {
	delete(l.used, tokenID)
	return nil
}

var admin = config.AdminConfig{Email: "streamAdmin123@gmail.com", Password: "streamAdmin123"}

var users = []models.User{
	{Username: "alice", Email: "alice@example.com", Password: "secret1"},
	{Username: "bob", Email: "bob@example.com", Password: "hunter22"},
}

func newService(src *MockUserSource, mailer *MockMailer, pub events.Publisher) *Service {
	return NewService(src, mailer, pub, admin, "reset-secret", 15*time.Minute, "http://localhost:8080/", logging.Nop())
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name        string
		username    string
		password    string
		listErr     error
		want        session.Session
		wantMessage string
	}{
		{
			name:     "match",
			username: "alice", password: "secret1",
			want: session.Session{LoggedIn: true, Email: "alice@example.com", Name: "alice"},
		},
		{name: "wrong password", username: "alice", password: "nope", wantMessage: MessageInvalidCredentials},
		{name: "unknown user", username: "carol", password: "secret1", wantMessage: MessageInvalidCredentials},
		{name: "cross-matched pair", username: "alice", password: "hunter22", wantMessage: MessageInvalidCredentials},
		{name: "missing username", password: "secret1", wantMessage: MessageMissingCredentials},
		{name: "missing password", username: "alice", wantMessage: MessageMissingCredentials},
		{name: "backend failure", username: "alice", password: "secret1", listErr: assert.AnError, wantMessage: MessageLoginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := new(MockUserSource)
			if tt.listErr != nil {
				src.On("ListUsers", mock.Anything).Return(nil, tt.listErr)
			} else {
				src.On("ListUsers", mock.Anything).Return(users, nil)
			}
			svc := newService(src, new(MockMailer), nil)

			sess, err := svc.Login(context.Background(), tt.username, tt.password)
			if tt.wantMessage == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, sess)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantMessage, LoginMessage(err))
			assert.Equal(t, session.Session{}, sess)
		})
	}
}

func TestLoginMissingFieldsSkipsBackend(t *testing.T) {
	src := new(MockUserSource)
	svc := newService(src, new(MockMailer), nil)

	_, err := svc.Login(context.Background(), "", "")
	require.Error(t, err)
	src.AssertNotCalled(t, "ListUsers", mock.Anything)
}

func TestRegistrationValidate(t *testing.T) {
	tests := []struct {
		name string
		reg  Registration
		want string
	}{
		{"valid", Registration{"alice", "a@b.c", "secret1"}, ""},
		{"missing email", Registration{"alice", "", "secret1"}, MessageMissingFields},
		{"short password", Registration{"alice", "a@b.c", "12345"}, MessagePasswordTooShort},
		{"short username", Registration{"al", "a@b.c", "secret1"}, MessageUsernameTooShort},
		{"password checked first", Registration{"al", "a@b.c", "123"}, MessagePasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, RegisterMessage(err))
		})
	}
}

func TestRole(t *testing.T) {
	svc := newService(new(MockUserSource), new(MockMailer), nil)

	assert.Equal(t, models.UserRoleAdmin, svc.Role("streamAdmin123@gmail.com", "streamAdmin123"))
	assert.Equal(t, models.UserRoleUser, svc.Role("streamAdmin123@gmail.com", "wrong"))
	assert.Equal(t, models.UserRoleUser, svc.Role("someone@example.com", "streamAdmin123"))
}

func TestRegisterAssignsRole(t *testing.T) {
	tests := []struct {
		name     string
		reg      Registration
		wantRole models.UserRole
	}{
		{"admin pair", Registration{"admin", "streamAdmin123@gmail.com", "streamAdmin123"}, models.UserRoleAdmin},
		{"regular user", Registration{"alice", "alice@example.com", "secret1"}, models.UserRoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := new(MockUserSource)
			src.On("RegisterUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
				return u.Role == tt.wantRole && u.Username == tt.reg.Username
			})).Return("User created successfully!", nil)

			rec := &events.Recorder{}
			svc := newService(src, new(MockMailer), rec)

			sess, err := svc.Register(context.Background(), tt.reg)
			require.NoError(t, err)
			assert.Equal(t, session.Session{LoggedIn: true, Email: tt.reg.Email, Name: tt.reg.Username}, sess)
			assert.Equal(t, []string{events.TypeUserRegistered}, rec.Types())
			src.AssertExpectations(t)
		})
	}
}

func TestRegisterFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  string
	}{
		{"server message", "", &backend.Error{Kind: backend.KindServer, Status: 409, Message: "Username already exists"}, "Username already exists"},
		{"network", "", &backend.Error{Kind: backend.KindNetwork}, MessageRegisterFailed},
		{"empty reply", "", nil, MessageRegisterEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := new(MockUserSource)
			src.On("RegisterUser", mock.Anything, mock.Anything).Return(tt.reply, tt.err)
			rec := &events.Recorder{}
			svc := newService(src, new(MockMailer), rec)

			_, err := svc.Register(context.Background(), Registration{"alice", "alice@example.com", "secret1"})
			require.Error(t, err)
			assert.Equal(t, tt.want, RegisterMessage(err))
			assert.Empty(t, rec.Types())
		})
	}
}

func TestRequestPasswordResetSendsLink(t *testing.T) {
	src := new(MockUserSource)
	src.On("ListUsers", mock.Anything).Return(users, nil)

	var link string
	mailer := new(MockMailer)
	mailer.On("SendPasswordReset", mock.Anything, "bob@example.com", "bob", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { link = args.String(3) }).
		Return(nil)

	svc := newService(src, mailer, nil)
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "BOB@example.com"))
	mailer.AssertExpectations(t)

	assert.True(t, strings.HasPrefix(link, "http://localhost:8080/reset-password?token="))
	assert.NotContains(t, link, "hunter22")

	u, err := url.Parse(link)
	require.NoError(t, err)
	email, err := svc.VerifyResetToken(u.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", email)
}

func TestRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	src := new(MockUserSource)
	src.On("ListUsers", mock.Anything).Return(users, nil)
	mailer := new(MockMailer)

	svc := newService(src, mailer, nil)
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@example.com"))
	mailer.AssertNotCalled(t, "SendPasswordReset", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyResetToken(t *testing.T) {
	svc := newService(new(MockUserSource), new(MockMailer), nil)

	valid, err := svc.IssueResetToken("alice@example.com")
	require.NoError(t, err)

	other := NewService(new(MockUserSource), new(MockMailer), nil, admin, "other-secret", time.Minute, "", logging.Nop())
	forged, err := other.IssueResetToken("alice@example.com")
	require.NoError(t, err)

	expiredClaims := ResetClaims{
		Email:   "alice@example.com",
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString([]byte("reset-secret"))
	require.NoError(t, err)

	wrongPurpose, err := jwt.NewWithClaims(jwt.SigningMethodHS256, ResetClaims{
		Email:   "alice@example.com",
		Purpose: "session",
	}).SignedString([]byte("reset-secret"))
	require.NoError(t, err)

	email, err := svc.VerifyResetToken(valid)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	for name, token := range map[string]string{
		"forged":        forged,
		"expired":       expired,
		"wrong purpose": wrongPurpose,
		"garbage":       "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.VerifyResetToken(token)
			assert.ErrorIs(t, err, ErrInvalidResetToken)
		})
	}
}

func TestResetPassword(t *testing.T) {
	src := new(MockUserSource)
	src.On("ResetPassword", mock.Anything, "alice@example.com", "newpass1").Return(nil)
	svc := newService(src, new(MockMailer), nil)

	token, err := svc.IssueResetToken("alice@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(context.Background(), token, "newpass1"))
	src.AssertExpectations(t)

	err = svc.ResetPassword(context.Background(), token, "123")
	assert.Equal(t, MessagePasswordTooShort, ResetMessage(err))

	err = svc.ResetPassword(context.Background(), "bad", "newpass1")
	assert.Equal(t, MessageResetInvalid, ResetMessage(err))
}

func TestResetTokenIsSingleUse(t *testing.T) {
	src := new(MockUserSource)
	src.On("ResetPassword", mock.Anything, "alice@example.com", "newpass1").Return(nil).Once()
	ledger := &memoryLedger{used: map[string]time.Duration{}}
	svc := newService(src, new(MockMailer), nil).WithTokenLedger(ledger)

	token, err := svc.IssueResetToken("alice@example.com")
	require.NoError(t, err)

	// A rejected password does not spend the token.
	err = svc.ResetPassword(context.Background(), token, "123")
	assert.Equal(t, MessagePasswordTooShort, ResetMessage(err))
	assert.Empty(t, ledger.used)

	require.NoError(t, svc.ResetPassword(context.Background(), token, "newpass1"))
	require.Len(t, ledger.used, 1)
	for _, ttl := range ledger.used {
		assert.InDelta(t, (15 * time.Minute).Seconds(), ttl.Seconds(), 5)
	}

	err = svc.ResetPassword(context.Background(), token, "newpass1")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
	src.AssertNumberOfCalls(t, "ResetPassword", 1)

	// A fresh token still works.
	other, err := svc.IssueResetToken("alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestResetTokenReleasedOnBackendFailure(t *testing.T) {
	src := new(MockUserSource)
	src.On("ResetPassword", mock.Anything, "alice@example.com", "newpass1").Return(errors.New("backend down")).Once()
	src.On("ResetPassword", mock.Anything, "alice@example.com", "newpass1").Return(nil).Once()
	ledger := &memoryLedger{used: map[string]time.Duration{}}
	svc := newService(src, new(MockMailer), nil).WithTokenLedger(ledger)

	token, err := svc.IssueResetToken("alice@example.com")
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), token, "newpass1")
	assert.Equal(t, MessageResetFailed, ResetMessage(err))
	assert.Empty(t, ledger.used)

	require.NoError(t, svc.ResetPassword(context.Background(), token, "newpass1"))
	src.AssertExpectations(t)
}
