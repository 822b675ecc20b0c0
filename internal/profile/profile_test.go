package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/events"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/session"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
)

// MockCatalog is a mock implementation of Catalog
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) UploaderVideos(ctx context.Context, email string) ([]models.Video, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Video), args.Error(1)
}

func (m *MockCatalog) InvalidateVideo(ctx context.Context, id, uploaderEmail string) {
	m.Called(ctx, id, uploaderEmail)
}

// MockDeleter is a mock implementation of Deleter
type MockDeleter struct {
	mock.Mock
}

func (m *MockDeleter) DeleteVideo(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

var alice = session.Session{LoggedIn: true, Email: "alice@example.com", Name: "alice"}

func TestAvatarColor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"alice", "blue"},
		{"bob", "pink"},
		{"User", "red"},
		{"streamflow-administrator-account", "green"},
		{"", "blue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AvatarColor(tt.name))
		})
	}
}

func TestAvatarColorDeterministic(t *testing.T) {
	first := AvatarColor("alice")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AvatarColor("alice"))
	}
	assert.Contains(t, Palette, AvatarColor("ünïcødé 🎬"))
}

func TestInitial(t *testing.T) {
	assert.Equal(t, "A", Initial("alice"))
	assert.Equal(t, "É", Initial("émile"))
	assert.Equal(t, "", Initial(""))
}

func TestLoad(t *testing.T) {
	cat := new(MockCatalog)
	cat.On("UploaderVideos", mock.Anything, "alice@example.com").
		Return([]models.Video{{UniqueID: "v1"}, {UniqueID: "v2"}}, nil)

	svc := NewService(cat, new(MockDeleter), nil, logging.Nop())
	page, err := svc.Load(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, "alice", page.Name)
	assert.Equal(t, "A", page.Initial)
	assert.Equal(t, "blue", page.AvatarColor)
	assert.Equal(t, 2, page.Stats.TotalVideos)
	assert.Equal(t, 0, page.Stats.TotalViews)
	assert.Empty(t, page.Error)
}

func TestLoadRequiresEmail(t *testing.T) {
	svc := NewService(new(MockCatalog), new(MockDeleter), nil, logging.Nop())
	_, err := svc.Load(context.Background(), session.Session{})
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLoadDefaultNameAndFailure(t *testing.T) {
	cat := new(MockCatalog)
	cat.On("UploaderVideos", mock.Anything, "x@y.z").Return(nil, assert.AnError)

	svc := NewService(cat, new(MockDeleter), nil, logging.Nop())
	page, err := svc.Load(context.Background(), session.Session{LoggedIn: true, Email: "x@y.z"})
	require.NoError(t, err)
	assert.Equal(t, DefaultName, page.Name)
	assert.Equal(t, MessageLoadFailed, page.Error)
}

func TestDelete(t *testing.T) {
	cat := new(MockCatalog)
	cat.On("UploaderVideos", mock.Anything, "alice@example.com").Return([]models.Video{{UniqueID: "v1"}}, nil)
	cat.On("InvalidateVideo", mock.Anything, "v1", "alice@example.com").Return()

	del := new(MockDeleter)
	del.On("DeleteVideo", mock.Anything, "v1").Return(nil)

	rec := &events.Recorder{}
	svc := NewService(cat, del, rec, logging.Nop())

	require.NoError(t, svc.Delete(context.Background(), alice, "v1"))
	del.AssertExpectations(t)
	cat.AssertExpectations(t)
	assert.Equal(t, []string{events.TypeVideoDeleted}, rec.Types())
}

func TestDeleteRejectsOtherUsersVideo(t *testing.T) {
	cat := new(MockCatalog)
	cat.On("UploaderVideos", mock.Anything, "alice@example.com").Return([]models.Video{{UniqueID: "v1"}}, nil)
	del := new(MockDeleter)

	svc := NewService(cat, del, nil, logging.Nop())
	err := svc.Delete(context.Background(), alice, "someone-elses")
	assert.ErrorIs(t, err, ErrNotOwner)
	del.AssertNotCalled(t, "DeleteVideo", mock.Anything, mock.Anything)
}

func TestDeleteBackendFailureKeepsCache(t *testing.T) {
	cat := new(MockCatalog)
	cat.On("UploaderVideos", mock.Anything, "alice@example.com").Return([]models.Video{{UniqueID: "v1"}}, nil)
	del := new(MockDeleter)
	del.On("DeleteVideo", mock.Anything, "v1").Return(assert.AnError)

	svc := NewService(cat, del, nil, logging.Nop())
	assert.Error(t, svc.Delete(context.Background(), alice, "v1"))
	cat.AssertNotCalled(t, "InvalidateVideo", mock.Anything, mock.Anything, mock.Anything)
}
