package detail

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
)

// MockFetcher is a mock implementation of Fetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Video(ctx context.Context, id string) (*models.Video, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Video), args.Error(1)
}

func (m *MockFetcher) Videos(ctx context.Context) ([]models.Video, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Video), args.Error(1)
}

func TestParseQuery(t *testing.T) {
	values, err := url.ParseQuery("id=v1&title=Foo&description=Bar%20baz")
	require.NoError(t, err)

	q := ParseQuery(values)
	assert.Equal(t, Query{ID: "v1", Title: "Foo", Description: "Bar baz"}, q)
}

func TestWatchPathEscapes(t *testing.T) {
	path := WatchPath(models.Video{UniqueID: "v1", Title: "Cats & Dogs", Description: "a=b"})

	u, err := url.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "/watch", u.Path)
	assert.Equal(t, "Cats & Dogs", u.Query().Get("title"))
	assert.Equal(t, "a=b", u.Query().Get("description"))
}

func TestProvisional(t *testing.T) {
	r := NewResolver(new(MockFetcher), "http://localhost:3000/", logging.Nop())

	view := r.Provisional(Query{ID: "v1", Title: "Foo", Description: "Bar"})
	assert.True(t, view.Ready())
	assert.True(t, view.Provisional)
	assert.Equal(t, "Foo", view.Video.Title)
	assert.Equal(t, "Bar", view.Video.Description)
	assert.Equal(t, "http://localhost:3000/watch?description=Bar&id=v1&title=Foo", view.ShareURL)
}

func TestResolveOverwritesProvisionalValues(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Video", mock.Anything, "v1").Return(&models.Video{UniqueID: "v1", Title: "Real", Description: "Actual"}, nil)
	fetcher.On("Videos", mock.Anything).Return([]models.Video{{UniqueID: "v1"}, {UniqueID: "v2"}, {UniqueID: "v3"}}, nil)

	r := NewResolver(fetcher, "http://localhost:3000", logging.Nop())
	view := r.Resolve(context.Background(), Query{ID: "v1", Title: "Foo", Description: "Bar"})

	require.True(t, view.Ready())
	assert.False(t, view.Provisional)
	assert.Equal(t, "Real", view.Video.Title)
	assert.Equal(t, "Actual", view.Video.Description)
	assert.Equal(t, []string{"v2", "v3"}, models.VideoIDs(view.UpNext))
	assert.Empty(t, view.UpNextError)
}

func TestResolveFetchFailureShowsErrorPanel(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Video", mock.Anything, "v1").Return(nil, assert.AnError)
	fetcher.On("Videos", mock.Anything).Return([]models.Video{{UniqueID: "v2"}}, nil)

	r := NewResolver(fetcher, "http://localhost:3000", logging.Nop())
	view := r.Resolve(context.Background(), Query{ID: "v1", Title: "Foo", Description: "Bar"})

	assert.False(t, view.Ready())
	assert.Equal(t, MessageLoadFailed, view.Error)
	assert.NotEqual(t, "Foo", view.Video.Title)
	assert.NotEqual(t, "Bar", view.Video.Description)
	assert.Empty(t, view.UpNext)
}

func TestResolveMissingIDMakesNoFetch(t *testing.T) {
	fetcher := new(MockFetcher)

	r := NewResolver(fetcher, "http://localhost:3000", logging.Nop())
	view := r.Resolve(context.Background(), Query{Title: "Foo"})

	assert.Equal(t, MessageNoID, view.Error)
	fetcher.AssertNotCalled(t, "Video", mock.Anything, mock.Anything)
	fetcher.AssertNotCalled(t, "Videos", mock.Anything)
}

func TestResolveUpNextFailureKeepsPage(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Video", mock.Anything, "v1").Return(&models.Video{UniqueID: "v1", Title: "Cats"}, nil)
	fetcher.On("Videos", mock.Anything).Return(nil, assert.AnError)

	r := NewResolver(fetcher, "http://localhost:3000", logging.Nop())
	view := r.Resolve(context.Background(), Query{ID: "v1"})

	require.True(t, view.Ready())
	assert.Equal(t, "Cats", view.Video.Title)
	assert.Equal(t, MessageUpNextFailed, view.UpNextError)
	assert.Empty(t, view.UpNext)
}

func TestResolveVideoFailureLeavesUpNextFetchRunning(t *testing.T) {
	videoDone := make(chan struct{})
	var upNextCtxErr error

	fetcher := new(MockFetcher)
	fetcher.On("Video", mock.Anything, "v1").
		Run(func(mock.Arguments) { close(videoDone) }).
		Return(nil, assert.AnError)
	fetcher.On("Videos", mock.Anything).
		Run(func(args mock.Arguments) {
			<-videoDone
			upNextCtxErr = args.Get(0).(context.Context).Err()
		}).
		Return([]models.Video{{UniqueID: "v2"}}, nil)

	r := NewResolver(fetcher, "http://localhost:3000", logging.Nop())
	view := r.Resolve(context.Background(), Query{ID: "v1"})

	assert.Equal(t, MessageLoadFailed, view.Error)
	assert.NoError(t, upNextCtxErr)
	fetcher.AssertExpectations(t)
}
