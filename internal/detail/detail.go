package detail

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/therealutkarshpriyadarshi/streamflow/internal/catalog"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
)

// Panel messages
const (
	MessageNoID         = "No video ID provided"
	MessageLoadFailed   = "Failed to load video data"
	MessageUpNextFailed = "Failed to load more videos"
)

// Fetcher is the part of the catalog service the watch page needs
type Fetcher interface {
	Video(ctx context.Context, id string) (*models.Video, error)
	Videos(ctx context.Context) ([]models.Video, error)
}

// Query is what the watch link carries
type Query struct {
	ID          string
	Title       string
	Description string
}

// ParseQuery reads id, title and description from a watch URL query
func ParseQuery(values url.Values) Query {
	return Query{
		ID:          strings.TrimSpace(values.Get("id")),
		Title:       values.Get("title"),
		Description: values.Get("description"),
	}
}

// Encode renders q as a watch URL query string
func (q Query) Encode() string {
	values := url.Values{}
	values.Set("id", q.ID)
	values.Set("title", q.Title)
	values.Set("description", q.Description)
	return values.Encode()
}

// WatchPath is the relative link to a video's watch page
func WatchPath(v models.Video) string {
	return "/watch?" + Query{ID: v.UniqueID, Title: v.Title, Description: v.Description}.Encode()
}

// View is the watch page state. When Error is set nothing else is shown.
type View struct {
	Video       models.Video
	Provisional bool
	Error       string
	UpNext      []models.Video
	UpNextError string
	ShareURL    string
}

// Ready reports whether the page has video data to show
func (v View) Ready() bool {
	return v.Error == ""
}

// Resolver builds watch page views
type Resolver struct {
	fetcher Fetcher
	baseURL string
	logger  *logging.Logger
}

// NewResolver creates a resolver. baseURL prefixes share links.
func NewResolver(fetcher Fetcher, baseURL string, logger *logging.Logger) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Provisional is the view built from the query alone, before any fetch
func (r *Resolver) Provisional(q Query) View {
	if q.ID == "" {
		return View{Error: MessageNoID}
	}
	return View{
		Video:       models.Video{UniqueID: q.ID, Title: q.Title, Description: q.Description},
		Provisional: true,
		ShareURL:    r.shareURL(q),
	}
}

// Resolve fetches the video by id and the up-next list concurrently. The
// fetched metadata replaces any provisional values; a failed fetch replaces
// the whole view with the error panel. Up-next failures only mark the
// sidebar.
func (r *Resolver) Resolve(ctx context.Context, q Query) View {
	view := r.Provisional(q)
	if !view.Ready() {
		return view
	}

	var (
		video     *models.Video
		videoErr  error
		upNext    []models.Video
		upNextErr error
	)

	// Neither fetch cancels the other: the catalog listing is shared with
	// concurrent page loads.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		video, videoErr = r.fetcher.Video(ctx, q.ID)
	}()
	go func() {
		defer wg.Done()
		var all []models.Video
		all, upNextErr = r.fetcher.Videos(ctx)
		if upNextErr == nil {
			upNext = catalog.Exclude(all, q.ID)
		}
	}()
	wg.Wait()

	if videoErr != nil {
		r.logger.WithError(videoErr).WithVideoID(q.ID).Error("failed to load video")
		return View{Error: MessageLoadFailed}
	}

	view.Video = *video
	if view.Video.UniqueID == "" {
		view.Video.UniqueID = q.ID
	}
	view.Provisional = false
	view.ShareURL = r.shareURL(Query{ID: view.Video.UniqueID, Title: view.Video.Title, Description: view.Video.Description})

	if upNextErr != nil {
		r.logger.WithError(upNextErr).Warn("failed to load up next")
		view.UpNextError = MessageUpNextFailed
	} else {
		view.UpNext = upNext
	}
	return view
}

func (r *Resolver) shareURL(q Query) string {
	return r.baseURL + "/watch?" + q.Encode()
}
