package profile

import (
	"context"
	"errors"
	"strings"
	"unicode/utf16"

	"github.com/therealutkarshpriyadarshi/streamflow/internal/events"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/session"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
)

const (
	DefaultName = "User"

	MessageLoadFailed   = "Failed to load your videos. Please try again later."
	MessageDeleteFailed = "Failed to delete video. Please try again."
)

// ErrNotOwner is returned when deleting a video the user did not upload
var ErrNotOwner = errors.New("video does not belong to the current user")

// ErrNotLoggedIn is returned when the session carries no email
var ErrNotLoggedIn = errors.New("not logged in")

// Palette is the set of avatar background colours
var Palette = []string{
	"blue", "purple", "green", "red",
	"yellow", "pink", "indigo", "teal",
}

// AvatarColor picks a palette colour from a rolling hash of the name's
// UTF-16 code units. The shift operates on the low 32 bits of the running
// value, so the result matches for names of any length.
func AvatarColor(name string) string {
	var h int64
	for _, c := range utf16.Encode([]rune(name)) {
		shifted := int64(int32(uint32(h)) << 5)
		h = int64(c) + shifted - h
	}
	if h < 0 {
		h = -h
	}
	return Palette[h%int64(len(Palette))]
}

// Initial is the upper-cased first letter shown inside the avatar
func Initial(name string) string {
	for _, r := range name {
		return strings.ToUpper(string(r))
	}
	return ""
}

// Catalog is the part of the catalog service profiles need
type Catalog interface {
	UploaderVideos(ctx context.Context, email string) ([]models.Video, error)
	InvalidateVideo(ctx context.Context, id, uploaderEmail string)
}

// Deleter removes videos on the backend
type Deleter interface {
	DeleteVideo(ctx context.Context, id string) error
}

// Stats are the counters shown on the profile header
type Stats struct {
	TotalVideos int
	TotalViews  int
}

// Page is the profile view
type Page struct {
	Name        string
	Email       string
	AvatarColor string
	Initial     string
	Videos      []models.Video
	Stats       Stats
	Error       string
}

// Service builds profile pages and deletes videos
type Service struct {
	catalog   Catalog
	deleter   Deleter
	publisher events.Publisher
	logger    *logging.Logger
}

// NewService creates a profile service
func NewService(catalog Catalog, deleter Deleter, publisher events.Publisher, logger *logging.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		catalog:   catalog,
		deleter:   deleter,
		publisher: publisher,
		logger:    logger,
	}
}

// Load builds the profile page for sess. The caller redirects to login
// when it returns ErrNotLoggedIn.
func (s *Service) Load(ctx context.Context, sess session.Session) (Page, error) {
	if sess.Email == "" {
		return Page{}, ErrNotLoggedIn
	}

	name := sess.Name
	if name == "" {
		name = DefaultName
	}
	page := Page{
		Name:        name,
		Email:       sess.Email,
		AvatarColor: AvatarColor(name),
		Initial:     Initial(name),
	}

	videos, err := s.catalog.UploaderVideos(ctx, sess.Email)
	if err != nil {
		s.logger.WithError(err).Error("failed to load uploader videos")
		page.Error = MessageLoadFailed
		return page, nil
	}

	page.Videos = videos
	// View counts are not tracked by the backend.
	page.Stats = Stats{TotalVideos: len(videos)}
	return page, nil
}

// Delete removes one of the user's own videos and invalidates cached
// listings that contain it
func (s *Service) Delete(ctx context.Context, sess session.Session, videoID string) error {
	if sess.Email == "" {
		return ErrNotLoggedIn
	}

	videos, err := s.catalog.UploaderVideos(ctx, sess.Email)
	if err != nil {
		return err
	}
	if !containsVideo(videos, videoID) {
		return ErrNotOwner
	}

	if err := s.deleter.DeleteVideo(ctx, videoID); err != nil {
		s.logger.WithError(err).WithVideoID(videoID).Error("failed to delete video")
		return err
	}
	s.catalog.InvalidateVideo(ctx, videoID, sess.Email)

	event := events.New(events.TypeVideoDeleted)
	event.VideoID = videoID
	event.Email = sess.Email
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).Warn("failed to publish delete event")
	}

	s.logger.WithVideoID(videoID).Info("video deleted")
	return nil
}

func containsVideo(videos []models.Video, id string) bool {
	for _, v := range videos {
		if v.UniqueID == id {
			return true
		}
	}
	return false
}
