package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/backend"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/events"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/metrics"
)

const (
	DefaultMaxDescriptionLength = 500
	DefaultProgressTTL          = time.Hour

	MessageTitleAndFileRequired = "Please provide a title and select a video file"
	MessageNoResponse           = "No response received from server. Please check your connection."
)

// ValidationError is a form check that failed before any network call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Form is a submitted upload form
type Form struct {
	Title       string
	Description string
	Email       string
	File        *backend.FilePart
	Thumbnail   *backend.FilePart
}

// Validate checks required fields and the description length in characters
func (f Form) Validate(maxDescription int) error {
	if strings.TrimSpace(f.Title) == "" || f.File == nil {
		field := "title"
		if f.File == nil {
			field = "file"
		}
		return &ValidationError{Field: field, Message: MessageTitleAndFileRequired}
	}
	if utf8.RuneCountInString(f.Description) > maxDescription {
		return &ValidationError{
			Field:   "description",
			Message: fmt.Sprintf("Description must be %d characters or less", maxDescription),
		}
	}
	return nil
}

// Uploader sends the multipart request to the backend
type Uploader interface {
	UploadVideo(ctx context.Context, req backend.UploadRequest, progress backend.ProgressFunc) (*backend.UploadResult, error)
}

// ProgressStore keeps the last reported percentage per upload id
type ProgressStore interface {
	SetUploadProgress(ctx context.Context, uploadID string, percent int, ttl time.Duration) error
	GetUploadProgress(ctx context.Context, uploadID string) (int, bool, error)
}

// ListingInvalidator drops cached listings after a new upload
type ListingInvalidator interface {
	InvalidateListings(ctx context.Context, uploaderEmail string)
}

// Result is a completed upload
type Result struct {
	UploadID string
	VideoID  string
	Title    string
	Message  string
}

// Service validates and submits uploads
type Service struct {
	uploader       Uploader
	progress       ProgressStore
	listings       ListingInvalidator
	publisher      events.Publisher
	maxDescription int
	progressTTL    time.Duration
	logger         *logging.Logger
}

// Option configures a Service
type Option func(*Service)

// WithProgressStore stores progress for polling
func WithProgressStore(store ProgressStore, ttl time.Duration) Option {
	return func(s *Service) {
		s.progress = store
		s.progressTTL = ttl
	}
}

// WithListingInvalidator invalidates cached listings on success
func WithListingInvalidator(inv ListingInvalidator) Option {
	return func(s *Service) {
		s.listings = inv
	}
}

// WithPublisher publishes video.uploaded events
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithMaxDescriptionLength overrides the description cap
func WithMaxDescriptionLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxDescription = n
		}
	}
}

// NewService creates an upload service
func NewService(uploader Uploader, logger *logging.Logger, opts ...Option) *Service {
	s := &Service{
		uploader:       uploader,
		publisher:      events.Nop{},
		maxDescription: DefaultMaxDescriptionLength,
		progressTTL:    DefaultProgressTTL,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxDescriptionLength is the description cap in characters
func (s *Service) MaxDescriptionLength() int {
	return s.maxDescription
}

// NewUploadID generates an id under which progress is tracked
func NewUploadID() string {
	return uuid.New().String()
}

// Submit validates form and streams it to the backend. An empty form email
// falls back to sessionEmail. Validation failures return *ValidationError
// without contacting the backend.
func (s *Service) Submit(ctx context.Context, uploadID string, form Form, sessionEmail string) (*Result, error) {
	if err := form.Validate(s.maxDescription); err != nil {
		return nil, err
	}
	if uploadID == "" {
		uploadID = NewUploadID()
	}
	if strings.TrimSpace(form.Email) == "" {
		form.Email = sessionEmail
	}

	logger := s.logger.WithUploadID(uploadID)
	s.recordProgress(ctx, logger, uploadID, 0)

	size := form.File.Size
	if form.Thumbnail != nil {
		size += form.Thumbnail.Size
	}

	result, err := s.uploader.UploadVideo(ctx, backend.UploadRequest{
		Title:       form.Title,
		Description: form.Description,
		Email:       form.Email,
		File:        form.File,
		Thumbnail:   form.Thumbnail,
	}, func(percent int) {
		s.recordProgress(ctx, logger, uploadID, percent)
	})
	if err != nil {
		metrics.RecordUpload("failure", size)
		logger.WithError(err).Error("upload failed")
		return nil, err
	}
	metrics.RecordUpload("success", size)

	if s.listings != nil {
		s.listings.InvalidateListings(ctx, form.Email)
	}

	event := events.New(events.TypeVideoUploaded)
	event.VideoID = result.VideoID
	event.Title = form.Title
	event.Email = form.Email
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WithError(err).Warn("failed to publish upload event")
	}

	logger.WithVideoID(result.VideoID).Info("video uploaded")
	return &Result{
		UploadID: uploadID,
		VideoID:  result.VideoID,
		Title:    form.Title,
		Message:  SuccessMessage(form.Title),
	}, nil
}

// Progress returns the last stored percentage for uploadID
func (s *Service) Progress(ctx context.Context, uploadID string) (int, bool, error) {
	if s.progress == nil {
		return 0, false, nil
	}
	return s.progress.GetUploadProgress(ctx, uploadID)
}

func (s *Service) recordProgress(ctx context.Context, logger *logging.Logger, uploadID string, percent int) {
	logger.LogUploadProgress(uploadID, percent)
	if s.progress == nil {
		return
	}
	if err := s.progress.SetUploadProgress(ctx, uploadID, percent, s.progressTTL); err != nil {
		logger.WithError(err).Warn("failed to store upload progress")
	}
}

// SuccessMessage is shown after a completed upload
func SuccessMessage(title string) string {
	return fmt.Sprintf(`Video "%s" uploaded successfully!`, title)
}

// FailureMessage classifies an upload error into the message shown to the
// user
func FailureMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}

	var berr *backend.Error
	if errors.As(err, &berr) {
		switch berr.Kind {
		case backend.KindServer, backend.KindNotFound:
			return fmt.Sprintf("Server error (%d): %s", berr.Status, berr.Message)
		case backend.KindNetwork:
			return MessageNoResponse
		default:
			if berr.Err != nil {
				return fmt.Sprintf("Request error: %v", berr.Err)
			}
		}
	}
	return fmt.Sprintf("Request error: %v", err)
}
