package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/streamflow/internal/cache"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/metrics"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
	"golang.org/x/sync/singleflight"
)

// Page messages
const (
	MessageLoadFailed   = "Failed to load videos. Please try again later."
	MessageEmptyCatalog = "No videos have been uploaded yet."
	MessageNoMatches    = "No videos match your search."
)

// Source is the part of the backend client the catalog reads from
type Source interface {
	ListVideos(ctx context.Context) ([]models.Video, error)
	GetVideo(ctx context.Context, id string) (*models.Video, error)
	ListVideosByUploader(ctx context.Context, email string) ([]models.Video, error)
}

// Service memoizes backend reads in Redis and collapses concurrent
// identical fetches. A nil cache disables memoization.
type Service struct {
	source     Source
	cache      *cache.Cache
	catalogTTL time.Duration
	videoTTL   time.Duration
	group      singleflight.Group
	logger     *logging.Logger
}

// NewService creates a catalog service
func NewService(source Source, c *cache.Cache, catalogTTL, videoTTL time.Duration, logger *logging.Logger) *Service {
	return &Service{
		source:     source,
		cache:      c,
		catalogTTL: catalogTTL,
		videoTTL:   videoTTL,
		logger:     logger,
	}
}

// Videos returns the full catalog in backend order
func (s *Service) Videos(ctx context.Context) ([]models.Video, error) {
	if s.cache != nil {
		videos, ok, err := s.cache.GetCatalog(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("catalog cache read failed")
		}
		metrics.RecordCacheAccess("catalog", ok)
		if ok {
			return videos, nil
		}
	}

	v, err, _ := s.group.Do("catalog", func() (interface{}, error) {
		videos, err := s.source.ListVideos(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetCatalog(ctx, videos, s.catalogTTL); err != nil {
				s.logger.WithError(err).Warn("catalog cache write failed")
			}
		}
		return videos, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Video), nil
}

// Video returns one video's metadata
func (s *Service) Video(ctx context.Context, id string) (*models.Video, error) {
	if s.cache != nil {
		video, err := s.cache.GetVideo(ctx, id)
		if err != nil {
			s.logger.WithError(err).Warn("video cache read failed")
		}
		metrics.RecordCacheAccess("video", video != nil)
		if video != nil {
			return video, nil
		}
	}

	v, err, _ := s.group.Do("video:"+id, func() (interface{}, error) {
		video, err := s.source.GetVideo(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetVideo(ctx, video, s.videoTTL); err != nil {
				s.logger.WithError(err).Warn("video cache write failed")
			}
		}
		return video, nil
	})
	if err != nil {
		return nil, err
	}
	video := *v.(*models.Video)
	return &video, nil
}

// UploaderVideos returns the videos uploaded by email
func (s *Service) UploaderVideos(ctx context.Context, email string) ([]models.Video, error) {
	if s.cache != nil {
		videos, ok, err := s.cache.GetUploaderVideos(ctx, email)
		if err != nil {
			s.logger.WithError(err).Warn("uploader cache read failed")
		}
		metrics.RecordCacheAccess("uploader", ok)
		if ok {
			return videos, nil
		}
	}

	v, err, _ := s.group.Do("uploader:"+email, func() (interface{}, error) {
		videos, err := s.source.ListVideosByUploader(ctx, email)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetUploaderVideos(ctx, email, videos, s.catalogTTL); err != nil {
				s.logger.WithError(err).Warn("uploader cache write failed")
			}
		}
		return videos, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Video), nil
}

// InvalidateVideo drops cached reads affected by a change to one video
func (s *Service) InvalidateVideo(ctx context.Context, id, uploaderEmail string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateVideo(ctx, id, uploaderEmail); err != nil {
		s.logger.WithError(err).WithVideoID(id).Warn("cache invalidation failed")
	}
}

// InvalidateListings drops the cached catalog and the uploader's list
func (s *Service) InvalidateListings(ctx context.Context, uploaderEmail string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCatalog(ctx, uploaderEmail); err != nil {
		s.logger.WithError(err).Warn("cache invalidation failed")
	}
}

// Page is the home grid view
type Page struct {
	Query   string
	Videos  []models.Video
	Total   int
	Error   string
	Message string
}

// Load fetches the catalog and applies the search term
func (s *Service) Load(ctx context.Context, term string) Page {
	page := Page{Query: term}

	videos, err := s.Videos(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to load catalog")
		page.Error = MessageLoadFailed
		return page
	}

	page.Total = len(videos)
	page.Videos = Filter(videos, term)
	switch {
	case page.Total == 0:
		page.Message = MessageEmptyCatalog
	case len(page.Videos) == 0:
		page.Message = MessageNoMatches
	}
	return page
}

// Filter returns, in order, the videos whose title contains term ignoring
// case. An empty term returns videos unchanged.
func Filter(videos []models.Video, term string) []models.Video {
	if term == "" {
		return videos
	}

	needle := strings.ToLower(term)
	matched := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		if strings.Contains(strings.ToLower(v.Title), needle) {
			matched = append(matched, v)
		}
	}
	return matched
}

// Exclude returns videos without the entry whose id is id
func Exclude(videos []models.Video, id string) []models.Video {
	rest := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		if v.UniqueID != id {
			rest = append(rest, v)
		}
	}
	return rest
}
