package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/comments"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/media"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/middleware"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}

// VideoListResponse is a filtered catalog
type VideoListResponse struct {
	Query   string         `json:"query"`
	Total   int            `json:"total"`
	Videos  []models.Video `json:"videos"`
	Message string         `json:"message,omitempty"`
}

// DurationResponse is a probed video length
type DurationResponse struct {
	VideoID string  `json:"videoId"`
	Seconds float64 `json:"seconds"`
	Label   string  `json:"label"`
}

// ProgressResponse is the last reported progress of an upload
type ProgressResponse struct {
	UploadID string `json:"uploadId"`
	Percent  int    `json:"percent"`
	Done     bool   `json:"done"`
}

// CommentResponse is a comment with its display date
type CommentResponse struct {
	models.Comment
	Date string `json:"date"`
}

// apiSearchVideos godoc
// @Summary      Search videos
// @Description  Lists the catalog in backend order, keeping titles that contain q (case-insensitive)
// @Tags         videos
// @Produce      json
// @Param        q    query     string  false  "Title search term"
// @Success      200  {object}  web.VideoListResponse
// @Failure      502  {object}  web.ErrorResponse
// @Router       /api/v1/videos [get]
func (s *Server) apiSearchVideos(c *gin.Context) {
	page := s.Catalog.Load(c.Request.Context(), strings.TrimSpace(c.Query("q")))
	if page.Error != "" {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: page.Error})
		return
	}

	videos := page.Videos
	if videos == nil {
		videos = []models.Video{}
	}
	c.JSON(http.StatusOK, VideoListResponse{
		Query:   page.Query,
		Total:   page.Total,
		Videos:  videos,
		Message: page.Message,
	})
}

// apiVideoDuration godoc
// @Summary      Video duration
// @Description  Probes the video stream for its length. The label is "--:--" when probing fails.
// @Tags         videos
// @Produce      json
// @Param        id   path      string  true  "Video ID"
// @Success      200  {object}  web.DurationResponse
// @Failure      502  {object}  web.DurationResponse
// @Failure      503  {object}  web.ErrorResponse
// @Router       /api/v1/videos/{id}/duration [get]
func (s *Server) apiVideoDuration(c *gin.Context) {
	videoID := c.Param("id")
	if s.Prober == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "duration probing is disabled"})
		return
	}

	seconds, err := s.Prober.Duration(c.Request.Context(), videoID)
	if err != nil {
		middleware.GetLogger(c, s.Logger).WithError(err).WithVideoID(videoID).Debug("duration probe failed")
		c.JSON(http.StatusBadGateway, DurationResponse{VideoID: videoID, Label: media.Unknown})
		return
	}

	c.JSON(http.StatusOK, DurationResponse{
		VideoID: videoID,
		Seconds: seconds,
		Label:   media.FormatDuration(seconds),
	})
}

// apiUploadProgress godoc
// @Summary      Upload progress
// @Description  Returns the last reported percentage (0-100) of an upload
// @Tags         uploads
// @Produce      json
// @Param        id   path      string  true  "Upload ID"
// @Success      200  {object}  web.ProgressResponse
// @Failure      404  {object}  web.ErrorResponse
// @Failure      500  {object}  web.ErrorResponse
// @Router       /api/v1/uploads/{id}/progress [get]
func (s *Server) apiUploadProgress(c *gin.Context) {
	uploadID := c.Param("id")

	percent, ok, err := s.Uploads.Progress(c.Request.Context(), uploadID)
	if err != nil {
		middleware.GetLogger(c, s.Logger).WithError(err).WithUploadID(uploadID).Error("failed to read upload progress")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to read upload progress"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Upload not found"})
		return
	}

	c.JSON(http.StatusOK, ProgressResponse{
		UploadID: uploadID,
		Percent:  percent,
		Done:     percent >= 100,
	})
}

// apiListComments godoc
// @Summary      List comments
// @Description  Returns a video's comments, newest first. Comments live in server memory only.
// @Tags         comments
// @Produce      json
// @Param        id   path      string  true  "Video ID"
// @Success      200  {array}   web.CommentResponse
// @Router       /api/v1/videos/{id}/comments [get]
func (s *Server) apiListComments(c *gin.Context) {
	list := s.Comments.List(c.Param("id"))
	now := s.now()

	out := make([]CommentResponse, 0, len(list))
	for _, cm := range list {
		out = append(out, CommentResponse{Comment: cm, Date: comments.FormatDate(cm.Timestamp, now)})
	}
	c.JSON(http.StatusOK, out)
}
