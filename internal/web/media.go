package web

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/backend"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/middleware"
)

const fallbackThumbnail = "/static/img/thumbnail.svg"

// streamHeaders are copied from the backend stream response so the media
// element can seek
var streamHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
}

func (s *Server) thumbnail(c *gin.Context) {
	videoID := c.Param("id")

	obj, err := s.Thumbnails.Get(c.Request.Context(), videoID)
	if err != nil {
		if !backend.IsNotFound(err) {
			middleware.GetLogger(c, s.Logger).WithError(err).WithVideoID(videoID).Warn("thumbnail unavailable")
		}
		c.Redirect(http.StatusFound, fallbackThumbnail)
		return
	}
	defer obj.Body.Close()

	c.Header("Cache-Control", "public, max-age=300")
	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, nil)
}

func (s *Server) stream(c *gin.Context) {
	videoID := c.Param("id")

	resp, err := s.Streams.Stream(c.Request.Context(), videoID, c.GetHeader("Range"))
	if err != nil {
		status := http.StatusBadGateway
		if kind, ok := backend.KindOf(err); ok && kind == backend.KindNotFound {
			status = http.StatusNotFound
		} else {
			middleware.GetLogger(c, s.Logger).WithError(err).WithVideoID(videoID).Error("stream failed")
		}
		c.Status(status)
		return
	}
	defer resp.Body.Close()

	for _, h := range streamHeaders {
		if v := resp.Header.Get(h); v != "" {
			c.Header(h, v)
		}
	}
	if resp.ContentLength >= 0 && resp.Header.Get("Content-Length") == "" {
		c.Header("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}

	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		// Clients abandon streams whenever they seek.
		middleware.GetLogger(c, s.Logger).WithError(err).WithVideoID(videoID).Debug("stream copy ended")
	}
}
