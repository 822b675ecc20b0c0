package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/middleware"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/profile"
)

func (s *Server) profilePage(c *gin.Context) {
	page, err := s.Profiles.Load(c.Request.Context(), middleware.GetSession(c))
	if errors.Is(err, profile.ErrNotLoggedIn) {
		redirect(c, LoginPath)
		return
	}

	s.render(c, http.StatusOK, "profile.html", gin.H{
		"Title": "My Profile",
		"Page":  page,
	})
}

func (s *Server) deleteVideo(c *gin.Context) {
	videoID := c.Param("id")
	err := s.Profiles.Delete(c.Request.Context(), middleware.GetSession(c), videoID)

	switch {
	case err == nil:
		if s.Thumbnails != nil {
			s.Thumbnails.Evict(c.Request.Context(), videoID)
		}
		s.Comments.Forget(videoID)
		redirect(c, ProfilePath)
	case errors.Is(err, profile.ErrNotLoggedIn):
		redirect(c, LoginPath)
	case errors.Is(err, profile.ErrNotOwner):
		s.errorPage(c, http.StatusForbidden, profile.MessageDeleteFailed)
	default:
		middleware.GetLogger(c, s.Logger).WithError(err).WithVideoID(videoID).Error("delete failed")
		s.errorPage(c, http.StatusBadGateway, profile.MessageDeleteFailed)
	}
}
