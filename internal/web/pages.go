package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/backend"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/comments"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/detail"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/media"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/middleware"
)

// Comment messages
const (
	MessageCommentNoVideo  = "This video does not exist."
	MessageCommentNotYours = "You can only delete your own comments."
)

// CommenterCookie identifies a signed-out browser as a comment owner
const CommenterCookie = "streamflow_commenter"

const commenterCookieAge = 365 * 24 * 60 * 60

func (s *Server) home(c *gin.Context) {
	s.render(c, http.StatusOK, "home.html", gin.H{"Title": "StreamFlow"})
}

func (s *Server) catalogPage(c *gin.Context) {
	page := s.Catalog.Load(c.Request.Context(), strings.TrimSpace(c.Query("q")))

	status := http.StatusOK
	if page.Error != "" {
		status = http.StatusBadGateway
	}
	s.render(c, status, "catalog.html", gin.H{
		"Title": "Videos",
		"Page":  page,
	})
}

func (s *Server) watchPage(c *gin.Context) {
	q := detail.ParseQuery(c.Request.URL.Query())
	view := s.Detail.Resolve(c.Request.Context(), q)

	if !view.Ready() {
		status := http.StatusBadGateway
		if view.Error == detail.MessageNoID {
			status = http.StatusBadRequest
		}
		s.errorPage(c, status, view.Error)
		return
	}

	duration := media.Unknown
	if s.Prober != nil {
		duration = s.Prober.Label(c.Request.Context(), view.Video.UniqueID)
	}

	s.render(c, http.StatusOK, "watch.html", gin.H{
		"Title":      view.Video.Title,
		"View":       view,
		"Duration":   duration,
		"Comments":   s.Comments.List(view.Video.UniqueID),
		"Commenter":  commenterID(c, false),
		"MaxComment": comments.MaxLength,
		"ReturnPath": detail.WatchPath(view.Video),
	})
}

// commentReturn is where a comment form post goes back to. Only watch
// links are accepted.
func commentReturn(c *gin.Context, videoID string) string {
	ret := c.PostForm("return")
	if strings.HasPrefix(ret, "/watch?") {
		return ret
	}
	return "/watch?" + url.Values{"id": {videoID}}.Encode()
}

func commentAuthorName(c *gin.Context) string {
	sess := middleware.GetSession(c)
	if sess.LoggedIn && sess.Name != "" {
		return sess.Name
	}
	return comments.GuestName
}

// commenterID identifies the comment owner: the account when logged in,
// otherwise a per-browser cookie that is issued when create is set
func commenterID(c *gin.Context, create bool) string {
	if sess := middleware.GetSession(c); sess.LoggedIn && sess.Email != "" {
		return "user:" + sess.Email
	}
	if id, err := c.Cookie(CommenterCookie); err == nil && id != "" {
		return "guest:" + id
	}
	if !create {
		return ""
	}

	id := uuid.New().String()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CommenterCookie, id, commenterCookieAge, "/", "", false, true)
	return "guest:" + id
}

func (s *Server) addComment(c *gin.Context) {
	videoID := c.Param("id")

	if _, err := s.Catalog.Video(c.Request.Context(), videoID); err != nil {
		if backend.IsNotFound(err) {
			s.errorPage(c, http.StatusNotFound, MessageCommentNoVideo)
			return
		}
		middleware.GetLogger(c, s.Logger).WithError(err).WithVideoID(videoID).Error("comment video lookup failed")
		s.errorPage(c, http.StatusBadGateway, detail.MessageLoadFailed)
		return
	}

	author := comments.Author(commentAuthorName(c))
	if _, ok := s.Comments.Thread(videoID).Add(c.PostForm("text"), author, commenterID(c, true)); !ok {
		middleware.GetLogger(c, s.Logger).WithVideoID(videoID).Debug("ignored blank or overlong comment")
	}
	redirect(c, commentReturn(c, videoID))
}

func (s *Server) removeComment(c *gin.Context) {
	videoID := c.Param("id")

	if thread, ok := s.Comments.Lookup(videoID); ok {
		err := thread.Remove(c.Param("cid"), commenterID(c, false))
		if errors.Is(err, comments.ErrNotAuthor) {
			s.errorPage(c, http.StatusForbidden, MessageCommentNotYours)
			return
		}
	}
	redirect(c, commentReturn(c, videoID))
}
