package web

import (
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/comments"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/detail"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/middleware"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/profile"
)

func (s *Server) funcMap() template.FuncMap {
	return template.FuncMap{
		"watchPath": detail.WatchPath,
		"thumbnailURL": func(id string) string {
			return "/videos/" + url.PathEscape(id) + "/thumbnail"
		},
		"streamURL": func(id string) string {
			return "/stream/streamVideo/" + url.PathEscape(id)
		},
		"commentDate": func(ts time.Time) string {
			return comments.FormatDate(ts, s.now())
		},
		"avatarColor": profile.AvatarColor,
		"initial":     profile.Initial,
		"pathEscape":  url.PathEscape,
	}
}

// render executes a page template. Every page gets the current session
// under "Session".
func (s *Server) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Session"] = middleware.GetSession(c)
	c.HTML(status, name, data)
}

// errorPage renders the shared error panel
func (s *Server) errorPage(c *gin.Context, status int, message string) {
	s.render(c, status, "error.html", gin.H{
		"Title":   "Something went wrong",
		"Message": message,
	})
}

func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}
