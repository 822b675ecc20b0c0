package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/backend"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/middleware"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/storage"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/upload"
)

const MessageUploadTooLarge = "The selected files are too large to upload."

func (s *Server) uploadForm(c *gin.Context) {
	s.render(c, http.StatusOK, "upload.html", s.uploadData(c, gin.H{}))
}

// uploadData fills the values every render of the upload form needs
func (s *Server) uploadData(c *gin.Context, data gin.H) gin.H {
	data["Title"] = "Upload Video"
	data["UploadID"] = upload.NewUploadID()
	data["MaxDescription"] = s.Uploads.MaxDescriptionLength()
	if _, ok := data["Email"]; !ok {
		data["Email"] = middleware.GetSession(c).Email
	}
	return data
}

// filePart opens an uploaded form file. A missing field yields nil.
func filePart(c *gin.Context, field string) (*backend.FilePart, multipart.File, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeFor(header.Filename)
	}
	return &backend.FilePart{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Content:     f,
	}, f, nil
}

func (s *Server) uploadVideo(c *gin.Context) {
	logger := middleware.GetLogger(c, s.Logger)
	clearDeadlines(c, logger)
	if s.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	}

	file, fileCloser, err := filePart(c, "file")
	if err != nil {
		logger.WithError(err).Warn("failed to read upload form")
		s.uploadFailed(c, formErrorStatus(err), formErrorMessage(err), nil)
		return
	}
	if fileCloser != nil {
		defer fileCloser.Close()
	}

	thumbnail, thumbCloser, err := filePart(c, "thumbnail")
	if err != nil {
		logger.WithError(err).Warn("failed to read upload thumbnail")
		s.uploadFailed(c, formErrorStatus(err), formErrorMessage(err), nil)
		return
	}
	if thumbCloser != nil {
		defer thumbCloser.Close()
	}

	form := upload.Form{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Email:       c.PostForm("email"),
		File:        file,
		Thumbnail:   thumbnail,
	}

	result, err := s.Uploads.Submit(c.Request.Context(), c.PostForm("upload_id"), form, middleware.GetSession(c).Email)
	if err != nil {
		status := http.StatusBadGateway
		var verr *upload.ValidationError
		if errors.As(err, &verr) {
			status = http.StatusBadRequest
		}
		s.uploadFailed(c, status, upload.FailureMessage(err), &form)
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{
			"uploadId": result.UploadID,
			"videoId":  result.VideoID,
			"message":  result.Message,
		})
		return
	}

	// The form starts over empty after a successful upload.
	s.render(c, http.StatusOK, "upload.html", s.uploadData(c, gin.H{
		"Message": result.Message,
	}))
}

// uploadFailed answers a failed upload as JSON or by re-rendering the form
// with the submitted values
func (s *Server) uploadFailed(c *gin.Context, status int, message string, form *upload.Form) {
	if wantsJSON(c) {
		c.JSON(status, gin.H{"error": message})
		return
	}

	data := gin.H{"Error": message}
	if form != nil {
		data["Form"] = form
		data["Email"] = form.Email
	}
	s.render(c, status, "upload.html", s.uploadData(c, data))
}

// clearDeadlines lifts the server's read and write deadlines so large
// uploads are bounded by MaxUploadBytes rather than by transfer time.
func clearDeadlines(c *gin.Context, logger *logging.Logger) {
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetReadDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.WithError(err).Warn("failed to clear upload read deadline")
	}
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.WithError(err).Warn("failed to clear upload write deadline")
	}
}

func formErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func formErrorMessage(err error) string {
	if formErrorStatus(err) == http.StatusRequestEntityTooLarge {
		return MessageUploadTooLarge
	}
	if errors.Is(err, http.ErrNotMultipart) {
		return upload.MessageTitleAndFileRequired
	}
	return fmt.Sprintf("Request error: %v", err)
}

func wantsJSON(c *gin.Context) bool {
	return c.GetHeader("Accept") == "application/json"
}
