package backend

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
)

// FilePart is one file field of an upload
type FilePart struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// UploadRequest is the multipart payload of POST /videos/upload
type UploadRequest struct {
	Title       string
	Description string
	Email       string
	File        *FilePart
	Thumbnail   *FilePart
}

// UploadResult is the backend's answer to a successful upload
type UploadResult struct {
	Message string
	VideoID string
}

// ProgressFunc receives the percentage of the request body sent, 0..100.
// It is called only when the value changes.
type ProgressFunc func(percent int)

// UploadVideo streams req to the backend as multipart/form-data. The body is
// produced through a pipe so neither file is buffered in memory.
func (c *Client) UploadVideo(ctx context.Context, up UploadRequest, progress ProgressFunc) (*UploadResult, error) {
	const op = "upload_video"

	if up.File == nil {
		return nil, &Error{Kind: KindRequest, Op: op, Err: fmt.Errorf("file part is required")}
	}

	boundary := multipart.NewWriter(io.Discard).Boundary()
	total, err := multipartLength(up, boundary)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Op: op, Err: err}
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeMultipart(pw, up, boundary, true))
	}()

	body := &progressReader{rc: pr, total: total, fn: progress, last: -1}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("videos", "upload"), body)
	if err != nil {
		pr.CloseWithError(err)
		return nil, &Error{Kind: KindRequest, Op: op, Err: err}
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)

	resp, err := c.do(c.stream, req, op)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	body.finish()

	message := strings.TrimSpace(string(text))
	return &UploadResult{Message: message, VideoID: parseUploadedID(message)}, nil
}

// parseUploadedID extracts the id from "Video uploaded successfully with ID: <id>"
func parseUploadedID(message string) string {
	const marker = "ID:"
	i := strings.LastIndex(message, marker)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(message[i+len(marker):])
}

func writeMultipart(w io.Writer, up UploadRequest, boundary string, withContent bool) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return err
	}

	fields := [][2]string{
		{"title", up.Title},
		{"description", up.Description},
		{"email", up.Email},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	if err := writeFilePart(mw, "file", up.File, withContent); err != nil {
		return err
	}
	if up.Thumbnail != nil {
		if err := writeFilePart(mw, "thumbnail", up.Thumbnail, withContent); err != nil {
			return err
		}
	}

	return mw.Close()
}

func writeFilePart(mw *multipart.Writer, field string, part *FilePart, withContent bool) error {
	contentType := part.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(part.Filename)))
	h.Set("Content-Type", contentType)

	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if !withContent {
		return nil
	}

	n, err := io.Copy(pw, part.Content)
	if err != nil {
		return err
	}
	if n != part.Size {
		return fmt.Errorf("%s: read %d bytes, expected %d", field, n, part.Size)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// multipartLength is the exact body size: the envelope written without
// content plus the declared part sizes.
func multipartLength(up UploadRequest, boundary string) (int64, error) {
	var cw countingWriter
	if err := writeMultipart(&cw, up, boundary, false); err != nil {
		return 0, err
	}
	total := cw.n + up.File.Size
	if up.Thumbnail != nil {
		total += up.Thumbnail.Size
	}
	return total, nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

type progressReader struct {
	rc    io.ReadCloser
	total int64
	fn    ProgressFunc

	mu   sync.Mutex
	sent int64
	last int
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if n > 0 {
		r.mu.Lock()
		r.sent += int64(n)
		r.report(Percent(r.sent, r.total))
		r.mu.Unlock()
	}
	return n, err
}

func (r *progressReader) Close() error {
	return r.rc.Close()
}

func (r *progressReader) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == r.total {
		r.report(100)
	}
}

func (r *progressReader) report(percent int) {
	if r.fn == nil || percent == r.last {
		return
	}
	r.last = percent
	r.fn(percent)
}

// Percent is round(sent*100/total) clamped to 0..100
func Percent(sent, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int((sent*100 + total/2) / total)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
