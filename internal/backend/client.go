package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/metrics"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/tracing"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
)

const maxErrorBody = 4 << 10

// Client talks to the external video and user service
type Client struct {
	baseURL *url.URL
	http    *http.Client
	stream  *http.Client
	logger  *logging.Logger
}

// New creates a backend client. timeout bounds JSON calls; uploads and
// streams are bounded only by their context.
func New(baseURL string, timeout time.Duration, logger *logging.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme and host required", baseURL)
	}

	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
		logger:  logger,
	}, nil
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.String() + "/" + strings.Join(escaped, "/")
}

// StreamURL is the absolute URL of a video's byte stream
func (c *Client) StreamURL(videoID string) string {
	return c.endpoint("stream", "streamVideo", videoID)
}

// ListUsers fetches every user record
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.getJSON(ctx, "list_users", c.endpoint("users"), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// RegisterUser creates a user and returns the backend's confirmation text
func (c *Client) RegisterUser(ctx context.Context, user models.User) (string, error) {
	return c.postJSON(ctx, "register_user", c.endpoint("users", "register"), user)
}

// ResetPassword replaces the password of the user with the given email
func (c *Client) ResetPassword(ctx context.Context, email, password string) error {
	_, err := c.postJSON(ctx, "reset_password", c.endpoint("users", "reset-password"), map[string]string{
		"email":    email,
		"password": password,
	})
	return err
}

// ListVideos fetches the catalog in backend order
func (c *Client) ListVideos(ctx context.Context) ([]models.Video, error) {
	var videos []models.Video
	if err := c.getJSON(ctx, "list_videos", c.endpoint("videos"), &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

// GetVideo fetches one video's metadata
func (c *Client) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	var video models.Video
	if err := c.getJSON(ctx, "get_video", c.endpoint("videos", id), &video); err != nil {
		return nil, err
	}
	if video.UniqueID == "" {
		video.UniqueID = id
	}
	return &video, nil
}

// ListVideosByUploader fetches the videos uploaded by email
func (c *Client) ListVideosByUploader(ctx context.Context, email string) ([]models.Video, error) {
	var videos []models.Video
	if err := c.getJSON(ctx, "list_uploader_videos", c.endpoint("videos", "uploader", email), &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

// DeleteVideo removes a video
func (c *Client) DeleteVideo(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint("videos", id), nil)
	if err != nil {
		return &Error{Kind: KindRequest, Op: "delete_video", Err: err}
	}
	resp, err := c.do(c.http, req, "delete_video")
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Blob is a binary response body. Callers must close Body.
type Blob struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Thumbnail fetches a video's thumbnail image
func (c *Client) Thumbnail(ctx context.Context, id string) (*Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("videos", id, "thumbnail"), nil)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Op: "thumbnail", Err: err}
	}
	resp, err := c.do(c.http, req, "thumbnail")
	if err != nil {
		return nil, err
	}
	return &Blob{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

// Stream opens the video byte stream, forwarding an optional Range header.
// The caller owns the returned response body.
func (c *Client) Stream(ctx context.Context, id, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.StreamURL(id), nil)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Op: "stream", Err: err}
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	return c.do(c.stream, req, "stream")
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &Error{Kind: KindRequest, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(c.http, req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: "malformed response body", Err: err}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, op, endpoint string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Kind: KindRequest, Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindRequest, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(c.http, req, op)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	return strings.TrimSpace(string(text)), nil
}

// do sends req and turns transport failures and error statuses into *Error.
// On success the caller owns resp.Body.
func (c *Client) do(client *http.Client, req *http.Request, op string) (*http.Response, error) {
	span, req := tracing.StartBackendCall(req, op)

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		berr := &Error{Kind: KindNetwork, Op: op, Err: err}
		c.record(op, 0, elapsed, berr)
		tracing.FinishBackendCall(span, 0, berr)
		return nil, berr
	}

	if resp.StatusCode >= http.StatusBadRequest {
		berr := &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: errorMessage(resp)}
		if resp.StatusCode == http.StatusNotFound {
			berr.Kind = KindNotFound
		}
		resp.Body.Close()
		c.record(op, resp.StatusCode, elapsed, berr)
		tracing.FinishBackendCall(span, resp.StatusCode, berr)
		return nil, berr
	}

	tracing.FinishBackendCall(span, resp.StatusCode, nil)
	c.record(op, resp.StatusCode, elapsed, nil)
	return resp, nil
}

func (c *Client) record(op string, status int, elapsed time.Duration, err *Error) {
	outcome := "ok"
	if err != nil {
		outcome = err.Kind.String()
		metrics.RecordError("backend", outcome)
		c.logger.LogBackendCall(op, status, elapsed, err)
	} else {
		c.logger.LogBackendCall(op, status, elapsed, nil)
	}
	metrics.RecordBackendRequest(op, outcome, elapsed.Seconds())
}

// errorMessage pulls a human message out of an error response: a JSON
// "message" or "error" field, else the trimmed body, else the status text.
func errorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	text := strings.TrimSpace(string(raw))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text != "" && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
