package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
)

// GuestName is the author shown when nobody is logged in
const GuestName = "Guest User"

// DefaultAvatar is the placeholder avatar of every comment author
const DefaultAvatar = "/static/img/avatar.svg"

// Thread limits
const (
	MaxLength   = 1000
	MaxComments = 200
)

var (
	// ErrCommentsNotPersisted is returned by LocalOnly for every operation
	ErrCommentsNotPersisted = errors.New("comments are not persisted by the backend")
	ErrCommentNotFound      = errors.New("comment not found")
	ErrNotAuthor            = errors.New("only the author can delete a comment")
)

// CommentBackend is where comments would be stored if the backend offered
// an endpoint for them
type CommentBackend interface {
	List(ctx context.Context, videoID string) ([]models.Comment, error)
	Save(ctx context.Context, videoID string, comment models.Comment) error
	Delete(ctx context.Context, videoID, commentID string) error
}

// LocalOnly is the CommentBackend in use: the backend has no comment API,
// so threads stay in process memory and Registry.Persistent reports false.
// Swapping in a real backend is the only change needed once an API exists.
type LocalOnly struct{}

func (LocalOnly) List(context.Context, string) ([]models.Comment, error) {
	return nil, ErrCommentsNotPersisted
}

func (LocalOnly) Save(context.Context, string, models.Comment) error {
	return ErrCommentsNotPersisted
}

func (LocalOnly) Delete(context.Context, string, string) error {
	return ErrCommentsNotPersisted
}

// Author returns the comment identity for a display name
func Author(name string) models.CommentAuthor {
	if strings.TrimSpace(name) == "" {
		name = GuestName
	}
	return models.CommentAuthor{Name: name, Avatar: DefaultAvatar}
}

// Thread is the newest-first comment list of one video
type Thread struct {
	mu       sync.RWMutex
	comments []models.Comment
	now      func() time.Time
}

// NewThread creates an empty thread
func NewThread() *Thread {
	return &Thread{now: time.Now}
}

// Add prepends a comment by user, written from the browser or account
// owner. Blank text and text longer than MaxLength runes leave the thread
// unchanged and return false. Once the thread holds MaxComments the oldest
// comment is dropped.
func (t *Thread) Add(text string, user models.CommentAuthor, owner string) (models.Comment, bool) {
	if strings.TrimSpace(text) == "" || utf8.RuneCountInString(text) > MaxLength {
		return models.Comment{}, false
	}

	c := models.Comment{
		ID:        uuid.New().String(),
		User:      user,
		Text:      text,
		Timestamp: t.now(),
		Likes:     0,
		Owner:     owner,
	}

	t.mu.Lock()
	n := len(t.comments) + 1
	if n > MaxComments {
		n = MaxComments
	}
	next := make([]models.Comment, 0, n)
	next = append(next, c)
	next = append(next, t.comments[:n-1]...)
	t.comments = next
	t.mu.Unlock()
	return c, true
}

// Remove drops the comment with id when owner wrote it
func (t *Thread) Remove(id, owner string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, c := range t.comments {
		if c.ID != id {
			continue
		}
		if owner == "" || c.Owner != owner {
			return ErrNotAuthor
		}
		t.comments = append(t.comments[:i:i], t.comments[i+1:]...)
		return nil
	}
	return ErrCommentNotFound
}

// List returns a copy of the comments, newest first
func (t *Thread) List() []models.Comment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]models.Comment(nil), t.comments...)
}

// Len is the number of comments
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.comments)
}

// Registry holds one thread per video for the life of the process
type Registry struct {
	mu      sync.Mutex
	threads map[string]*Thread
	backend CommentBackend
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		threads: make(map[string]*Thread),
		backend: LocalOnly{},
	}
}

// Thread returns the thread for videoID, creating it on first use. Callers
// create threads only for videos the backend knows.
func (r *Registry) Thread(videoID string) *Thread {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.threads[videoID]
	if !ok {
		t = NewThread()
		r.threads[videoID] = t
	}
	return t
}

// Lookup returns the thread for videoID without creating one
func (r *Registry) Lookup(videoID string) (*Thread, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.threads[videoID]
	return t, ok
}

// List returns the comments of videoID, newest first
func (r *Registry) List(videoID string) []models.Comment {
	t, ok := r.Lookup(videoID)
	if !ok {
		return nil
	}
	return t.List()
}

// Forget drops the thread of a deleted video
func (r *Registry) Forget(videoID string) {
	r.mu.Lock()
	delete(r.threads, videoID)
	r.mu.Unlock()
}

// Len is the number of threads held
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}

// Backend is the collaborator comments would be persisted to
func (r *Registry) Backend() CommentBackend {
	return r.backend
}

// Persistent asks the backend whether it stores comments
func (r *Registry) Persistent(ctx context.Context) bool {
	_, err := r.backend.List(ctx, "")
	return !errors.Is(err, ErrCommentsNotPersisted)
}

// FormatDate renders a comment timestamp relative to now
func FormatDate(ts, now time.Time) string {
	diff := now.Sub(ts)
	hours := int(diff.Hours())

	switch {
	case hours < 1:
		return "Just now"
	case hours < 24:
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return ts.Format("Jan 02, 2006")
	}
}
