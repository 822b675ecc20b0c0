package comments

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/streamflow/pkg/models"
)

func TestAddRejectsBlankText(t *testing.T) {
	thread := NewThread()
	thread.Add("first", Author("alice"), "owner-1")
	before := thread.List()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, ok := thread.Add(text, Author("alice"), "owner-1")
		assert.False(t, ok)
	}
	assert.Equal(t, before, thread.List())
}

func TestAddPrependsExactlyOne(t *testing.T) {
	thread := NewThread()
	thread.Add("older", Author("bob"), "owner-1")

	c, ok := thread.Add("nice", Author("alice"), "owner-1")
	require.True(t, ok)

	list := thread.List()
	require.Len(t, list, 2)
	assert.Equal(t, "nice", list[0].Text)
	assert.Equal(t, c.ID, list[0].ID)
	assert.Equal(t, "alice", list[0].User.Name)
	assert.Equal(t, 0, list[0].Likes)
	assert.Equal(t, "older", list[1].Text)
}

func TestAddFixedClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	thread := &Thread{now: func() time.Time { return fixed }}

	c, ok := thread.Add("hello", Author(""), "owner-1")
	require.True(t, ok)
	assert.Equal(t, fixed, c.Timestamp)
	assert.Equal(t, GuestName, c.User.Name)
}

func TestRemove(t *testing.T) {
	thread := NewThread()
	a, _ := thread.Add("a", Author("x"), "owner-1")
	b, _ := thread.Add("b", Author("x"), "owner-1")

	assert.NoError(t, thread.Remove(a.ID, "owner-1"))
	assert.ErrorIs(t, thread.Remove("missing", "owner-1"), ErrCommentNotFound)

	list := thread.List()
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestRemoveRequiresAuthor(t *testing.T) {
	thread := NewThread()
	c, _ := thread.Add("mine", Author("alice"), "owner-alice")
	anon, _ := thread.Add("anonymous", Author(""), "")

	assert.ErrorIs(t, thread.Remove(c.ID, "owner-mallory"), ErrNotAuthor)
	assert.ErrorIs(t, thread.Remove(c.ID, ""), ErrNotAuthor)
	assert.ErrorIs(t, thread.Remove(anon.ID, ""), ErrNotAuthor)
	assert.Equal(t, 2, thread.Len())

	assert.NoError(t, thread.Remove(c.ID, "owner-alice"))
	assert.Equal(t, 1, thread.Len())
}

func TestAddRejectsOverlongText(t *testing.T) {
	thread := NewThread()

	_, ok := thread.Add(strings.Repeat("é", MaxLength+1), Author("alice"), "owner-1")
	assert.False(t, ok)
	assert.Equal(t, 0, thread.Len())

	_, ok = thread.Add(strings.Repeat("é", MaxLength), Author("alice"), "owner-1")
	assert.True(t, ok)
}

func TestThreadKeepsNewest(t *testing.T) {
	thread := NewThread()
	var last models.Comment
	for i := 0; i < MaxComments+25; i++ {
		last, _ = thread.Add(fmt.Sprintf("comment %d", i), Author("x"), "owner-1")
	}

	list := thread.List()
	require.Len(t, list, MaxComments)
	assert.Equal(t, last.ID, list[0].ID)
	assert.Equal(t, "comment 25", list[len(list)-1].Text)
}

func TestIDsAreUnique(t *testing.T) {
	thread := NewThread()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		c, _ := thread.Add("x", Author("x"), "owner-1")
		assert.False(t, seen[c.ID])
		seen[c.ID] = true
	}
}

func TestConcurrentAdds(t *testing.T) {
	thread := NewThread()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			thread.Add("hi", Author("x"), "owner-1")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, thread.Len())
}

func TestRegistryKeepsThreadPerVideo(t *testing.T) {
	r := NewRegistry()
	r.Thread("v1").Add("on v1", Author("x"), "owner-1")

	assert.Equal(t, 1, r.Thread("v1").Len())
	assert.Same(t, r.Thread("v1"), r.Thread("v1"))
}

func TestRegistryLookupDoesNotCreate(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup("nope")
	assert.False(t, ok)
	assert.Empty(t, r.List("nope"))
	assert.Equal(t, 0, r.Len())

	r.Thread("v1").Add("hi", Author("x"), "owner-1")
	assert.Len(t, r.List("v1"), 1)
	assert.Equal(t, 1, r.Len())

	r.Forget("v1")
	assert.Equal(t, 0, r.Len())
}

func TestLocalOnlyBackend(t *testing.T) {
	var b CommentBackend = NewRegistry().Backend()
	ctx := context.Background()

	_, err := b.List(ctx, "v1")
	assert.ErrorIs(t, err, ErrCommentsNotPersisted)
	assert.ErrorIs(t, b.Save(ctx, "v1", models.Comment{}), ErrCommentsNotPersisted)
	assert.ErrorIs(t, b.Delete(ctx, "v1", "c1"), ErrCommentsNotPersisted)
	assert.False(t, NewRegistry().Persistent(ctx))
}

func TestFormatDate(t *testing.T) {
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ts   time.Time
		want string
	}{
		{"seconds ago", now.Add(-30 * time.Second), "Just now"},
		{"59 minutes", now.Add(-59 * time.Minute), "Just now"},
		{"one hour", now.Add(-time.Hour), "1 hour ago"},
		{"five hours", now.Add(-5*time.Hour - 10*time.Minute), "5 hours ago"},
		{"23 hours", now.Add(-23 * time.Hour), "23 hours ago"},
		{"two days", now.Add(-48 * time.Hour), "Mar 08, 2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDate(tt.ts, now))
		})
	}
}
