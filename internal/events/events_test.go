package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/config"
)

func TestNewStampsEvent(t *testing.T) {
	a := New(TypeVideoUploaded)
	b := New(TypeVideoUploaded)

	assert.Equal(t, TypeVideoUploaded, a.Type)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.OccurredAt.IsZero())
}

func TestEventJSON(t *testing.T) {
	e := New(TypeVideoDeleted)
	e.VideoID = "v1"

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "video.deleted", fields["type"])
	assert.Equal(t, "v1", fields["video_id"])
	assert.NotContains(t, fields, "email")
}

func TestNopAndRecorder(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), New(TypeUserRegistered)))

	r := &Recorder{}
	p = r
	require.NoError(t, p.Publish(context.Background(), New(TypeUserRegistered)))
	require.NoError(t, p.Publish(context.Background(), New(TypeVideoUploaded)))
	assert.Equal(t, []string{TypeUserRegistered, TypeVideoUploaded}, r.Types())
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestMulti(t *testing.T) {
	first, second := &Recorder{}, &Recorder{}
	boom := errors.New("broker down")

	m := Multi{first, failingPublisher{err: boom}, second}
	err := m.Publish(context.Background(), New(TypeVideoDeleted))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{TypeVideoDeleted}, first.Types())
	assert.Equal(t, []string{TypeVideoDeleted}, second.Types())

	assert.NoError(t, Multi{}.Publish(context.Background(), New(TypeVideoDeleted)))
}

func TestURL(t *testing.T) {
	url := URL(config.QueueConfig{Host: "mq", Port: 5672, User: "guest", Password: "pw", Vhost: "/"})
	assert.Equal(t, "amqp://guest:pw@mq:5672/", url)
}

func TestNewAMQPPublisherUnreachable(t *testing.T) {
	_, err := NewAMQPPublisher(config.QueueConfig{Host: "127.0.0.1", Port: 1, User: "guest", Password: "guest", Vhost: "/"})
	assert.Error(t, err)
}
