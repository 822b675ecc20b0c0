package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hash fields of a stored session
const (
	fieldLoggedIn = "isLoggedIn"
	fieldEmail    = "userEmail"
	fieldName     = "userName"
)

// Session is the per-browser login state. The zero value is a logged-out
// visitor.
type Session struct {
	LoggedIn bool   `json:"isLoggedIn"`
	Email    string `json:"userEmail"`
	Name     string `json:"userName"`
}

// Store keeps sessions in Redis, one hash per session id
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStore creates a session store. Sessions expire ttl after their last Set.
func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// NewID generates a fresh session id
func NewID() string {
	return uuid.New().String()
}

// Set writes all three fields and the expiry in one transaction
func (s *Store) Set(ctx context.Context, id string, sess Session) error {
	key := sessionKey(id)
	loggedIn := "false"
	if sess.LoggedIn {
		loggedIn = "true"
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldLoggedIn, loggedIn,
			fieldEmail, sess.Email,
			fieldName, sess.Name,
		)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Read returns the stored session. Missing fields read as absent, so an
// unknown id yields the zero Session.
func (s *Store) Read(ctx context.Context, id string) (Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session: %w", err)
	}
	return Session{
		LoggedIn: fields[fieldLoggedIn] == "true",
		Email:    fields[fieldEmail],
		Name:     fields[fieldName],
	}, nil
}

// Clear removes the session
func (s *Store) Clear(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
