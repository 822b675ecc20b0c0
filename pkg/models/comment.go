package models

import "time"

// CommentAuthor is the display identity attached to a comment
type CommentAuthor struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Comment is a watch-page comment. Comments live in memory only.
type Comment struct {
	ID        string        `json:"id"`
	User      CommentAuthor `json:"user"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
	Likes     int           `json:"likes"`
	// Owner identifies the browser or account that wrote the comment. Only
	// the owner may delete it.
	Owner string `json:"-"`
}
