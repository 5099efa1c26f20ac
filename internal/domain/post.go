package domain

import "time"

// Post is a board entry written by a user.
type Post struct {
	ID             string
	Title          string
	Content        string
	AuthorID       string
	AuthorUsername string
	CommentCount   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
