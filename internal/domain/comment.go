package domain

import "time"

// Comment belongs to exactly one post and one author.
type Comment struct {
	ID             string
	PostID         string
	AuthorID       string
	AuthorUsername string
	Content        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
