// Package model defines the data structures used throughout the application.
// Structs here carry no behaviour beyond small accessors; persistence lives in
// internal/repository and business rules in internal/service.
package model

import "time"

// Post is a blog entry. AuthorID is the owning user's internal ID; Author is
// the owner's username, filled in by the repository on reads.
type Post struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	DatePosted time.Time `json:"datePosted"`
	AuthorID   string    `json:"authorId"`
	Author     string    `json:"author"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// OwnerID implements Owned.
func (p *Post) OwnerID() string {
	if p == nil {
		return ""
	}
	return p.AuthorID
}

// Owned is anything with a single owning user. The ownership guard in
// internal/auth works on this interface.
type Owned interface {
	OwnerID() string
}
