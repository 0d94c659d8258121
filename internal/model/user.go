package model

import "time"

// User is a registered account.
//
// Accounts come from two places: the registration form (username + password)
// and GitHub sign-in. GitHubID is nil for password-only accounts, and
// PasswordHash is empty for GitHub-only accounts.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GitHubID     *int64    `json:"githubId,omitempty"`
	DateJoined   time.Time `json:"dateJoined"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
