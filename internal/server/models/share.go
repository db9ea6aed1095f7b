package models

import "time"

// Share is an expiring read-only grant on one folder.
type Share struct {
	Token     string    `json:"token"`
	FolderID  int64     `json:"folderId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the share is no longer valid at now.
func (s *Share) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SharedFolder is what an unauthenticated share resolution returns.
type SharedFolder struct {
	FolderView
	ExpiresAt time.Time `json:"expiresAt"`
}
