// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account that owns folders and files.
type User struct {
	ID           int64
	UserName     string
	PasswordHash []byte
	CreatedAt    time.Time
}
