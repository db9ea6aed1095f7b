package models

import "time"

// Folder is a named container owned by exactly one user. Folders hold files
// by membership only; they never contain other folders.
type Folder struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// FolderView is a folder together with its current member files.
type FolderView struct {
	Folder
	Files []*File `json:"files"`
}
