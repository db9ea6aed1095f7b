package models

import "time"

// File describes one uploaded object. The bytes live in the storage engine
// under StorageKey; the row is the only place the display name is kept.
type File struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"ownerId"`
	// FolderID is nil for loose (top-level) files.
	FolderID *int64 `json:"folderId"`

	Name       string `json:"name"`
	StorageKey string `json:"storageKey"`
	// Size is the observed number of bytes written to storage.
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	// URL is directly usable to download the object.
	URL string `json:"url"`

	CreatedAt time.Time `json:"createdAt"`
}

// InFolder reports whether the file is a member of folderID.
func (f *File) InFolder(folderID int64) bool {
	return f.FolderID != nil && *f.FolderID == folderID
}
