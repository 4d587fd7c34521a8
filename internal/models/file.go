package models

import "time"

// File is the unified record for both files and folders. Folders have
// Size 0, Type "folder" and an empty FileURL.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	FileURL      string    `json:"fileUrl"`
	ThumbnailURL *string   `json:"thumbnailUrl"`
	UserID       string    `json:"userId"`
	ParentID     *string   `json:"parentId"`
	IsFolder     bool      `json:"isFolder"`
	IsStarred    bool      `json:"isStarred"`
	IsTrash      bool      `json:"isTrash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
