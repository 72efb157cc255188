package model

import "time"

// BlobItem is one entry of a storage folder listing.
type BlobItem struct {
	Name     string     `json:"name"`
	FullPath string     `json:"fullPath"`
	IsFolder bool       `json:"isFolder"`
	Size     *int64     `json:"size,omitempty"`
	Updated  *time.Time `json:"updated,omitempty"`
}
