package domain

import "time"

// MediaAsset is a stored upload.
type MediaAsset struct {
	PublicID   string    `json:"publicId"`
	StorageKey string    `json:"-"`
	URL        string    `json:"url"`
	Format     string    `json:"format"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploadedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UploadFile is one decoded multipart part.
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type UploadOptions struct {
	Folder  string
	Quality int
	Format  string
}
