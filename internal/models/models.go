package models

import "time"

// Video represents an uploaded video's catalog entry
type Video struct {
	ID           string    `json:"_id"`
	StorageName  string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"size"`
	UploadDate   time.Time `json:"uploadDate"`
}

// NewVideo holds the caller-supplied fields of a video record.
// ID and UploadDate are assigned by the catalog.
type NewVideo struct {
	StorageName  string
	OriginalName string
	MimeType     string
	SizeBytes    int64
}

// ThumbnailKey returns the blob key of a video's cached thumbnail
func ThumbnailKey(videoID string) string {
	return "thumbnails/" + videoID + ".jpg"
}
