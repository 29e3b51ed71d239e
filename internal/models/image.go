package models

import "time"

// Image is an uploaded object in the images bucket.
type Image struct {
	ID          string
	Key         string
	URL         string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// UploadInfo tells the client where and how to PUT the file.
type UploadInfo struct {
	UploadURL      string
	ImageID        string
	Key            string
	PublicURL      string
	Expires        time.Duration
	RequiredHeader map[string]string
}
