package model

import "time"

// UploadedFile is a user-selected audio blob together with its declared media type.
type UploadedFile struct {
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"-"`
	SelectedAt  time.Time `json:"selectedAt"`
}

// Source is an opaque reference to a playable byte stream held by a source store.
type Source struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}
