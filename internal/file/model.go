// Package file implements quota-enforced file uploads, deletes, and the
// live per-user catalog over object storage and Postgres metadata.
package file

import "time"

// File is the metadata record for one stored object. Records are created by
// a successful upload, removed by a successful delete, and never updated.
type File struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"fileName"`
	ContentType string    `json:"fileType"`
	Size        int64     `json:"fileSize"`
	StorageKey  string    `json:"-"`
	DownloadURL string    `json:"downloadUrl"`
	UploadedAt  time.Time `json:"uploadedAt"`
}
