package file

import "errors"

var (
	// ErrQuotaExceeded rejects an upload before any side effect.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrUploadFailed covers transport or key-collision failures while
	// writing the object. Nothing was committed.
	ErrUploadFailed = errors.New("upload failed")

	// ErrMetadataWrite means the object was written but its record was not.
	// The object is cleaned up best-effort; on cleanup failure it stays
	// orphaned (invisible, never served).
	ErrMetadataWrite = errors.New("file metadata write failed")

	// ErrDeleteFailed means the object removal failed; record, object, and
	// counter are all still in their prior consistent state.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrNotFound targets a file record that does not exist (or belongs to
	// another user).
	ErrNotFound = errors.New("file not found")
)
