package attachments

import "errors"

// Sentinel errors for attachment operations.
var (
	// ErrNoFiles is returned when an upload carries no files.
	ErrNoFiles = errors.New("no files uploaded")

	// ErrTooManyFiles is returned when an upload carries more than MaxFiles files.
	ErrTooManyFiles = errors.New("too many files")

	// ErrFileTooLarge is returned when a file exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrFileRejected is returned for executables, libraries and scripts.
	ErrFileRejected = errors.New("file type not allowed")

	// ErrInvalidKey is returned when an attachment key is not one we issued.
	ErrInvalidKey = errors.New("invalid attachment key")

	// ErrNotFound is returned when the attachment does not exist.
	ErrNotFound = errors.New("attachment not found")
)
