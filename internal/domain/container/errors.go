package container

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("container not found")
	ErrExpired       = errors.New("this share link has expired")
	ErrCorruptRecord = errors.New("file record is corrupt and cannot be downloaded, please ask the sender to re-upload it")
)

// ValidationError is bad client input. Its message is safe to show verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UploadError means the blob store rejected or failed a file mid-transfer.
type UploadError struct {
	File string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %q failed: %v", e.File, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ReclaimError is returned when the metadata record could not be deleted.
// Individual blob failures never produce it.
type ReclaimError struct {
	PublicID PublicID
	Err      error
}

func (e *ReclaimError) Error() string {
	return fmt.Sprintf("reclaim container %s: %v", e.PublicID, e.Err)
}

func (e *ReclaimError) Unwrap() error { return e.Err }
