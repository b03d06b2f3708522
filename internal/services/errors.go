package services

import (
	"net/http"

	apierrors "stockdash/internal/errors"
)

// Dashboard service errors. They are shared values: compare with errors.Is
// and never attach context to them.
var (
	ErrSessionNotFound   = apierrors.NewNotFoundError("session")
	ErrEmptyUpload       = apierrors.NewAppValidationError("upload contains no files")
	ErrTooManyUploads    = apierrors.NewLimitError("too many files in one upload")
	ErrUploadTooLarge    = apierrors.NewLimitError("uploaded file exceeds the size limit")
	ErrUnsupportedUpload = apierrors.NewUnsupportedTypeError("uploads must be CSV files")

	ErrTooManySessions = apierrors.New(http.StatusServiceUnavailable, apierrors.CodeServiceUnavailable, "Too many active sessions, retry later")
)
