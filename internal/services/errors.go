package services

import "errors"

var (
	ErrNotFound            = errors.New("record not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidPlan         = errors.New("invalid plan_id or plan is not active")
	ErrEmailTaken          = errors.New("email already registered")
	ErrPhoneTaken          = errors.New("phone number already registered")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrMalformedEvent      = errors.New("checkout request id missing from callback")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInactiveUser        = errors.New("inactive user")
	ErrUnsupportedFileType = errors.New("file type not allowed")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrMissingPhone        = errors.New("phone number required")
	ErrProviderUnavailable = errors.New("payment provider not configured")
)
