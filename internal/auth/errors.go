package auth

import "errors"

var (
	ErrNotFound             = errors.New("auth: not found")
	ErrAuthenticationFailed = errors.New("auth: authentication failed")
	ErrForbidden            = errors.New("auth: forbidden")
	ErrConflict             = errors.New("auth: conflict")
	ErrUnavailable          = errors.New("auth: unavailable")
)
