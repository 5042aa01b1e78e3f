package rbac

import "errors"

var (
	ErrNotFound = errors.New("rbac: not found")
	ErrConflict = errors.New("rbac: conflict")
)
