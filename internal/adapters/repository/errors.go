package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound       = errors.New("profile not found")
	ErrDuplicate      = errors.New("profile already exists")
	ErrInvalidLimit   = errors.New("invalid limit")
	ErrInvalidProfile = errors.New("invalid profile")
	ErrClosed         = errors.New("store closed")
)
