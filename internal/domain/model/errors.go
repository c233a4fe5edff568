package model

import "errors"

// Sentinel kinds for model validation.
var (
	ErrInvalidOutcome = errors.New("invalid outcome")
	ErrInvalidVote    = errors.New("invalid vote")
)
