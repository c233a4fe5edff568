package session

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for session errors.
var (
	ErrPairMismatch      = errors.New("vote does not match the shown pair")
	ErrInvalidTransition = errors.New("invalid session transition")
)

// PairMismatchError carries the pair that was shown and the ids that were
// submitted against it. Shown is empty when no pair was outstanding.
type PairMismatchError struct {
	Shown     []string
	Submitted []string
}

func (e *PairMismatchError) Error() string {
	if len(e.Shown) == 0 {
		return fmt.Sprintf("%s: no pair shown, got [%s]", ErrPairMismatch, strings.Join(e.Submitted, ", "))
	}
	return fmt.Sprintf("%s: shown [%s], got [%s]", ErrPairMismatch,
		strings.Join(e.Shown, ", "), strings.Join(e.Submitted, ", "))
}

// Is lets errors.Is match against ErrPairMismatch.
func (e *PairMismatchError) Is(target error) bool {
	return target == ErrPairMismatch
}

func transitionError(from State, op string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, from)
}
