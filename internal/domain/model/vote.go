package model

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the tagged result of one comparison, relative to the
// presentation order of the pair.
type Outcome string

// Recognised outcomes.
const (
	LeftWins  Outcome = "left"
	RightWins Outcome = "right"
	Draw      Outcome = "draw"
)

// ParseOutcome accepts the wire spellings of an outcome. Anything else
// yields ErrInvalidOutcome.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case LeftWins:
		return LeftWins, nil
	case RightWins:
		return RightWins, nil
	case Draw:
		return Draw, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
}

// Valid reports whether o is one of the recognised outcomes.
func (o Outcome) Valid() bool {
	return o == LeftWins || o == RightWins || o == Draw
}

// Vote is an immutable record of one pairwise judgment.
type Vote struct {
	ID        string
	SessionID string
	LeftID    string
	RightID   string
	Outcome   Outcome
	CreatedAt time.Time
}

// Validate checks the invariants every stored vote satisfies.
func (v Vote) Validate() error {
	switch {
	case v.LeftID == "" || v.RightID == "":
		return fmt.Errorf("%w: missing profile id", ErrInvalidVote)
	case v.LeftID == v.RightID:
		return fmt.Errorf("%w: left and right are the same profile", ErrInvalidVote)
	case !v.Outcome.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, v.Outcome)
	}
	return nil
}

// WinnerID returns the id of the winning profile, or "" for a draw.
func (v Vote) WinnerID() string {
	switch v.Outcome {
	case LeftWins:
		return v.LeftID
	case RightWins:
		return v.RightID
	default:
		return ""
	}
}

// ProfileIDs returns both participants in presentation order.
func (v Vote) ProfileIDs() [2]string {
	return [2]string{v.LeftID, v.RightID}
}

// RatingChange describes one side of an applied vote.
type RatingChange struct {
	ProfileID string
	Before    float64
	After     float64
}

// Delta is After - Before.
func (c RatingChange) Delta() float64 {
	return c.After - c.Before
}

// AppliedVote is what storage returns after persisting a vote and the
// ratings it produced.
type AppliedVote struct {
	Vote  Vote
	Left  RatingChange
	Right RatingChange
}
