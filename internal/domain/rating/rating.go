// Package rating implements the pairwise rating update used to turn votes
// into strength estimates.
package rating

import (
	"fmt"
	"math"

	"github.com/okian/versus/internal/domain/model"
)

// Default rating configuration constants.
const (
	DefaultKFactor = 32.0
	eloScale       = 400.0
	eloBase        = 10.0
)

// Scores a side can receive from one comparison.
const (
	Loss = 0.0
	Tie  = 0.5
	Win  = 1.0
)

// ErrInvalidOutcome is returned for outcome values outside {0, 0.5, 1} or
// outside the recognised outcome variants.
var ErrInvalidOutcome = model.ErrInvalidOutcome

// Expected returns the probability that a player rated a beats one rated b.
func Expected(a, b float64) float64 {
	return 1 / (1 + math.Pow(eloBase, (b-a)/eloScale))
}

// UpdateRatings returns the new ratings of A and B after a comparison in
// which A scored scoreA. Each side is rounded half-up on its own, so the sum
// may drift by one point from the inputs.
//
// scoreA is trusted; use ValidateScore or Engine.Update when it comes from
// outside the package.
func UpdateRatings(ratingA, ratingB, scoreA, kFactor float64) (float64, float64) {
	expectedA := Expected(ratingA, ratingB)
	expectedB := Expected(ratingB, ratingA)

	newA := round(ratingA + kFactor*(scoreA-expectedA))
	newB := round(ratingB + kFactor*((1-scoreA)-expectedB))
	return newA, newB
}

// round matches the half-up rounding used when ratings were first published.
func round(x float64) float64 {
	return math.Floor(x + 0.5)
}

// ValidateScore rejects scores other than Loss, Tie and Win.
func ValidateScore(scoreA float64) error {
	switch scoreA {
	case Loss, Tie, Win:
		return nil
	default:
		return fmt.Errorf("%w: score %v", ErrInvalidOutcome, scoreA)
	}
}

// ScoreFor converts a tagged outcome into the left side's numeric score.
func ScoreFor(o model.Outcome) (float64, error) {
	switch o {
	case model.LeftWins:
		return Win, nil
	case model.RightWins:
		return Loss, nil
	case model.Draw:
		return Tie, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOutcome, o)
	}
}

// Result holds the ratings produced by one applied vote.
type Result struct {
	Left  float64
	Right float64
}

// Engine applies votes with a fixed K-factor. The zero value is not usable;
// construct with NewEngine.
type Engine struct {
	kFactor float64
}

// NewEngine creates an engine with the default K-factor unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{kFactor: DefaultKFactor}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// KFactor returns the configured adjustment magnitude.
func (e *Engine) KFactor() float64 { return e.kFactor }

// Update validates scoreA and applies the update rule.
func (e *Engine) Update(ratingA, ratingB, scoreA float64) (float64, float64, error) {
	if err := ValidateScore(scoreA); err != nil {
		return ratingA, ratingB, err
	}
	newA, newB := UpdateRatings(ratingA, ratingB, scoreA, e.kFactor)
	return newA, newB, nil
}

// ApplyVoteOutcome computes the persisted ratings for a vote. The user's
// literal choice is the outcome regardless of which side was favoured.
func (e *Engine) ApplyVoteOutcome(ratingLeft, ratingRight float64, o model.Outcome) (Result, error) {
	score, err := ScoreFor(o)
	if err != nil {
		return Result{Left: ratingLeft, Right: ratingRight}, err
	}
	left, right := UpdateRatings(ratingLeft, ratingRight, score, e.kFactor)
	return Result{Left: left, Right: right}, nil
}

// ApplyVoteOutcome is the package-level form with an explicit K-factor. A
// non-positive kFactor selects DefaultKFactor.
func ApplyVoteOutcome(ratingLeft, ratingRight float64, o model.Outcome, kFactor float64) (Result, error) {
	if kFactor <= 0 {
		kFactor = DefaultKFactor
	}
	return (&Engine{kFactor: kFactor}).ApplyVoteOutcome(ratingLeft, ratingRight, o)
}

// Prediction reports whether a choice agreed with the prior ratings. It is
// feedback for the voter and never feeds back into ratings.
type Prediction struct {
	Favoured model.Outcome `json:"favoured"`
	Correct  bool          `json:"correct"`
}

// ScorePredictionAccuracy compares the user's choice with the side that had
// the higher prior rating. Equal priors favour a draw.
func ScorePredictionAccuracy(choice model.Outcome, ratingLeft, ratingRight float64) Prediction {
	favoured := model.Draw
	switch {
	case ratingLeft > ratingRight:
		favoured = model.LeftWins
	case ratingRight > ratingLeft:
		favoured = model.RightWins
	}
	return Prediction{Favoured: favoured, Correct: choice == favoured}
}
