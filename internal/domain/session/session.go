// Package session tracks the per-client voting flow: which pair is on
// screen, whether a vote is in flight, and which profiles were shown
// recently.
package session

import (
	"sync"
	"time"
)

// State is a step of the voting flow.
type State int

// Session states in the order a round visits them.
const (
	Idle State = iota
	PairShown
	VoteSubmitted
	RatingsUpdated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PairShown:
		return "pair_shown"
	case VoteSubmitted:
		return "vote_submitted"
	case RatingsUpdated:
		return "ratings_updated"
	default:
		return "unknown"
	}
}

// Session is one client's voting flow. Methods are safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	id       string
	state    State
	shown    [2]string
	window   *Window
	lastSeen time.Time
	votes    int
}

// New creates an idle session with an empty exclusion window.
func New(id string, windowSize int) *Session {
	return &Session{id: id, window: NewWindow(windowSize), lastSeen: time.Now()}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Shown returns the pair on screen, if any.
func (s *Session) Shown() (left, right string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Idle {
		return "", "", false
	}
	return s.shown[0], s.shown[1], true
}

// Votes returns how many rounds this session has completed.
func (s *Session) Votes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votes
}

// LastSeen returns when the session last changed state.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Exclusion returns the ids to avoid in the next sample.
func (s *Session) Exclusion() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.IDs()
}

// Restore replaces the exclusion window with history ordered most recent
// first. Used when a session is recreated from stored votes.
func (s *Session) Restore(history [][2]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = Rebuild(s.window.Size(), history)
}

// Show puts a new pair on screen. A pair that was shown but never voted on
// is replaced.
func (s *Session) Show(leftID, rightID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle && s.state != PairShown {
		return transitionError(s.state, "show")
	}
	s.shown = [2]string{leftID, rightID}
	s.state = PairShown
	s.lastSeen = time.Now()
	return nil
}

// Submit accepts a vote on the shown pair. The ids may come in either
// order; anything else fails with *PairMismatchError and leaves the state
// unchanged.
func (s *Session) Submit(leftID, rightID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case PairShown:
	case Idle:
		return &PairMismatchError{Submitted: []string{leftID, rightID}}
	default:
		return transitionError(s.state, "submit")
	}
	same := leftID == s.shown[0] && rightID == s.shown[1]
	swapped := leftID == s.shown[1] && rightID == s.shown[0]
	if !same && !swapped {
		return &PairMismatchError{
			Shown:     []string{s.shown[0], s.shown[1]},
			Submitted: []string{leftID, rightID},
		}
	}
	s.state = VoteSubmitted
	s.lastSeen = time.Now()
	return nil
}

// Rated records that the new ratings were persisted.
func (s *Session) Rated() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != VoteSubmitted {
		return transitionError(s.state, "rated")
	}
	s.state = RatingsUpdated
	return nil
}

// Complete closes the round: the pair joins the exclusion window and the
// session returns to Idle.
func (s *Session) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != RatingsUpdated {
		return transitionError(s.state, "complete")
	}
	s.window.Push(s.shown[0], s.shown[1])
	s.shown = [2]string{}
	s.state = Idle
	s.votes++
	s.lastSeen = time.Now()
	return nil
}

// Abort returns a submitted vote to PairShown so it can be retried.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == VoteSubmitted {
		s.state = PairShown
	}
}
