package queue

import "errors"

// ErrFull is returned by callers that need an error for a rejected Enqueue.
var ErrFull = errors.New("enrichment queue full")
