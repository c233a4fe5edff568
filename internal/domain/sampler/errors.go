package sampler

import (
	"errors"
	"fmt"
)

// ErrInsufficientPool is the sentinel kind for pools too small to pair.
var ErrInsufficientPool = errors.New("insufficient pool")

// InsufficientPoolError reports how many distinct candidates were available.
type InsufficientPoolError struct {
	Size int
}

func (e *InsufficientPoolError) Error() string {
	return fmt.Sprintf("insufficient pool: need at least 2 distinct candidates, have %d", e.Size)
}

// Is lets errors.Is match against ErrInsufficientPool.
func (e *InsufficientPoolError) Is(target error) bool {
	return target == ErrInsufficientPool
}
