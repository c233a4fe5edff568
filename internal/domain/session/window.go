package session

// DefaultWindowSize is the number of recent comparisons kept for exclusion.
const DefaultWindowSize = 3

// Window holds the ids shown in the last N comparisons, most recent first.
// It is not safe for concurrent use; Session guards it.
type Window struct {
	size  int
	pairs [][2]string
}

// NewWindow creates an empty window. A non-positive size keeps nothing.
func NewWindow(size int) *Window {
	if size < 0 {
		size = 0
	}
	return &Window{size: size, pairs: make([][2]string, 0, size)}
}

// Rebuild creates a window from comparison history ordered most recent first.
func Rebuild(size int, history [][2]string) *Window {
	w := NewWindow(size)
	for i := len(history) - 1; i >= 0; i-- {
		w.Push(history[i][0], history[i][1])
	}
	return w
}

// Push records a completed comparison and drops the oldest beyond size.
func (w *Window) Push(left, right string) {
	if w.size == 0 {
		return
	}
	w.pairs = append([][2]string{{left, right}}, w.pairs...)
	if len(w.pairs) > w.size {
		w.pairs = w.pairs[:w.size]
	}
}

// IDs returns the distinct ids in the window, most recent first.
func (w *Window) IDs() []string {
	seen := make(map[string]struct{}, 2*len(w.pairs))
	out := make([]string, 0, 2*len(w.pairs))
	for _, p := range w.pairs {
		for _, id := range p {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of comparisons held.
func (w *Window) Len() int { return len(w.pairs) }

// Size returns the capacity in comparisons.
func (w *Window) Size() int { return w.size }
