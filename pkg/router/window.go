package router

// Window is a fixed-capacity sliding window of recent user queries,
// oldest evicted first. It gives the scorer multi-turn context without
// re-scoring the whole transcript. Not safe for concurrent use; the
// orchestrator mutates it only under its turn lock.
type Window struct {
	capacity int
	items    []string
}

// NewWindow creates a window holding up to capacity queries.
// A non-positive capacity defaults to 5.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 5
	}
	return &Window{capacity: capacity}
}

// Add appends a query, evicting the oldest entry when full.
func (w *Window) Add(query string) {
	w.items = append(w.items, query)
	if len(w.items) > w.capacity {
		w.items = w.items[len(w.items)-w.capacity:]
	}
}

// Items returns a copy of the window contents, oldest first.
func (w *Window) Items() []string {
	out := make([]string, len(w.items))
	copy(out, w.items)
	return out
}
