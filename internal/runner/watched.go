package runner

import "sync"

// watchedChild lets the snapshot logger observe the load-test child without
// racing its creation: before a child is set the run itself is the watched
// process and counts as alive.
type watchedChild struct {
	mu    sync.Mutex
	child interface{ Alive() bool }
}

func (w *watchedChild) set(c interface{ Alive() bool }) {
	w.mu.Lock()
	w.child = c
	w.mu.Unlock()
}

func (w *watchedChild) Alive() bool {
	w.mu.Lock()
	c := w.child
	w.mu.Unlock()
	if c == nil {
		return true
	}
	return c.Alive()
}
