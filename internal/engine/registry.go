package engine

import "time"

// waiter is a read blocked on a path that has not been written yet. ready has
// room for exactly one blob so a notifier never blocks while holding the
// stripe lock.
type waiter struct {
	path     string
	deadline time.Time
	ready    chan Blob
}

// registerLocked adds a waiter for path. The caller holds st.mu and has just
// observed that path does not exist.
func (s *Store) registerLocked(st *stripe, path string, deadline time.Time) *waiter {
	w := &waiter{
		path:     path,
		deadline: deadline,
		ready:    make(chan Blob, 1),
	}
	st.waiters[path] = append(st.waiters[path], w)
	s.waiting.Add(1)
	return w
}

// notifyLocked hands blob to every waiter on blob.Path and clears the list.
// The caller holds st.mu.
func (s *Store) notifyLocked(st *stripe, blob Blob) int {
	list := st.waiters[blob.Path]
	if len(list) == 0 {
		return 0
	}
	delete(st.waiters, blob.Path)
	for _, w := range list {
		w.ready <- blob
	}
	s.waiting.Add(-int64(len(list)))
	return len(list)
}

// withdraw removes w if it is still registered. It returns false when a
// notifier already removed it, in which case w.ready holds the blob.
func (s *Store) withdraw(st *stripe, w *waiter) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	list := st.waiters[w.path]
	for i, candidate := range list {
		if candidate != w {
			continue
		}
		list = append(list[:i], list[i+1:]...)
		if len(list) == 0 {
			delete(st.waiters, w.path)
		} else {
			st.waiters[w.path] = list
		}
		s.waiting.Add(-1)
		return true
	}
	return false
}
