package fsm

import (
	"sync"
)

// CachedObserver records the most recent transitions of the machines it is
// registered with. Once the history is full the oldest transition is
// dropped.
type CachedObserver struct {
	mu      sync.Mutex
	history []Notification
	limit   int
}

// NewCachedObserver returns an observer that keeps at most limit
// transitions.
func NewCachedObserver(limit int) *CachedObserver {
	if limit < 0 {
		limit = 0
	}

	return &CachedObserver{
		history: make([]Notification, 0, limit),
		limit:   limit,
	}
}

// Notify implements the Observer interface.
func (c *CachedObserver) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limit == 0 {
		return
	}

	if len(c.history) == c.limit {
		copy(c.history, c.history[1:])
		c.history = c.history[:c.limit-1]
	}
	c.history = append(c.history, n)
}

// GetCachedNotifications returns a copy of the recorded transitions, oldest
// first.
func (c *CachedObserver) GetCachedNotifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Notification(nil), c.history...)
}

// LastNotification returns the latest recorded transition, or the zero
// notification if nothing was recorded yet.
func (c *CachedObserver) LastNotification() Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return Notification{}
	}

	return c.history[len(c.history)-1]
}

// Path returns the states the machine entered, oldest first.
func (c *CachedObserver) Path() []StateType {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := make([]StateType, 0, len(c.history))
	for _, n := range c.history {
		path = append(path, n.NextState)
	}

	return path
}

// ActionErrors returns the action errors of the recorded transitions that
// failed.
func (c *CachedObserver) ActionErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, n := range c.history {
		if n.LastActionError != nil {
			errs = append(errs, n.LastActionError)
		}
	}

	return errs
}
