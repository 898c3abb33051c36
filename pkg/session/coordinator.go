package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle describes one in-progress interview.
type Handle struct {
	UserID    int64
	SessionID string
	StartedAt time.Time
}

// Coordinator is the registry of users with an interview in progress.
// All access goes through mu; TryAcquire is a check-and-set under that lock.
type Coordinator struct {
	active map[int64]Handle
	now    func() time.Time
	mu     sync.Mutex
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		active: make(map[int64]Handle),
		now:    time.Now,
	}
}

// TryAcquire registers userID as active and returns true, or returns false without side effects
// when the user already has an interview in progress.
func (c *Coordinator) TryAcquire(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.active[userID]; exists {
		log.Printf("[session] User %d already has session %s (started %s)", userID, existing.SessionID, existing.StartedAt.Format(time.RFC3339))
		return false
	}

	handle := Handle{
		UserID:    userID,
		SessionID: uuid.NewString(),
		StartedAt: c.now(),
	}
	c.active[userID] = handle
	log.Printf("[session] Session %s acquired for user %d", handle.SessionID, userID)
	return true
}

// Release removes the registration for userID. Releasing an unknown user is a no-op.
func (c *Coordinator) Release(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	handle, exists := c.active[userID]
	if !exists {
		return
	}
	delete(c.active, userID)
	log.Printf("[session] Session %s released for user %d after %s", handle.SessionID, userID, c.now().Sub(handle.StartedAt).Round(time.Second))
}

// Lookup returns the handle for userID if an interview is in progress.
func (c *Coordinator) Lookup(userID int64) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.active[userID]
	return h, ok
}

// Active returns the number of interviews in progress.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}
