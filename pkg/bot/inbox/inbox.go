// Package inbox routes inbound messages to goroutines that are waiting for a reply.
//
// The update loop offers every message to Deliver; a blocked interview picks it up through Await.
// Messages nobody is waiting for are left to the command handler.
package inbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkalashnik/telegram-session-log/pkg/ports/botport"
)

// ErrTimeout is returned by Await when no matching message arrived within the bound.
var ErrTimeout = errors.New("inbox: timed out waiting for reply")

// Predicate selects the messages a waiter is interested in.
type Predicate func(botport.Message) bool

// FromAuthorInChat matches messages written by authorID in chatID.
func FromAuthorInChat(authorID, chatID int64) Predicate {
	return func(m botport.Message) bool {
		return m.AuthorID == authorID && m.ChatID == chatID
	}
}

type waiter struct {
	match Predicate
	ch    chan botport.Message
}

// Inbox is safe for concurrent use.
type Inbox struct {
	mu      sync.Mutex
	waiters []*waiter
}

func New() *Inbox {
	return &Inbox{}
}

// Await blocks until a message matching the predicate is delivered, the timeout elapses, or ctx is done.
func (b *Inbox) Await(ctx context.Context, match Predicate, timeout time.Duration) (botport.Message, error) {
	w := &waiter{match: match, ch: make(chan botport.Message, 1)}
	b.register(w)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var cause error
	select {
	case msg := <-w.ch:
		return msg, nil
	case <-timer.C:
		cause = ErrTimeout
	case <-ctx.Done():
		cause = ctx.Err()
	}

	// Deliver may have handed us a message between the timer firing and now.
	if !b.unregister(w) {
		return <-w.ch, nil
	}
	return botport.Message{}, cause
}

// Deliver hands msg to the oldest waiter whose predicate matches and reports whether it was consumed.
func (b *Inbox) Deliver(msg botport.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, w := range b.waiters {
		if !w.match(msg) {
			continue
		}
		b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
		w.ch <- msg
		return true
	}
	return false
}

// Pending returns the number of registered waiters.
func (b *Inbox) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters)
}

func (b *Inbox) register(w *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waiters = append(b.waiters, w)
}

// unregister removes w and reports whether it was still registered.
func (b *Inbox) unregister(w *waiter) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.waiters {
		if cur == w {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return true
		}
	}
	return false
}
