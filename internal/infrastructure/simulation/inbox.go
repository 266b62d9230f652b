package simulation

import (
	"context"
	"sync"
)

// Inbox keeps the latest simulated notice per email, bounded to max entries.
// It stands in for a mailbox during development.
type Inbox struct {
	mu      sync.Mutex
	max     int
	order   []string
	notices map[string]Notice
}

func NewInbox(max int) *Inbox {
	if max <= 0 {
		max = 1000
	}
	return &Inbox{max: max, notices: make(map[string]Notice)}
}

func (b *Inbox) Notify(_ context.Context, n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.notices[n.Email]; ok {
		b.remove(n.Email)
	} else if len(b.order) >= b.max {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.notices, oldest)
	}
	b.order = append(b.order, n.Email)
	b.notices[n.Email] = n
}

// Latest returns the most recent notice for email.
func (b *Inbox) Latest(email string) (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.notices[email]
	return n, ok
}

func (b *Inbox) remove(email string) {
	for i, e := range b.order {
		if e == email {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}
