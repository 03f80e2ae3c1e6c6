// Package publish is the boundary between the poll cycle and everything
// that watches it. The scheduler hands in one finished snapshot per cycle;
// consumers poll the latest or subscribe for pushes, and only ever see deep
// copies.
package publish

import (
	"sync"

	"github.com/cshoesmith/diskmonitor/internal/model"
)

// Publisher holds the latest published snapshot and fans new ones out to
// subscribers.
type Publisher struct {
	mu     sync.RWMutex
	latest *model.StatusSnapshot
	subs   map[int]chan model.StatusSnapshot
	nextID int
}

func New() *Publisher {
	return &Publisher{subs: make(map[int]chan model.StatusSnapshot)}
}

// Publish stores the snapshot and delivers it to every subscriber. Delivery
// never blocks: each subscriber has a single-slot mailbox and an unconsumed
// older snapshot is replaced, so a stalled consumer cannot hold up the
// cycle.
func (p *Publisher) Publish(snap model.StatusSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := snap.Clone()
	p.latest = &stored

	for _, ch := range p.subs {
		select {
		case ch <- stored.Clone():
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- stored.Clone():
			default:
			}
		}
	}
}

// Latest returns a copy of the most recent snapshot, or false before the
// first publish.
func (p *Publisher) Latest() (model.StatusSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.latest == nil {
		return model.StatusSnapshot{}, false
	}
	return p.latest.Clone(), true
}

// Subscribe registers for push delivery. The returned cancel func detaches
// the subscriber and closes its channel.
func (p *Publisher) Subscribe() (<-chan model.StatusSnapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	ch := make(chan model.StatusSnapshot, 1)
	p.subs[id] = ch

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
