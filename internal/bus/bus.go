// Package bus carries message-insert events from the write path to the
// notification surface. The server uses the Redis implementation; tests use
// the in-memory one.
package bus

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// Bus publishes message-insert events and fans them out to per-user
// subscribers.
type Bus interface {
	// Publish delivers the event to both participants' channels.
	Publish(ctx context.Context, ev models.MessageEvent) error
	// Subscribe returns a channel of events addressed to userID. The
	// channel closes when ctx is canceled; no events are delivered after
	// that, so a consumer tearing down cannot observe late updates.
	Subscribe(ctx context.Context, userID uuid.UUID) (<-chan models.MessageEvent, error)
}

// MemoryBus is an in-process Bus for tests and single-node development runs.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan models.MessageEvent]struct{}
}

// NewMemoryBus creates an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uuid.UUID]map[chan models.MessageEvent]struct{})}
}

// Publish fans the event out to subscribers of both participant user ids.
// Slow subscribers drop events rather than block the write path.
func (b *MemoryBus) Publish(_ context.Context, ev models.MessageEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, userID := range []uuid.UUID{ev.InvestorUserID, ev.AgentUserID} {
		for ch := range b.subs[userID] {
			select {
			case ch <- ev:
			default:
			}
		}
	}
	return nil
}

// Subscribe registers a subscriber channel for userID.
func (b *MemoryBus) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan models.MessageEvent, error) {
	ch := make(chan models.MessageEvent, 16)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan models.MessageEvent]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[userID], ch)
		if len(b.subs[userID]) == 0 {
			delete(b.subs, userID)
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}
