package export

import (
	"context"
	"fmt"
	"sync"
)

// MemoryNotifier records events for inspection.
type MemoryNotifier struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryNotifier returns an empty MemoryNotifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Notify records the event and returns a pseudo id.
func (n *MemoryNotifier) Notify(_ context.Context, event Event) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return fmt.Sprintf("memory-%d", len(n.events)), nil
}

// Events returns a copy of the recorded events.
func (n *MemoryNotifier) Events() []Event {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Event, len(n.events))
	copy(out, n.events)
	return out
}
