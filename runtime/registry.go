package runtime

import (
	"sort"
	"sync"
)

type Set map[string]*Slot

// Registry tracks the nested subscriptions of each subscriber, keyed by target.
// It holds at most one slot per (subscriber, target): registering a second one
// closes the first.
type Registry struct {
	mu            sync.RWMutex
	subscriptions map[string]Set // map subscriber -> target -> slot
}

func NewRegistry() *Registry {
	return &Registry{
		subscriptions: make(map[string]Set),
	}
}

// Subscribe records slot for (subscriberID, target), closing any slot already there.
// The set of a subscriber is created on the fly.
func (r *Registry) Subscribe(subscriberID, target string, slot *Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscriptions[subscriberID]; !ok {
		r.subscriptions[subscriberID] = make(Set)
	}
	if previous, ok := r.subscriptions[subscriberID][target]; ok && previous != slot {
		previous.Close()
	}
	r.subscriptions[subscriberID][target] = slot
}

// Unsubscribe closes and forgets one subscription. Unknown pairs are ignored.
// No empty set is left behind.
func (r *Registry) Unsubscribe(subscriberID, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets, ok := r.subscriptions[subscriberID]
	if !ok {
		return
	}
	if slot, ok := targets[target]; ok {
		slot.Close()
		delete(targets, target)
	}
	if len(targets) == 0 {
		delete(r.subscriptions, subscriberID)
	}
}

// UnsubscribeAll closes every subscription of subscriberID.
func (r *Registry) UnsubscribeAll(subscriberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, slot := range r.subscriptions[subscriberID] {
		slot.Close()
	}
	delete(r.subscriptions, subscriberID)
}

func (r *Registry) Get(subscriberID, target string) (*Slot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.subscriptions[subscriberID][target]
	return slot, ok
}

// Targets lists the subscribed targets of subscriberID, sorted.
func (r *Registry) Targets(subscriberID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var targets []string
	for target := range r.subscriptions[subscriberID] {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	return targets
}
