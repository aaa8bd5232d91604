// Package registry owns the server's monotonically-id'd channel and
// service descriptors. It is the single source of truth other packages
// consult to validate subscribe/advertise/service-call requests and to
// build advertise/unadvertise broadcasts.
package registry

import (
	"sort"
	"sync"

	"github.com/adred-codev/fgws/internal/protocol"
)

// ChannelRegistry assigns and tracks server-advertised channels. Ids are
// monotonically increasing; every Add call allocates a fresh id, even if
// an identical descriptor for the same topic is already registered — a
// producer re-announcing its channel set on reconnect gets a new id and
// a fresh advertise, not a silent no-op.
type ChannelRegistry struct {
	mu      sync.RWMutex
	byID    map[uint32]protocol.Channel
	byTopic map[string]uint32
	nextID  uint32
}

func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{
		byID:    make(map[uint32]protocol.Channel),
		byTopic: make(map[string]uint32),
		nextID:  1,
	}
}

// Add registers a channel descriptor for a topic, always allocating a new
// id. Succeeds unconditionally.
func (r *ChannelRegistry) Add(desc protocol.Channel) protocol.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	desc.ID = id
	r.byID[id] = desc
	r.byTopic[desc.Topic] = id
	return desc
}

// Remove retires a channel by id. Reports whether it existed.
func (r *ChannelRegistry) Remove(id uint32) (protocol.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.byID[id]
	if !ok {
		return protocol.Channel{}, false
	}
	delete(r.byID, id)
	if r.byTopic[ch.Topic] == id {
		delete(r.byTopic, ch.Topic)
	}
	return ch, true
}

// Get looks up a channel descriptor by id.
func (r *ChannelRegistry) Get(id uint32) (protocol.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byID[id]
	return ch, ok
}

// List returns every registered channel, ordered by id.
func (r *ChannelRegistry) List() []protocol.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Channel, 0, len(r.byID))
	for _, ch := range r.byID {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
