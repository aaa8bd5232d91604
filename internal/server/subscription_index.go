package server

import (
	"sync"
	"sync/atomic"

	"github.com/adred-codev/fgws/internal/session"
)

// subscriptionIndex is the channel-id-keyed reverse index from channel to
// subscribed sessions: the broadcast hot path looks up ~N subscribers
// directly instead of scanning every connected session. Snapshots are
// copy-on-write, stored behind atomic.Value, so get holds the read lock
// only for the map lookup and reads the snapshot itself without locking —
// the same pattern used for string-keyed channel names, generalized here
// to the protocol's uint32 channel ids and *session.ClientSession values.
type subscriptionIndex struct {
	mu      sync.RWMutex
	entries map[uint32]*atomic.Value // channelID -> []*session.ClientSession snapshot
}

func newSubscriptionIndex() *subscriptionIndex {
	return &subscriptionIndex{entries: make(map[uint32]*atomic.Value)}
}

// add registers sess as a subscriber of channelID. Reports whether this
// was the channel's first subscriber (the subscribe edge).
func (idx *subscriptionIndex) add(channelID uint32, sess *session.ClientSession) (firstSubscriber bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	val := idx.entries[channelID]
	if val == nil {
		val = &atomic.Value{}
		idx.entries[channelID] = val
	}

	var current []*session.ClientSession
	if v := val.Load(); v != nil {
		current = v.([]*session.ClientSession)
	}
	for _, s := range current {
		if s == sess {
			return false
		}
	}

	next := make([]*session.ClientSession, len(current)+1)
	copy(next, current)
	next[len(current)] = sess
	val.Store(next)
	return len(current) == 0
}

// remove unregisters sess from channelID. Reports whether the channel now
// has zero subscribers (the unsubscribe edge).
func (idx *subscriptionIndex) remove(channelID uint32, sess *session.ClientSession) (lastSubscriber bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	val, ok := idx.entries[channelID]
	if !ok {
		return false
	}
	v := val.Load()
	if v == nil {
		return false
	}
	current := v.([]*session.ClientSession)

	for i, s := range current {
		if s != sess {
			continue
		}
		next := make([]*session.ClientSession, len(current)-1)
		copy(next, current[:i])
		copy(next[i:], current[i+1:])
		if len(next) == 0 {
			delete(idx.entries, channelID)
			return true
		}
		val.Store(next)
		return false
	}
	return false
}

// removeSession drops sess from every channel it subscribed to. Returns
// the set of channels that became subscriber-less as a result, for
// last-unsubscribe edge detection on session close.
func (idx *subscriptionIndex) removeSession(sess *session.ClientSession, channels []uint32) []uint32 {
	var emptied []uint32
	for _, ch := range channels {
		if idx.remove(ch, sess) {
			emptied = append(emptied, ch)
		}
	}
	return emptied
}

// get returns the current subscriber snapshot for a channel. The
// returned slice is immutable and must not be modified by callers.
func (idx *subscriptionIndex) get(channelID uint32) []*session.ClientSession {
	idx.mu.RLock()
	val, ok := idx.entries[channelID]
	idx.mu.RUnlock()
	if !ok {
		return nil
	}
	v := val.Load()
	if v == nil {
		return nil
	}
	return v.([]*session.ClientSession)
}

// count reports the number of subscribers for a channel.
func (idx *subscriptionIndex) count(channelID uint32) int {
	return len(idx.get(channelID))
}

// clear drops every subscriber of channelID at once (used when a channel
// is retired out from under its subscribers). Reports whether it had any
// subscribers, for unsubscribe-edge detection.
func (idx *subscriptionIndex) clear(channelID uint32) (hadSubscribers bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	val, ok := idx.entries[channelID]
	if !ok {
		return false
	}
	delete(idx.entries, channelID)
	v := val.Load()
	return v != nil && len(v.([]*session.ClientSession)) > 0
}
