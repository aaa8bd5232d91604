// Package session holds the per-connection bookkeeping a server keeps
// for one client: its subscription table, its client-advertised channel
// table, its parameter-subscription set, and its connection-graph flag.
// It owns no cross-session state — registries, the channel→subscribers
// broadcast index, and edge-event detection live in internal/server,
// which orchestrates many ClientSessions at once.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/adred-codev/fgws/internal/protocol"
)

// State is the client session's lifecycle stage.
type State int32

const (
	StateHandshaking State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ClientSession is the server's per-connection state for one client. All
// exported methods are safe for concurrent use; callers never need to
// hold an external lock around them.
type ClientSession struct {
	id   string
	name string

	remoteAddr string
	connectedAt time.Time

	state atomic.Int32

	mu                        sync.RWMutex
	subscriptions             map[uint32]uint32 // subscriptionId -> channelId
	subscriptionsByChannel    map[uint32]uint32 // channelId -> subscriptionId (at most one per channel)
	advertisements            map[uint32]protocol.ClientChannel
	parameterSubscriptions    map[string]struct{}
	connectionGraphSubscribed bool

	sendAttempts int32 // consecutive non-blocking send failures; atomic

	outbound chan []byte
}

// New creates a fresh ClientSession in StateHandshaking. sendBufferSize
// bounds the per-session outbound queue: once full, sends become
// non-blocking failures that accumulate toward the slow-session
// disconnect policy (see internal/server).
func New(id, name, remoteAddr string, sendBufferSize int) *ClientSession {
	s := &ClientSession{
		id:                     id,
		name:                   name,
		remoteAddr:             remoteAddr,
		connectedAt:            time.Now(),
		subscriptions:          make(map[uint32]uint32),
		subscriptionsByChannel: make(map[uint32]uint32),
		advertisements:         make(map[uint32]protocol.ClientChannel),
		parameterSubscriptions: make(map[string]struct{}),
		outbound:               make(chan []byte, sendBufferSize),
	}
	s.state.Store(int32(StateHandshaking))
	return s
}

func (s *ClientSession) ID() string            { return s.id }
func (s *ClientSession) Name() string          { return s.name }
func (s *ClientSession) RemoteAddr() string    { return s.remoteAddr }
func (s *ClientSession) ConnectedAt() time.Time { return s.connectedAt }

func (s *ClientSession) State() State      { return State(s.state.Load()) }
func (s *ClientSession) SetState(st State) { s.state.Store(int32(st)) }

// Outbound returns the session's send queue for the transport write pump
// to drain. It is not meant to be written to directly — use Send.
func (s *ClientSession) Outbound() <-chan []byte { return s.outbound }

// Send enqueues a pre-framed message for delivery without blocking. It
// reports false (and bumps the consecutive-failure counter) if the
// session's outbound queue is full — the caller decides whether that
// crosses the slow-session disconnect threshold.
func (s *ClientSession) Send(frame []byte) bool {
	select {
	case s.outbound <- frame:
		atomic.StoreInt32(&s.sendAttempts, 0)
		return true
	default:
		atomic.AddInt32(&s.sendAttempts, 1)
		return false
	}
}

// SendAttempts returns the current consecutive non-blocking send failure
// count.
func (s *ClientSession) SendAttempts() int32 { return atomic.LoadInt32(&s.sendAttempts) }

// --- subscriptions ---------------------------------------------------

// ErrDuplicateSubscription is returned by AddSubscription when the
// subscription id is already active for this session.
var ErrDuplicateSubscription = protocol.NewError(protocol.ErrDuplicateID, "subscription id already used")

// AlreadySubscribedToChannel reports whether this session already holds
// an active subscription to channelID (the protocol allows at most one
// subscription per channel per client).
func (s *ClientSession) AlreadySubscribedToChannel(channelID uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.subscriptionsByChannel[channelID]
	return ok
}

// AddSubscription records a new (subscriptionId, channelId) pair. It
// fails if the subscription id is already active for this session; it
// does not check whether channelID exists in the server registry —
// that's the caller's job, since only the caller (internal/server) has
// access to the registry.
func (s *ClientSession) AddSubscription(subID, channelID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subscriptions[subID]; exists {
		return ErrDuplicateSubscription
	}
	s.subscriptions[subID] = channelID
	s.subscriptionsByChannel[channelID] = subID
	return nil
}

// RemoveSubscription removes a subscription by id, returning the channel
// it was bound to and whether it existed.
func (s *ClientSession) RemoveSubscription(subID uint32) (channelID uint32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	channelID, ok = s.subscriptions[subID]
	if !ok {
		return 0, false
	}
	delete(s.subscriptions, subID)
	if s.subscriptionsByChannel[channelID] == subID {
		delete(s.subscriptionsByChannel, channelID)
	}
	return channelID, true
}

// SubscriptionChannel looks up the channel a subscription id is bound
// to.
func (s *ClientSession) SubscriptionChannel(subID uint32) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channelID, ok := s.subscriptions[subID]
	return channelID, ok
}

// ChannelSubscriptionID returns the subscription id this session is
// using for channelID, if any.
func (s *ClientSession) ChannelSubscriptionID(channelID uint32) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subID, ok := s.subscriptionsByChannel[channelID]
	return subID, ok
}

// SubscribedChannels returns every channel id this session currently
// subscribes to, in no particular order. Used when the session closes
// to drive last-unsubscribe edge detection.
func (s *ClientSession) SubscribedChannels() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint32, 0, len(s.subscriptionsByChannel))
	for ch := range s.subscriptionsByChannel {
		out = append(out, ch)
	}
	return out
}

// --- client-advertised channels ----------------------------------------

// ErrDuplicateAdvertisement is returned by AddAdvertisement when the
// client channel id is already advertised by this session.
var ErrDuplicateAdvertisement = protocol.NewError(protocol.ErrDuplicateID, "client channel id already advertised")

func (s *ClientSession) AddAdvertisement(ch protocol.ClientChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.advertisements[ch.ID]; exists {
		return ErrDuplicateAdvertisement
	}
	s.advertisements[ch.ID] = ch
	return nil
}

func (s *ClientSession) RemoveAdvertisement(id uint32) (protocol.ClientChannel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.advertisements[id]
	if ok {
		delete(s.advertisements, id)
	}
	return ch, ok
}

func (s *ClientSession) Advertisement(id uint32) (protocol.ClientChannel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.advertisements[id]
	return ch, ok
}

// --- parameter subscriptions --------------------------------------------

// SubscribeParameterUpdates appends names to the session's parameter
// subscription set. Existing entries are kept; duplicates are ignored —
// this is append semantics, not replace.
func (s *ClientSession) SubscribeParameterUpdates(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.parameterSubscriptions[n] = struct{}{}
	}
}

func (s *ClientSession) UnsubscribeParameterUpdates(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		delete(s.parameterSubscriptions, n)
	}
}

// IsSubscribedToParameter reports whether name is in this session's
// parameter subscription set.
func (s *ClientSession) IsSubscribedToParameter(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.parameterSubscriptions[name]
	return ok
}

// --- connection graph ---------------------------------------------------

func (s *ClientSession) SetConnectionGraphSubscribed(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionGraphSubscribed = v
}

func (s *ClientSession) ConnectionGraphSubscribed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectionGraphSubscribed
}
