package session

import (
	"testing"

	"github.com/adred-codev/fgws/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSubscriptionRejectsDuplicateID(t *testing.T) {
	s := New("sess-1", "", "127.0.0.1:1", 8)

	require.NoError(t, s.AddSubscription(1, 100))
	err := s.AddSubscription(1, 200)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateSubscription)

	channelID, ok := s.SubscriptionChannel(1)
	require.True(t, ok)
	assert.Equal(t, uint32(100), channelID)
}

func TestRemoveSubscriptionKeepsIndexConsistent(t *testing.T) {
	s := New("sess-1", "", "127.0.0.1:1", 8)
	require.NoError(t, s.AddSubscription(1, 100))

	channelID, ok := s.RemoveSubscription(1)
	require.True(t, ok)
	assert.Equal(t, uint32(100), channelID)

	assert.False(t, s.AlreadySubscribedToChannel(100))
	_, ok = s.ChannelSubscriptionID(100)
	assert.False(t, ok)

	_, ok = s.RemoveSubscription(1)
	assert.False(t, ok, "removing an inactive subscription id should report false, not panic")
}

func TestAlreadySubscribedToChannel(t *testing.T) {
	s := New("sess-1", "", "127.0.0.1:1", 8)
	assert.False(t, s.AlreadySubscribedToChannel(100))
	require.NoError(t, s.AddSubscription(1, 100))
	assert.True(t, s.AlreadySubscribedToChannel(100))
}

func TestAddAdvertisementRejectsDuplicateID(t *testing.T) {
	s := New("sess-1", "", "127.0.0.1:1", 8)
	ch := protocol.ClientChannel{ID: 1, Topic: "foo", Encoding: "json"}

	require.NoError(t, s.AddAdvertisement(ch))
	err := s.AddAdvertisement(ch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateAdvertisement)
}

func TestParameterSubscriptionsAreAppendSemantics(t *testing.T) {
	s := New("sess-1", "", "127.0.0.1:1", 8)
	s.SubscribeParameterUpdates([]string{"/a", "/b"})
	s.SubscribeParameterUpdates([]string{"/b", "/c"})

	assert.True(t, s.IsSubscribedToParameter("/a"))
	assert.True(t, s.IsSubscribedToParameter("/b"))
	assert.True(t, s.IsSubscribedToParameter("/c"))

	s.UnsubscribeParameterUpdates([]string{"/b"})
	assert.True(t, s.IsSubscribedToParameter("/a"))
	assert.False(t, s.IsSubscribedToParameter("/b"))
}

func TestSendNonBlockingFailsWhenQueueFull(t *testing.T) {
	s := New("sess-1", "", "127.0.0.1:1", 1)

	assert.True(t, s.Send([]byte("one")))
	assert.False(t, s.Send([]byte("two")), "queue is full, second send should report failure")
	assert.Equal(t, int32(1), s.SendAttempts())

	<-s.Outbound()
	assert.True(t, s.Send([]byte("three")))
	assert.Equal(t, int32(0), s.SendAttempts())
}

func TestSubscribedChannelsSnapshot(t *testing.T) {
	s := New("sess-1", "", "127.0.0.1:1", 8)
	require.NoError(t, s.AddSubscription(1, 100))
	require.NoError(t, s.AddSubscription(2, 200))

	channels := s.SubscribedChannels()
	assert.ElementsMatch(t, []uint32{100, 200}, channels)
}
