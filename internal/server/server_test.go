package server

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adred-codev/fgws/internal/config"
	"github.com/adred-codev/fgws/internal/protocol"
	"github.com/adred-codev/fgws/internal/session"
)

func testConfig() *config.Config {
	return &config.Config{
		ServerName:         "fgws-test",
		Capabilities:       "clientPublish,parameters,parametersSubscribe,time,services,connectionGraph,assets",
		SupportedEncodings: "json",
		Addr:               ":0",
		MaxSessions:        100,
		MaxGoroutines:      1000,
		CPURejectThreshold: 95,
		MemoryLimit:        1 << 30,
		SessionRateLimitPerSec: 1000,
		SessionRateLimitBurst:  1000,
	}
}

func newTestServer() *Server {
	return New(testConfig(), zerolog.Nop(), Handlers{})
}

func newTestSession(s *Server, id string) *session.ClientSession {
	sess := session.New(id, "", "127.0.0.1:1", outboundQueueSize)
	sess.SetState(session.StateOpen)
	s.registerSession(sess)
	return sess
}

func TestSubscribeUnknownChannelSendsWarningStatus(t *testing.T) {
	s := newTestServer()
	sess := newTestSession(s, "sess-1")

	s.handleSubscribe(sess, []byte(`{"op":"subscribe","subscriptions":[{"id":1,"channelId":999}]}`))

	frame := <-sess.Outbound()
	var status protocol.StatusMsg
	require.NoError(t, decodeJSON(frame, &status))
	assert.Equal(t, protocol.StatusWarning, status.Level)
	assert.False(t, sess.AlreadySubscribedToChannel(999))
}

func TestSubscribeFiresSubscribeEdgeOnFirstSubscriber(t *testing.T) {
	var edgeChannel uint32
	edges := 0
	s := New(testConfig(), zerolog.Nop(), Handlers{
		OnSubscribeEdge: func(channelID uint32) { edges++; edgeChannel = channelID },
	})
	ch := s.AddChannel(protocol.Channel{Topic: "t", Encoding: "json", SchemaName: "s", Schema: "{}"})
	sess1 := newTestSession(s, "sess-1")
	sess2 := newTestSession(s, "sess-2")

	s.handleSubscribe(sess1, subscribeFrame(1, ch.ID))
	require.Equal(t, 1, edges)
	assert.Equal(t, ch.ID, edgeChannel)

	s.handleSubscribe(sess2, subscribeFrame(1, ch.ID))
	assert.Equal(t, 1, edges, "second subscriber must not refire the edge")
}

func TestUnsubscribeFiresUnsubscribeEdgeOnLastSubscriber(t *testing.T) {
	edges := 0
	s := New(testConfig(), zerolog.Nop(), Handlers{
		OnUnsubscribeEdge: func(channelID uint32) { edges++ },
	})
	ch := s.AddChannel(protocol.Channel{Topic: "t", Encoding: "json", SchemaName: "s", Schema: "{}"})
	sess := newTestSession(s, "sess-1")

	s.handleSubscribe(sess, subscribeFrame(1, ch.ID))
	s.handleUnsubscribe(sess, unsubscribeFrame(1))
	assert.Equal(t, 1, edges)
}

func TestBroadcastMessageDeliversToEachSubscriberWithItsOwnSubscriptionID(t *testing.T) {
	s := newTestServer()
	ch := s.AddChannel(protocol.Channel{Topic: "t", Encoding: "json", SchemaName: "s", Schema: "{}"})

	sess1 := newTestSession(s, "sess-1")
	sess2 := newTestSession(s, "sess-2")
	s.handleSubscribe(sess1, subscribeFrame(11, ch.ID))
	s.handleSubscribe(sess2, subscribeFrame(22, ch.ID))

	s.BroadcastMessage(ch.ID, 1000, []byte("payload"))

	f1 := <-sess1.Outbound()
	m1, err := protocol.DecodeMessageData(f1[1:])
	require.NoError(t, err)
	assert.Equal(t, uint32(11), m1.SubscriptionID)

	f2 := <-sess2.Outbound()
	m2, err := protocol.DecodeMessageData(f2[1:])
	require.NoError(t, err)
	assert.Equal(t, uint32(22), m2.SubscriptionID)
}

func TestSlowSessionDisconnectsAfterThreeFailedSends(t *testing.T) {
	s := newTestServer()
	ch := s.AddChannel(protocol.Channel{Topic: "t", Encoding: "json", SchemaName: "s", Schema: "{}"})
	sess := session.New("slow", "", "127.0.0.1:1", 1)
	sess.SetState(session.StateOpen)
	s.registerSession(sess)
	s.handleSubscribe(sess, subscribeFrame(1, ch.ID))

	// Fill the one-slot outbound queue, then force three consecutive
	// non-blocking failures.
	s.BroadcastMessage(ch.ID, 0, []byte("x"))
	for i := 0; i < 3; i++ {
		s.BroadcastMessage(ch.ID, 0, []byte("x"))
	}

	assert.Equal(t, session.StateClosing, sess.State())
}

func TestRemoveChannelScrubsSubscriptionsAndFiresUnsubscribeEdge(t *testing.T) {
	edges := 0
	s := New(testConfig(), zerolog.Nop(), Handlers{
		OnUnsubscribeEdge: func(channelID uint32) { edges++ },
	})
	ch := s.AddChannel(protocol.Channel{Topic: "t", Encoding: "json", SchemaName: "s", Schema: "{}"})
	sess := newTestSession(s, "sess-1")
	s.handleSubscribe(sess, subscribeFrame(1, ch.ID))

	require.NoError(t, s.RemoveChannel(ch.ID))
	assert.Equal(t, 1, edges)
	_, ok := sess.SubscriptionChannel(1)
	assert.False(t, ok)
}

func TestServiceCallRequestToUnknownServiceSendsFailure(t *testing.T) {
	s := newTestServer()
	sess := newTestSession(s, "sess-1")

	s.handleServiceCallRequest(sess, protocol.ServiceCallRequest{ServiceID: 404, CallID: 1})

	frame := <-sess.Outbound()
	var failure protocol.ServiceCallFailureMsg
	require.NoError(t, decodeJSON(frame, &failure))
	assert.Equal(t, uint32(404), failure.ServiceID)
}

func TestCapabilityGateBlocksClientAdvertiseWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Capabilities = "parameters"
	s := New(cfg, zerolog.Nop(), Handlers{})
	sess := newTestSession(s, "sess-1")

	s.handleClientAdvertise(sess, []byte(`{"op":"advertise","channels":[{"id":1,"topic":"t","encoding":"json","schemaName":"s"}]}`))

	frame := <-sess.Outbound()
	var status protocol.StatusMsg
	require.NoError(t, decodeJSON(frame, &status))
	assert.Equal(t, protocol.StatusError, status.Level)
	_, ok := sess.Advertisement(1)
	assert.False(t, ok)
}

func subscribeFrame(subID, channelID uint32) []byte {
	return []byte(`{"op":"subscribe","subscriptions":[{"id":` + itoa(subID) + `,"channelId":` + itoa(channelID) + `}]}`)
}

func unsubscribeFrame(subID uint32) []byte {
	return []byte(`{"op":"unsubscribe","subscriptionIds":[` + itoa(subID) + `]}`)
}
