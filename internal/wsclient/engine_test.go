package wsclient

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adred-codev/fgws/internal/protocol"
)

func TestDispatchJSONServerInfoCapturesCapabilities(t *testing.T) {
	e := &Engine{events: make(chan Event, 4)}

	e.dispatchJSON([]byte(`{"op":"serverInfo","name":"fgws","capabilities":["time","services"],"sessionId":"abc"}`))

	ev := <-e.events
	assert.Equal(t, EventServerInfo, ev.Kind)
	assert.Equal(t, "fgws", ev.ServerInfo.Name)
	assert.True(t, e.hasCapability(protocol.CapTime))
	assert.True(t, e.hasCapability(protocol.CapServices))
	assert.False(t, e.hasCapability(protocol.CapAssets))
}

func TestOutboundCallsRefuseWhenCapabilityMissing(t *testing.T) {
	e := &Engine{events: make(chan Event, 4)}
	e.capabilities.Store(protocol.NewCapabilitySet(protocol.CapParameters))

	_, err := e.Advertise(protocol.ClientChannel{Topic: "t"})
	assert.Error(t, err, "clientPublish was not advertised by the server")

	assert.True(t, e.hasCapability(protocol.CapParameters), "parameters was advertised by the server")
}

func TestSubscriptionIDAllocatorStartsAtZeroAndIncrements(t *testing.T) {
	e := &Engine{}
	id1 := atomic.AddUint32(&e.nextSubscriptionID, 1) - 1
	id2 := atomic.AddUint32(&e.nextSubscriptionID, 1) - 1
	assert.Equal(t, uint32(0), id1)
	assert.Equal(t, uint32(1), id2)
}

func TestDispatchBinaryMessageDataEmitsMessageEvent(t *testing.T) {
	e := &Engine{events: make(chan Event, 4)}
	frame := protocol.EncodeMessageData(protocol.MessageData{SubscriptionID: 7, TimestampNanos: 42, Data: []byte("hi")})

	e.dispatchBinary(frame)

	ev := <-e.events
	assert.Equal(t, EventMessage, ev.Kind)
	assert.Equal(t, uint32(7), ev.Message.SubscriptionID)
	assert.Equal(t, []byte("hi"), ev.Message.Data)
}
