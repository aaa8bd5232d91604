package server

import (
	"github.com/adred-codev/fgws/internal/protocol"
	"github.com/adred-codev/fgws/internal/session"
)

// Handlers is the set of application callbacks the server invokes
// synchronously from the frame-dispatch context. Every field is
// optional; a nil handler means the corresponding operation is a no-op
// beyond the bookkeeping the server itself performs (edge detection,
// registry lookups, status replies). None of these may block — an
// application that needs to do blocking work must hand off to its own
// worker, per the protocol's concurrency model.
type Handlers struct {
	// OnSubscribeEdge fires exactly once when a channel's subscriber
	// count transitions from zero to non-zero across all sessions.
	OnSubscribeEdge func(channelID uint32)

	// OnUnsubscribeEdge fires exactly once when a channel's subscriber
	// count transitions from non-zero to zero across all sessions.
	OnUnsubscribeEdge func(channelID uint32)

	// OnClientAdvertise fires when a session successfully advertises a
	// new client channel (capability clientPublish).
	OnClientAdvertise func(sess *session.ClientSession, ch protocol.ClientChannel)

	// OnClientUnadvertise fires when a session retires a client channel.
	OnClientUnadvertise func(sess *session.ClientSession, ch protocol.ClientChannel)

	// OnMessage fires for each ClientMessageData frame on a channel the
	// session has advertised.
	OnMessage func(sess *session.ClientSession, ch protocol.ClientChannel, payload []byte)

	// OnGetParameters / OnSetParameters forward parameter requests;
	// capability "parameters" is checked before these are called. The
	// application is responsible for calling back into
	// Server.PublishParameterValues (or similar) with the correlator id
	// to produce a response.
	OnGetParameters func(sess *session.ClientSession, names []string, id string)
	OnSetParameters func(sess *session.ClientSession, params []protocol.Parameter, id string)

	// OnServiceCall forwards a service invocation; capability "services"
	// is checked before this is called. The application replies via
	// Server.SendServiceCallResponse or Server.SendServiceCallFailure.
	OnServiceCall func(sess *session.ClientSession, req protocol.ServiceCallRequest)

	// OnFetchAsset forwards an asset request; capability "assets" is
	// checked before this is called. The application replies via
	// Server.SendFetchAssetResponse.
	OnFetchAsset func(sess *session.ClientSession, uri string, requestID uint32)
}
