// Package wsclient is the client-side peer of internal/server: it
// dials a foxglove.websocket.v1 server, demultiplexes inbound frames
// into typed events, and exposes the outbound API (subscribe, advertise,
// publish, parameters, services, assets) an embedding application drives.
package wsclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/adred-codev/fgws/internal/protocol"
)

// Event is the tagged union the engine emits to the application for
// every inbound frame and lifecycle transition. At most one of the
// payload fields is populated, selected by Kind; EventOpen and
// EventClose carry none.
type Event struct {
	Kind string

	ServerInfo             *protocol.ServerInfoMsg
	Status                 *protocol.StatusMsg
	RemoveStatus           *protocol.RemoveStatusMsg
	Advertise              *protocol.AdvertiseMsg
	Unadvertise            *protocol.UnadvertiseMsg
	Message                *protocol.MessageData
	Time                   *protocol.TimeFrame
	AdvertiseServices      *protocol.AdvertiseServicesMsg
	UnadvertiseServices    *protocol.UnadvertiseServicesMsg
	ParameterValues        *protocol.ParameterValuesMsg
	ServiceCallResponse    *protocol.ServiceCallResponse
	ServiceCallFailure     *protocol.ServiceCallFailureMsg
	ConnectionGraphUpdate  *protocol.ConnectionGraphUpdateMsg
	FetchAssetResponse     *protocol.FetchAssetResponse
	Err                    error
}

// Event kinds, matching the names in the engine's public contract.
const (
	EventOpen                  = "open"
	EventClose                 = "close"
	EventError                 = "error"
	EventServerInfo            = "serverInfo"
	EventStatus                = "status"
	EventRemoveStatus          = "removeStatus"
	EventAdvertise             = "advertise"
	EventUnadvertise           = "unadvertise"
	EventMessage               = "message"
	EventTime                  = "time"
	EventAdvertiseServices     = "advertiseServices"
	EventUnadvertiseServices   = "unadvertiseServices"
	EventParameterValues       = "parameterValues"
	EventServiceCallResponse   = "serviceCallResponse"
	EventServiceCallFailure    = "serviceCallFailure"
	EventConnectionGraphUpdate = "connectionGraphUpdate"
	EventFetchAssetResponse    = "fetchAssetResponse"
)

// Engine is one client connection. Every exported method is safe for
// concurrent use.
type Engine struct {
	conn   net.Conn
	events chan Event

	writeMu sync.Mutex
	writer  *bufio.Writer

	// capabilities holds a protocol.CapabilitySet. Written once from
	// readLoop on serverInfo, read from whatever goroutine calls an
	// outbound method; atomic.Value avoids a data race between the two.
	capabilities atomic.Value

	nextSubscriptionID uint32 // atomic, starts at 0
	nextClientChannelID uint32 // atomic, starts at 1

	closeOnce sync.Once
}

// Dial opens a TCP+WebSocket connection to addr (host:port, no scheme)
// at path, requiring the server to select Subprotocol during the
// handshake. The returned Engine's Events channel starts delivering
// EventOpen followed by EventServerInfo before any other event.
func Dial(ctx context.Context, addr, path string) (*Engine, error) {
	url := fmt.Sprintf("ws://%s%s", addr, path)

	var negotiated bool
	dialer := ws.Dialer{
		Protocols: []string{subprotocol},
		Header: ws.HandshakeHeaderHTTP(http.Header{}),
		OnHeader: func(key, value []byte) error {
			if strings.EqualFold(string(key), "Sec-Websocket-Protocol") && string(value) == subprotocol {
				negotiated = true
			}
			return nil
		},
	}

	conn, _, _, err := dialer.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("wsclient: dial: %w", err)
	}
	if !negotiated {
		conn.Close()
		return nil, protocol.NewError(protocol.ErrSubprotocolMismatch, "server did not select "+subprotocol)
	}

	e := &Engine{
		conn:                conn,
		events:              make(chan Event, 64),
		writer:              bufio.NewWriter(conn),
		nextClientChannelID: 1,
	}

	e.events <- Event{Kind: EventOpen}
	go e.readLoop()
	return e, nil
}

const subprotocol = "foxglove.websocket.v1"

// Events returns the channel the application should range over to
// receive typed frames. Closed after EventClose is delivered.
func (e *Engine) Events() <-chan Event { return e.events }

// Close sends a close frame and tears down the connection.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.writeMu.Lock()
		wsutil.WriteClientMessage(e.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, "going away"))
		e.writeMu.Unlock()
		err = e.conn.Close()
	})
	return err
}

func (e *Engine) hasCapability(c protocol.Capability) bool {
	caps, ok := e.capabilities.Load().(protocol.CapabilitySet)
	return ok && caps.Has(c)
}

func (e *Engine) emitError(err error) {
	select {
	case e.events <- Event{Kind: EventError, Err: err}:
	default:
	}
}

// --- outbound API --------------------------------------------------

// Subscribe allocates a new subscription id for channelID and sends a
// subscribe request.
func (e *Engine) Subscribe(channelID uint32) (uint32, error) {
	subID := atomic.AddUint32(&e.nextSubscriptionID, 1) - 1
	err := e.sendJSON(protocol.SubscribeMsg{
		Subscriptions: []protocol.SubscriptionRequest{{ID: subID, ChannelID: channelID}},
	})
	return subID, err
}

// Unsubscribe cancels a previously allocated subscription.
func (e *Engine) Unsubscribe(subscriptionID uint32) error {
	return e.sendJSON(protocol.UnsubscribeMsg{SubscriptionIDs: []uint32{subscriptionID}})
}

// Advertise allocates a new client channel id and advertises ch (ch.ID
// is overwritten). Requires capability clientPublish.
func (e *Engine) Advertise(ch protocol.ClientChannel) (uint32, error) {
	if !e.hasCapability(protocol.CapClientPublish) {
		return 0, protocol.NewError(protocol.ErrCapabilityMissing, "clientPublish not advertised by server")
	}
	ch.ID = atomic.AddUint32(&e.nextClientChannelID, 1) - 1
	if err := e.sendJSON(protocol.ClientAdvertiseMsg{Channels: []protocol.ClientChannel{ch}}); err != nil {
		return 0, err
	}
	return ch.ID, nil
}

// Unadvertise retires a client channel previously returned by Advertise.
func (e *Engine) Unadvertise(channelID uint32) error {
	return e.sendJSON(protocol.ClientUnadvertiseMsg{ChannelIDs: []uint32{channelID}})
}

// SendMessage publishes payload on a client-advertised channel.
func (e *Engine) SendMessage(channelID uint32, payload []byte) error {
	if !e.hasCapability(protocol.CapClientPublish) {
		return protocol.NewError(protocol.ErrCapabilityMissing, "clientPublish not advertised by server")
	}
	return e.sendBinary(protocol.EncodeClientMessageData(protocol.ClientMessageData{ChannelID: channelID, Data: payload}))
}

// GetParameters requests current values for names (empty means all).
func (e *Engine) GetParameters(names []string, id string) error {
	if !e.hasCapability(protocol.CapParameters) {
		return protocol.NewError(protocol.ErrCapabilityMissing, "parameters not advertised by server")
	}
	return e.sendJSON(protocol.GetParametersMsg{ParameterNames: names, ID: id})
}

// SetParameters requests the given parameters be set (or deleted, for
// any Parameter whose Value is unset).
func (e *Engine) SetParameters(params []protocol.Parameter, id string) error {
	if !e.hasCapability(protocol.CapParameters) {
		return protocol.NewError(protocol.ErrCapabilityMissing, "parameters not advertised by server")
	}
	return e.sendJSON(protocol.SetParametersMsg{Parameters: params, ID: id})
}

// SubscribeParameterUpdates requests push notification when named
// parameters change.
func (e *Engine) SubscribeParameterUpdates(names []string) error {
	if !e.hasCapability(protocol.CapParametersSubscribe) {
		return protocol.NewError(protocol.ErrCapabilityMissing, "parametersSubscribe not advertised by server")
	}
	return e.sendJSON(protocol.SubscribeParameterUpdatesMsg{ParameterNames: names})
}

func (e *Engine) UnsubscribeParameterUpdates(names []string) error {
	return e.sendJSON(protocol.UnsubscribeParameterUpdatesMsg{ParameterNames: names})
}

// SendServiceCallRequest invokes a service. callID is chosen by the
// caller and must be unique among outstanding calls on serviceID if the
// response needs correlating.
func (e *Engine) SendServiceCallRequest(req protocol.ServiceCallRequest) error {
	if !e.hasCapability(protocol.CapServices) {
		return protocol.NewError(protocol.ErrCapabilityMissing, "services not advertised by server")
	}
	return e.sendBinary(protocol.EncodeServiceCallRequest(req))
}

// FetchAsset requests the asset at uri; the response arrives
// asynchronously as EventFetchAssetResponse, correlated by requestID.
func (e *Engine) FetchAsset(uri string, requestID uint32) error {
	if !e.hasCapability(protocol.CapAssets) {
		return protocol.NewError(protocol.ErrCapabilityMissing, "assets not advertised by server")
	}
	return e.sendJSON(protocol.FetchAssetMsg{URI: uri, RequestID: requestID})
}

// SubscribeConnectionGraph / UnsubscribeConnectionGraph toggle
// connection-graph delta delivery.
func (e *Engine) SubscribeConnectionGraph() error {
	if !e.hasCapability(protocol.CapConnectionGraph) {
		return protocol.NewError(protocol.ErrCapabilityMissing, "connectionGraph not advertised by server")
	}
	return e.sendJSON(protocol.SubscribeConnectionGraphMsg{})
}

func (e *Engine) UnsubscribeConnectionGraph() error {
	return e.sendJSON(protocol.UnsubscribeConnectionGraphMsg{})
}

func (e *Engine) sendJSON(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := wsutil.WriteClientMessage(e.writer, ws.OpText, data); err != nil {
		return err
	}
	return e.writer.Flush()
}

func (e *Engine) sendBinary(frame []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := wsutil.WriteClientMessage(e.writer, ws.OpBinary, frame); err != nil {
		return err
	}
	return e.writer.Flush()
}

const writeTimeout = 5 * time.Second
