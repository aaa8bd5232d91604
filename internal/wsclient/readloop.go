package wsclient

import (
	"encoding/json"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/adred-codev/fgws/internal/protocol"
)

// readLoop decodes inbound frames and demultiplexes them into typed
// Events until the connection closes or fails. Runs in its own
// goroutine for the lifetime of the Engine.
func (e *Engine) readLoop() {
	defer func() {
		e.events <- Event{Kind: EventClose}
		close(e.events)
	}()

	for {
		data, op, err := wsutil.ReadServerData(e.conn)
		if err != nil {
			return
		}

		switch op {
		case ws.OpText:
			e.dispatchJSON(data)
		case ws.OpBinary:
			e.dispatchBinary(data)
		case ws.OpClose:
			return
		}
	}
}

func (e *Engine) dispatchJSON(data []byte) {
	op, err := protocol.PeekOp(data)
	if err != nil {
		e.emitError(err)
		return
	}

	switch op {
	case protocol.OpServerInfo:
		var m protocol.ServerInfoMsg
		if err := json.Unmarshal(data, &m); err != nil {
			e.emitError(err)
			return
		}
		e.capabilities.Store(m.Capabilities)
		e.events <- Event{Kind: EventServerInfo, ServerInfo: &m}

	case protocol.OpStatus:
		var m protocol.StatusMsg
		if err := json.Unmarshal(data, &m); err != nil {
			e.emitError(err)
			return
		}
		e.events <- Event{Kind: EventStatus, Status: &m}

	case protocol.OpRemoveStatus:
		var m protocol.RemoveStatusMsg
		if err := json.Unmarshal(data, &m); err != nil {
			e.emitError(err)
			return
		}
		e.events <- Event{Kind: EventRemoveStatus, RemoveStatus: &m}

	case protocol.OpAdvertise:
		var m protocol.AdvertiseMsg
		if err := json.Unmarshal(data, &m); err != nil {
			e.emitError(err)
			return
		}
		e.events <- Event{Kind: EventAdvertise, Advertise: &m}

	case protocol.OpUnadvertise:
		var m protocol.UnadvertiseMsg
		if err := json.Unmarshal(data, &m); err != nil {
			e.emitError(err)
			return
		}
		e.events <- Event{Kind: EventUnadvertise, Unadvertise: &m}

	case protocol.OpParameterValues:
		var m protocol.ParameterValuesMsg
		if err := json.Unmarshal(data, &m); err != nil {
			e.emitError(err)
			return
		}
		e.events <- Event{Kind: EventParameterValues, ParameterValues: &m}

	case protocol.OpAdvertiseServices:
		var m protocol.AdvertiseServicesMsg
		if err := json.Unmarshal(data, &m); err != nil {
			e.emitError(err)
			return
		}
		e.events <- Event{Kind: EventAdvertiseServices, AdvertiseServices: &m}

	case protocol.OpUnadvertiseServices:
		var m protocol.UnadvertiseServicesMsg
		if err := json.Unmarshal(data, &m); err != nil {
			e.emitError(err)
			return
		}
		e.events <- Event{Kind: EventUnadvertiseServices, UnadvertiseServices: &m}

	case protocol.OpConnectionGraphUpdate:
		var m protocol.ConnectionGraphUpdateMsg
		if err := json.Unmarshal(data, &m); err != nil {
			e.emitError(err)
			return
		}
		e.events <- Event{Kind: EventConnectionGraphUpdate, ConnectionGraphUpdate: &m}

	case protocol.OpServiceCallFailure:
		var m protocol.ServiceCallFailureMsg
		if err := json.Unmarshal(data, &m); err != nil {
			e.emitError(err)
			return
		}
		e.events <- Event{Kind: EventServiceCallFailure, ServiceCallFailure: &m}

	default:
		e.emitError(protocol.UnknownOpcodeError(op))
	}
}

func (e *Engine) dispatchBinary(frame []byte) {
	op, msg, err := protocol.DecodeServerBinary(frame)
	if err != nil {
		e.emitError(err)
		return
	}

	switch op {
	case protocol.OpMessageData:
		m := msg.(protocol.MessageData)
		e.events <- Event{Kind: EventMessage, Message: &m}
	case protocol.OpTime:
		m := msg.(protocol.TimeFrame)
		e.events <- Event{Kind: EventTime, Time: &m}
	case protocol.OpServiceCallResp:
		m := msg.(protocol.ServiceCallResponse)
		e.events <- Event{Kind: EventServiceCallResponse, ServiceCallResponse: &m}
	case protocol.OpFetchAssetResp:
		m := msg.(protocol.FetchAssetResponse)
		e.events <- Event{Kind: EventFetchAssetResponse, FetchAssetResponse: &m}
	}
}
