package server

import (
	"encoding/json"

	"github.com/adred-codev/fgws/internal/protocol"
	"github.com/adred-codev/fgws/internal/session"
)

// AddChannel registers a new server-advertised channel and broadcasts an
// advertise frame to every currently connected session. It succeeds
// unconditionally: every call allocates a new id and broadcasts, even if
// an identical descriptor was registered before (e.g. a producer
// re-announcing its channel set on reconnect).
func (s *Server) AddChannel(desc protocol.Channel) protocol.Channel {
	ch := s.channels.Add(desc)
	s.broadcastJSON(protocol.AdvertiseMsg{Channels: []protocol.Channel{ch}})
	return ch
}

// RemoveChannel retires a channel: removes it from the registry, scrubs
// every session's subscription to it (firing unsubscribe edge events for
// any channel that becomes subscriber-less), and broadcasts unadvertise.
// Fails with protocol.ErrNotFound if the id is unknown.
func (s *Server) RemoveChannel(id uint32) error {
	ch, ok := s.channels.Remove(id)
	if !ok {
		return protocol.NewError(protocol.ErrNotFound, "channel not found")
	}

	for _, sess := range s.sessionList() {
		subID, has := sess.ChannelSubscriptionID(id)
		if !has {
			continue
		}
		sess.RemoveSubscription(subID)
	}
	if had := s.subs.clear(id); had && s.handlers.OnUnsubscribeEdge != nil {
		s.handlers.OnUnsubscribeEdge(id)
	}

	s.broadcastJSON(protocol.UnadvertiseMsg{ChannelIDs: []uint32{ch.ID}})
	return nil
}

// AddService registers a new service and broadcasts advertiseServices.
// Gated by capability "services". Succeeds unconditionally, like
// AddChannel: every call allocates a new id and broadcasts.
func (s *Server) AddService(desc protocol.Service) (protocol.Service, error) {
	if !s.hasCapability(protocol.CapServices) {
		return protocol.Service{}, protocol.NewError(protocol.ErrCapabilityMissing, "services capability not enabled")
	}
	svc := s.services.Add(desc)
	s.broadcastJSON(protocol.AdvertiseServicesMsg{Services: []protocol.Service{svc}})
	return svc, nil
}

// RemoveService retires a service and broadcasts unadvertiseServices.
func (s *Server) RemoveService(id uint32) error {
	svc, ok := s.services.Remove(id)
	if !ok {
		return protocol.NewError(protocol.ErrNotFound, "service not found")
	}
	s.broadcastJSON(protocol.UnadvertiseServicesMsg{ServiceIDs: []uint32{svc.ID}})
	return nil
}

// BroadcastTime sends a Time frame to every connected session. Gated by
// capability "time".
func (s *Server) BroadcastTime(timestampNanos uint64) {
	if !s.hasCapability(protocol.CapTime) {
		return
	}
	frame := protocol.EncodeTime(protocol.TimeFrame{TimestampNanos: timestampNanos})
	for _, sess := range s.sessionList() {
		s.deliver(sess, frame)
	}
}

// BroadcastMessage frames one MessageData payload for channelID and
// delivers it to every subscribed session, each tagged with that
// session's own subscription id. The frame is encoded once; each
// recipient gets a byte copy of it with only the subscriptionId bytes
// patched, so a broadcast to N subscribers costs one encode plus N
// copies and patches, not N encodes.
func (s *Server) BroadcastMessage(channelID uint32, timestampNanos uint64, payload []byte) {
	subscribers := s.subs.get(channelID)
	if len(subscribers) == 0 {
		return
	}

	template := protocol.EncodeMessageData(protocol.MessageData{
		SubscriptionID: 0,
		TimestampNanos: timestampNanos,
		Data:           payload,
	})

	for _, sess := range subscribers {
		subID, ok := sess.ChannelSubscriptionID(channelID)
		if !ok {
			continue
		}
		frame := make([]byte, len(template))
		copy(frame, template)
		protocol.PatchSubscriptionID(frame, subID)
		s.deliver(sess, frame)
	}
}

// PublishParameterValues sends parameter values. If target is non-nil,
// only that session receives them; otherwise every session whose
// parameter-subscription set intersects the parameter names receives
// them.
func (s *Server) PublishParameterValues(params []protocol.Parameter, id string, target *session.ClientSession) {
	if target != nil {
		s.sendJSON(target, protocol.ParameterValuesMsg{Parameters: params, ID: id})
		return
	}
	for _, sess := range s.sessionList() {
		filtered := filterSubscribedParameters(sess, params)
		if len(filtered) > 0 {
			s.sendJSON(sess, protocol.ParameterValuesMsg{Parameters: filtered})
		}
	}
}

// UpdateParameterValues is shorthand for "push only names each session
// has subscribed to" — identical per-session filtering to
// PublishParameterValues with no target and no correlator id.
func (s *Server) UpdateParameterValues(params []protocol.Parameter) {
	s.PublishParameterValues(params, "", nil)
}

func filterSubscribedParameters(sess *session.ClientSession, params []protocol.Parameter) []protocol.Parameter {
	out := make([]protocol.Parameter, 0, len(params))
	for _, p := range params {
		if sess.IsSubscribedToParameter(p.Name) {
			out = append(out, p)
		}
	}
	return out
}

// SendServiceCallResponse replies to an in-flight service call with a
// successful binary result.
func (s *Server) SendServiceCallResponse(sess *session.ClientSession, serviceID, callID uint32, encoding string, payload []byte) {
	frame := protocol.EncodeServiceCallResponse(protocol.ServiceCallResponse{
		ServiceID: serviceID, CallID: callID, Encoding: encoding, Payload: payload,
	})
	s.deliver(sess, frame)
}

// SendServiceCallFailure replies to an in-flight service call with a
// JSON serviceCallFailure frame.
func (s *Server) SendServiceCallFailure(sess *session.ClientSession, serviceID, callID uint32, message string) {
	s.sendJSON(sess, protocol.ServiceCallFailureMsg{ServiceID: serviceID, CallID: callID, Message: message})
}

// SendFetchAssetResponse replies to a fetchAsset request.
func (s *Server) SendFetchAssetResponse(sess *session.ClientSession, r protocol.FetchAssetResponse) {
	s.deliver(sess, protocol.EncodeFetchAssetResponse(r))
}

// PublishConnectionGraphUpdate sends a connection-graph delta to every
// session that has subscribed to the connection graph.
func (s *Server) PublishConnectionGraphUpdate(update protocol.ConnectionGraphUpdate) {
	for _, sess := range s.sessionList() {
		if sess.ConnectionGraphSubscribed() {
			s.sendJSON(sess, protocol.ConnectionGraphUpdateMsg{ConnectionGraphUpdate: update})
		}
	}
}

// PublishStatus sends a free-form operator-facing status message to
// every connected session, and records it in the audit log.
func (s *Server) PublishStatus(level protocol.StatusLevel, message, id string) {
	s.auditLoggerLevel(level, message)
	s.broadcastJSON(protocol.StatusMsg{Level: level, Message: message, ID: id})
}

// RemoveStatus clears previously published status messages by id on
// every connected session.
func (s *Server) RemoveStatus(ids []string) {
	s.broadcastJSON(protocol.RemoveStatusMsg{StatusIDs: ids})
}

func (s *Server) auditLoggerLevel(level protocol.StatusLevel, message string) {
	switch level {
	case protocol.StatusError:
		s.auditLogger.Error("status_error", message, nil)
	case protocol.StatusWarning:
		s.auditLogger.Warning("status_warning", message, nil)
	default:
		s.auditLogger.Info("status_info", message, nil)
	}
}

// publishStatusTo sends a status frame to a single session — used for
// the per-request ERROR/WARNING replies §4.3 specifies (duplicate
// subscription id, unknown channel, etc.), which are not broadcast.
func (s *Server) publishStatusTo(sess *session.ClientSession, level protocol.StatusLevel, message, id string) {
	s.sendJSON(sess, protocol.StatusMsg{Level: level, Message: message, ID: id})
}

// broadcastJSON marshals msg once and delivers the same bytes to every
// connected session.
func (s *Server) broadcastJSON(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal broadcast JSON frame")
		return
	}
	for _, sess := range s.sessionList() {
		s.deliver(sess, data)
	}
}

func (s *Server) sendJSON(sess *session.ClientSession, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal JSON frame")
		return
	}
	s.deliver(sess, data)
}

// deliver enqueues frame on sess's outbound queue without blocking. If
// the session has fallen behind for slowSessionMaxAttempts consecutive
// sends, it is disconnected — one slow session must never stall
// broadcasts to the rest.
func (s *Server) deliver(sess *session.ClientSession, frame []byte) {
	if sess.Send(frame) {
		return
	}
	attempts := sess.SendAttempts()
	if attempts >= slowSessionMaxAttempts {
		s.disconnectSlowSession(sess, attempts)
	}
}
