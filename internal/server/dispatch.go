package server

import (
	"encoding/json"
	"fmt"

	"github.com/adred-codev/fgws/internal/protocol"
	"github.com/adred-codev/fgws/internal/session"
)

// HandleJSON dispatches one inbound JSON control frame from sess. It
// never returns an error to the caller — protocol-level problems become
// status replies or are logged, per the error handling design's
// propagation policy: framing/wire errors are recovered locally.
func (s *Server) HandleJSON(sess *session.ClientSession, data []byte) {
	op, err := protocol.PeekOp(data)
	if err != nil {
		s.logger.Debug().Err(err).Str("session_id", sess.ID()).Msg("malformed JSON control frame")
		return
	}

	switch op {
	case protocol.OpSubscribe:
		s.handleSubscribe(sess, data)
	case protocol.OpUnsubscribe:
		s.handleUnsubscribe(sess, data)
	case protocol.OpAdvertise:
		s.handleClientAdvertise(sess, data)
	case protocol.OpUnadvertise:
		s.handleClientUnadvertise(sess, data)
	case protocol.OpGetParameters:
		s.handleGetParameters(sess, data)
	case protocol.OpSetParameters:
		s.handleSetParameters(sess, data)
	case protocol.OpSubscribeParameterUpdates:
		s.handleSubscribeParameterUpdates(sess, data)
	case protocol.OpUnsubscribeParameterUpdates:
		s.handleUnsubscribeParameterUpdates(sess, data)
	case protocol.OpSubscribeConnectionGraph:
		s.handleSubscribeConnectionGraph(sess, true)
	case protocol.OpUnsubscribeConnectionGraph:
		s.handleSubscribeConnectionGraph(sess, false)
	case protocol.OpFetchAsset:
		s.handleFetchAsset(sess, data)
	default:
		s.logger.Debug().Str("session_id", sess.ID()).Str("op", op).Msg("unknown JSON opcode")
	}
}

// HandleBinary dispatches one inbound binary frame from sess.
func (s *Server) HandleBinary(sess *session.ClientSession, frame []byte) {
	op, msg, err := protocol.DecodeClientBinary(frame)
	if err != nil {
		s.logger.Debug().Err(err).Str("session_id", sess.ID()).Msg("malformed binary frame")
		return
	}

	switch op {
	case protocol.OpClientMessageData:
		s.handleClientMessageData(sess, msg.(protocol.ClientMessageData))
	case protocol.OpServiceCallReq:
		s.handleServiceCallRequest(sess, msg.(protocol.ServiceCallRequest))
	}
}

func (s *Server) handleSubscribe(sess *session.ClientSession, data []byte) {
	var m protocol.SubscribeMsg
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Debug().Err(err).Msg("malformed subscribe frame")
		return
	}

	for _, req := range m.Subscriptions {
		if _, exists := sess.SubscriptionChannel(req.ID); exists {
			s.publishStatusTo(sess, protocol.StatusError,
				fmt.Sprintf("subscription id %d was already used; ignoring", req.ID), "")
			continue
		}
		if _, ok := s.channels.Get(req.ChannelID); !ok {
			s.publishStatusTo(sess, protocol.StatusWarning,
				fmt.Sprintf("subscribe: unknown channel id %d", req.ChannelID), "")
			continue
		}
		if sess.AlreadySubscribedToChannel(req.ChannelID) {
			s.publishStatusTo(sess, protocol.StatusError,
				fmt.Sprintf("already subscribed to channel %d; ignoring subscription %d", req.ChannelID, req.ID), "")
			continue
		}
		if err := sess.AddSubscription(req.ID, req.ChannelID); err != nil {
			s.publishStatusTo(sess, protocol.StatusError, err.Error(), "")
			continue
		}
		if first := s.subs.add(req.ChannelID, sess); first && s.handlers.OnSubscribeEdge != nil {
			s.handlers.OnSubscribeEdge(req.ChannelID)
		}
	}
}

func (s *Server) handleUnsubscribe(sess *session.ClientSession, data []byte) {
	var m protocol.UnsubscribeMsg
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Debug().Err(err).Msg("malformed unsubscribe frame")
		return
	}

	for _, subID := range m.SubscriptionIDs {
		channelID, ok := sess.RemoveSubscription(subID)
		if !ok {
			s.publishStatusTo(sess, protocol.StatusWarning,
				fmt.Sprintf("unsubscribe: subscription id %d not active", subID), "")
			continue
		}
		if last := s.subs.remove(channelID, sess); last && s.handlers.OnUnsubscribeEdge != nil {
			s.handlers.OnUnsubscribeEdge(channelID)
		}
	}
}

func (s *Server) handleClientAdvertise(sess *session.ClientSession, data []byte) {
	if !s.hasCapability(protocol.CapClientPublish) {
		s.publishStatusTo(sess, protocol.StatusError, "client publish capability not enabled", "")
		return
	}
	var m protocol.ClientAdvertiseMsg
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Debug().Err(err).Msg("malformed client advertise frame")
		return
	}
	for _, ch := range m.Channels {
		if err := sess.AddAdvertisement(ch); err != nil {
			s.publishStatusTo(sess, protocol.StatusError, err.Error(), "")
			continue
		}
		if s.handlers.OnClientAdvertise != nil {
			s.handlers.OnClientAdvertise(sess, ch)
		}
	}
}

func (s *Server) handleClientUnadvertise(sess *session.ClientSession, data []byte) {
	var m protocol.ClientUnadvertiseMsg
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Debug().Err(err).Msg("malformed client unadvertise frame")
		return
	}
	for _, id := range m.ChannelIDs {
		ch, ok := sess.RemoveAdvertisement(id)
		if !ok {
			s.logger.Debug().Uint32("channel_id", id).Msg("unadvertise: unknown client channel id, dropping")
			continue
		}
		if s.handlers.OnClientUnadvertise != nil {
			s.handlers.OnClientUnadvertise(sess, ch)
		}
	}
}

func (s *Server) handleGetParameters(sess *session.ClientSession, data []byte) {
	if !s.hasCapability(protocol.CapParameters) {
		s.publishStatusTo(sess, protocol.StatusError, "parameters capability not enabled", "")
		return
	}
	var m protocol.GetParametersMsg
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Debug().Err(err).Msg("malformed getParameters frame")
		return
	}
	if s.handlers.OnGetParameters != nil {
		s.handlers.OnGetParameters(sess, m.ParameterNames, m.ID)
	}
}

func (s *Server) handleSetParameters(sess *session.ClientSession, data []byte) {
	if !s.hasCapability(protocol.CapParameters) {
		s.publishStatusTo(sess, protocol.StatusError, "parameters capability not enabled", "")
		return
	}
	var m protocol.SetParametersMsg
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Debug().Err(err).Msg("malformed setParameters frame")
		return
	}
	if s.handlers.OnSetParameters != nil {
		s.handlers.OnSetParameters(sess, m.Parameters, m.ID)
	}
}

func (s *Server) handleSubscribeParameterUpdates(sess *session.ClientSession, data []byte) {
	if !s.hasCapability(protocol.CapParametersSubscribe) {
		s.publishStatusTo(sess, protocol.StatusError, "parametersSubscribe capability not enabled", "")
		return
	}
	var m protocol.SubscribeParameterUpdatesMsg
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Debug().Err(err).Msg("malformed subscribeParameterUpdates frame")
		return
	}
	sess.SubscribeParameterUpdates(m.ParameterNames)
}

func (s *Server) handleUnsubscribeParameterUpdates(sess *session.ClientSession, data []byte) {
	if !s.hasCapability(protocol.CapParametersSubscribe) {
		s.publishStatusTo(sess, protocol.StatusError, "parametersSubscribe capability not enabled", "")
		return
	}
	var m protocol.UnsubscribeParameterUpdatesMsg
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Debug().Err(err).Msg("malformed unsubscribeParameterUpdates frame")
		return
	}
	sess.UnsubscribeParameterUpdates(m.ParameterNames)
}

func (s *Server) handleSubscribeConnectionGraph(sess *session.ClientSession, subscribe bool) {
	if !s.hasCapability(protocol.CapConnectionGraph) {
		s.publishStatusTo(sess, protocol.StatusError, "connectionGraph capability not enabled", "")
		return
	}
	sess.SetConnectionGraphSubscribed(subscribe)
}

func (s *Server) handleFetchAsset(sess *session.ClientSession, data []byte) {
	if !s.hasCapability(protocol.CapAssets) {
		s.publishStatusTo(sess, protocol.StatusError, "assets capability not enabled", "")
		return
	}
	var m protocol.FetchAssetMsg
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Debug().Err(err).Msg("malformed fetchAsset frame")
		return
	}
	if s.handlers.OnFetchAsset != nil {
		s.handlers.OnFetchAsset(sess, m.URI, m.RequestID)
	}
}

func (s *Server) handleClientMessageData(sess *session.ClientSession, m protocol.ClientMessageData) {
	if !s.hasCapability(protocol.CapClientPublish) {
		return
	}
	ch, ok := sess.Advertisement(m.ChannelID)
	if !ok {
		s.logger.Debug().Uint32("channel_id", m.ChannelID).Str("session_id", sess.ID()).
			Msg("clientMessageData references unadvertised channel")
		return
	}
	if s.handlers.OnMessage != nil {
		s.handlers.OnMessage(sess, ch, m.Data)
	}
}

func (s *Server) handleServiceCallRequest(sess *session.ClientSession, req protocol.ServiceCallRequest) {
	if !s.hasCapability(protocol.CapServices) {
		return
	}
	if _, ok := s.services.Get(req.ServiceID); !ok {
		s.SendServiceCallFailure(sess, req.ServiceID, req.CallID, "unknown service id")
		return
	}
	if s.handlers.OnServiceCall != nil {
		s.handlers.OnServiceCall(sess, req)
	}
}
