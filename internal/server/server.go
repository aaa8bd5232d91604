// Package server implements the server-side session manager: it
// aggregates per-connection ClientSessions, owns the authoritative
// channel/service registries, detects subscribe/unsubscribe edges across
// all sessions, and exposes the outbound broadcast API application code
// drives (broadcastMessage, publishParameterValues, service responses,
// asset responses, connection-graph deltas, status frames).
package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adred-codev/fgws/internal/config"
	"github.com/adred-codev/fgws/internal/limits"
	"github.com/adred-codev/fgws/internal/logging"
	"github.com/adred-codev/fgws/internal/protocol"
	"github.com/adred-codev/fgws/internal/registry"
	"github.com/adred-codev/fgws/internal/session"
)

// outboundQueueSize bounds each session's outbound frame buffer. A
// session that cannot drain this fast enough trips the slow-session
// disconnect policy; see deliver.
const outboundQueueSize = 256

// slowSessionMaxAttempts is the number of consecutive non-blocking send
// failures tolerated before a session is disconnected as too slow.
const slowSessionMaxAttempts = 3

// Server aggregates client sessions, the channel/service registries, and
// the channel->subscribers broadcast index. One Server exists per
// process; its sessionID is stable for the process lifetime and changes
// on restart, per the protocol's data model.
type Server struct {
	cfg      *config.Config
	logger   zerolog.Logger
	handlers Handlers

	capabilities       protocol.CapabilitySet
	supportedEncodings []string
	sessionID          string

	channels *registry.ChannelRegistry
	services *registry.ServiceRegistry
	subs     *subscriptionIndex

	mu       sync.RWMutex
	sessions map[string]*session.ClientSession

	sessionCount int64 // atomic, mirrors len(sessions) for lock-free reads

	connRateLimiter    *limits.ConnectionRateLimiter
	sessionRateLimiter *limits.SessionRateLimiter
	resourceGuard      *limits.ResourceGuard

	auditLogger *logging.AuditLogger
}

// New builds a Server from configuration. It does not start listening —
// see internal/server's transport glue (ServeHTTP) for that.
func New(cfg *config.Config, logger zerolog.Logger, handlers Handlers) *Server {
	caps := make([]protocol.Capability, 0, len(cfg.CapabilityList()))
	for _, c := range cfg.CapabilityList() {
		caps = append(caps, protocol.Capability(c))
	}

	auditLogger := logging.NewAuditLogger(logger, logging.AuditInfo)
	auditLogger.SetAlerter(logging.NewConsoleAlerter(logger))

	s := &Server{
		cfg:                cfg,
		logger:             logger,
		handlers:           handlers,
		capabilities:       protocol.NewCapabilitySet(caps...),
		supportedEncodings: cfg.EncodingList(),
		sessionID:          uuid.NewString(),
		channels:           registry.NewChannelRegistry(),
		services:           registry.NewServiceRegistry(),
		subs:               newSubscriptionIndex(),
		sessions:           make(map[string]*session.ClientSession),
		auditLogger:        auditLogger,
	}

	s.resourceGuard = limits.NewResourceGuard(limits.Config{
		MaxSessions:        cfg.MaxSessions,
		MaxGoroutines:      cfg.MaxGoroutines,
		CPURejectThreshold: cfg.CPURejectThreshold,
		MemoryLimitBytes:   cfg.MemoryLimit,
	}, logger, &s.sessionCount)

	if cfg.ConnRateLimitEnabled {
		s.connRateLimiter = limits.NewConnectionRateLimiter(limits.ConnectionRateLimiterConfig{
			IPBurst:     cfg.ConnRateLimitIPBurst,
			IPRate:      cfg.ConnRateLimitIPRate,
			GlobalBurst: cfg.ConnRateLimitGlobalBurst,
			GlobalRate:  cfg.ConnRateLimitGlobalRate,
			Logger:      logger,
		})
	}
	s.sessionRateLimiter = limits.NewSessionRateLimiter(cfg.SessionRateLimitPerSec, cfg.SessionRateLimitBurst)

	return s
}

// Capabilities returns the server's advertised capability set.
func (s *Server) Capabilities() protocol.CapabilitySet { return s.capabilities }

// SessionID returns the process-stable session id advertised in
// serverInfo.
func (s *Server) SessionID() string { return s.sessionID }

// SessionCount returns the number of currently open sessions.
func (s *Server) SessionCount() int64 { return atomic.LoadInt64(&s.sessionCount) }

// SessionCounter exposes the live session counter for metrics.Collector
// to sample; it is never written through this pointer outside the
// Server itself.
func (s *Server) SessionCounter() *int64 { return &s.sessionCount }

// ResourceGuard exposes the admission guard for the transport layer's
// connect-time checks and for periodic sampling.
func (s *Server) ResourceGuard() *limits.ResourceGuard { return s.resourceGuard }

// ConnectionRateLimiter exposes the connection-attempt limiter, or nil
// if disabled.
func (s *Server) ConnectionRateLimiter() *limits.ConnectionRateLimiter { return s.connRateLimiter }

// hasCapability reports whether the server advertised c.
func (s *Server) hasCapability(c protocol.Capability) bool { return s.capabilities.Has(c) }

// registerSession adds a newly-opened session to the server's session
// set and starts tracking it for admission accounting.
func (s *Server) registerSession(sess *session.ClientSession) {
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	atomic.AddInt64(&s.sessionCount, 1)
}

// removeSession tears down bookkeeping for a closed session: scrubs its
// subscriptions from the broadcast index, firing last-unsubscribe edge
// events for any channel that becomes subscriber-less, and forgets its
// rate limiter state.
func (s *Server) removeSession(sess *session.ClientSession) {
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
	atomic.AddInt64(&s.sessionCount, -1)

	sess.SetState(session.StateClosed)
	s.sessionRateLimiter.Forget(sess.ID())

	channels := sess.SubscribedChannels()
	emptied := s.subs.removeSession(sess, channels)
	for _, ch := range emptied {
		if s.handlers.OnUnsubscribeEdge != nil {
			s.handlers.OnUnsubscribeEdge(ch)
		}
	}
}

// sessionList returns a snapshot of every currently open session.
func (s *Server) sessionList() []*session.ClientSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*session.ClientSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// disconnectSlowSession closes a session that has exceeded the
// consecutive non-blocking send failure threshold. The transport layer
// observes this via sess.State() and tears down the underlying
// connection; removeSession handles the bookkeeping.
func (s *Server) disconnectSlowSession(sess *session.ClientSession, attempts int32) {
	s.logger.Warn().
		Str("session_id", sess.ID()).
		Int32("consecutive_failures", attempts).
		Msg("disconnecting slow session")

	s.auditLogger.Warning("slow_session_disconnected", "session disconnected for falling behind on delivery", map[string]any{
		"sessionId":           sess.ID(),
		"consecutiveFailures": attempts,
		"connectionDuration":  time.Since(sess.ConnectedAt()).Seconds(),
	})

	sess.SetState(session.StateClosing)
}
