package server

import (
	"bufio"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/adred-codev/fgws/internal/logging"
	"github.com/adred-codev/fgws/internal/protocol"
	"github.com/adred-codev/fgws/internal/session"
)

// Subprotocol is the only subprotocol this server negotiates. A client
// that does not offer it during the handshake is rejected.
const Subprotocol = "foxglove.websocket.v1"

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ServeHTTP upgrades an incoming HTTP request to a WebSocket connection
// speaking Subprotocol, admits it through the rate limiter and resource
// guard, and hands it off to the read/write pumps. It implements
// http.Handler so it can be mounted directly on an http.ServeMux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := clientIP(r)

	if s.connRateLimiter != nil && !s.connRateLimiter.Allow(clientIP) {
		s.logger.Warn().Str("client_ip", clientIP).Msg("connection rejected: rate limit exceeded")
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	if ok, reason := s.resourceGuard.ShouldAcceptSession(); !ok {
		s.logger.Warn().Str("client_ip", clientIP).Str("reason", reason).Msg("connection rejected by resource guard")
		http.Error(w, "server overloaded", http.StatusServiceUnavailable)
		return
	}

	var negotiated bool
	upgrader := ws.HTTPUpgrader{
		Protocol: func(proto string) bool {
			if proto == Subprotocol {
				negotiated = true
				return true
			}
			return false
		},
	}

	conn, _, _, err := upgrader.Upgrade(r, w)
	if err != nil {
		s.logger.Debug().Err(err).Str("client_ip", clientIP).Msg("websocket upgrade failed")
		return
	}
	if !negotiated {
		s.auditLogger.Warning("subprotocol_mismatch", "client did not offer "+Subprotocol, map[string]any{"clientIp": clientIP})
		wsutil.WriteServerMessage(conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusProtocolError, "missing subprotocol "+Subprotocol))
		conn.Close()
		return
	}

	if !s.resourceGuard.AcquireGoroutine() {
		s.logger.Warn().Str("client_ip", clientIP).Msg("connection rejected: goroutine limit reached")
		wsutil.WriteServerMessage(conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusGoingAway, "server overloaded"))
		conn.Close()
		return
	}

	sess := session.New(uuid.NewString(), clientIP, r.RemoteAddr, outboundQueueSize)
	s.registerSession(sess)
	sess.SetState(session.StateOpen)

	s.sendInitialSnapshot(sess)

	go s.writePump(conn, sess)
	s.readPump(conn, sess)
}

// clientIP prefers X-Forwarded-For (first hop) over RemoteAddr, matching
// how requests typically arrive behind a load balancer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// sendInitialSnapshot pushes serverInfo followed by the current
// channel/service advertisements, exactly once, right after a session
// opens.
func (s *Server) sendInitialSnapshot(sess *session.ClientSession) {
	s.sendJSON(sess, protocol.ServerInfoMsg{
		Name:               s.cfg.ServerName,
		Capabilities:       s.capabilities,
		SupportedEncodings: s.supportedEncodings,
		SessionID:          s.sessionID,
	})

	if channels := s.channels.List(); len(channels) > 0 {
		s.sendJSON(sess, protocol.AdvertiseMsg{Channels: channels})
	}
	if services := s.services.List(); len(services) > 0 {
		s.sendJSON(sess, protocol.AdvertiseServicesMsg{Services: services})
	}
}

// readPump decodes inbound frames and dispatches them until the
// connection closes or fails. Blocking call — returns after teardown.
func (s *Server) readPump(conn net.Conn, sess *session.ClientSession) {
	defer logging.RecoverPanic(s.logger, "readPump", map[string]any{"session_id": sess.ID()})
	defer s.teardown(conn, sess)

	conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if !s.sessionRateLimiter.Allow(sess.ID()) {
			s.publishStatusTo(sess, protocol.StatusWarning, "rate limit exceeded, message dropped", "")
			continue
		}

		switch op {
		case ws.OpText:
			s.HandleJSON(sess, data)
		case ws.OpBinary:
			s.HandleBinary(sess, data)
		case ws.OpClose:
			return
		}
	}
}

// writePump drains sess's outbound queue onto conn, batching whatever is
// already queued into a single flush, and pings on an idle timer.
func (s *Server) writePump(conn net.Conn, sess *session.ClientSession) {
	defer logging.RecoverPanic(s.logger, "writePump", map[string]any{"session_id": sess.ID()})
	defer s.resourceGuard.ReleaseGoroutine()

	writer := bufio.NewWriter(conn)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	outbound := sess.Outbound()
	for {
		select {
		case frame, ok := <-outbound:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := writeFrame(writer, frame); err != nil {
				return
			}

			pending := len(outbound)
			for i := 0; i < pending; i++ {
				if err := writeFrame(writer, <-outbound); err != nil {
					return
				}
			}
			if err := writer.Flush(); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(conn, ws.OpPing, nil); err != nil {
				return
			}
		}

		if sess.State() == session.StateClosing {
			// Force the connection closed so readPump's blocking read
			// unblocks and runs teardown/removeSession exactly once.
			conn.Close()
			return
		}
	}
}

// writeFrame writes one frame as a binary WebSocket message if it looks
// like a foxglove binary opcode, otherwise as text. JSON control frames
// never collide with the binary opcode byte range (they start with '{').
func writeFrame(w *bufio.Writer, frame []byte) error {
	if len(frame) > 0 && frame[0] == '{' {
		return wsutil.WriteServerMessage(w, ws.OpText, frame)
	}
	return wsutil.WriteServerMessage(w, ws.OpBinary, frame)
}

// teardown closes the underlying connection and removes sess from the
// server's bookkeeping. Safe to call once per session.
func (s *Server) teardown(conn net.Conn, sess *session.ClientSession) {
	sess.SetState(session.StateClosed)
	conn.Close()
	s.removeSession(sess)
}
